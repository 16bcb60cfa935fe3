package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jacoelho/gpxjoin"
)

const version = "0.2.0"

func main() {
	os.Exit(run())
}

func run() int {
	return runWithArgs(os.Args[1:], os.Stdout, os.Stderr)
}

func runWithArgs(args []string, stdout, stderr io.Writer) int {
	paths, wantUsage := parseArgs(args)
	if wantUsage {
		_ = printUsage(stderr)
		return 1
	}
	if len(paths) == 0 {
		if err := writeln(stderr, "error: need at least one source file"); err != nil {
			return 1
		}
		return 1
	}

	logger := newLogger(stderr)
	defer func() {
		_ = logger.Sync()
	}()

	stats, err := gpxjoin.JoinFiles(paths, stdout)
	if err != nil {
		logger.Debug("merge failed", zap.Error(err))
		if writeErr := writef(stderr, "error: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	logger.Debug("merge complete",
		zap.Int("sources", stats.Sources),
		zap.Int("tracks_appended", stats.TracksAppended),
		zap.Int("tokens_written", stats.TokensWritten),
		zap.Int64("bytes_written", stats.BytesWritten),
	)
	return 0
}

// parseArgs splits args into file paths. Before a bare "--" the four usage
// flags are recognized; everything else, flag-like or not, is a path.
func parseArgs(args []string) (paths []string, wantUsage bool) {
	ignoreFlags := false
	for _, arg := range args {
		if !ignoreFlags {
			switch arg {
			case "-h", "--help", "-V", "--version":
				return nil, true
			case "--":
				ignoreFlags = true
				continue
			}
		}
		paths = append(paths, arg)
	}
	return paths, false
}

func printUsage(w io.Writer) error {
	return errors.Join(
		writef(w, "gpxjoin v%s\n", version),
		writef(w, "usage: %s <file1.gpx> [<file2.gpx> ...] > out.gpx\n", os.Args[0]),
		writeln(w, "Concatenates GPX files by appending tracks from subsequent GPX"),
		writeln(w, "files after tracks from the first."),
		writeln(w, "Writes the result to standard output."),
	)
}

// newLogger builds the diagnostics logger. Normal runs log nothing; setting
// GPXJOIN_DEBUG enables debug output on the diagnostic stream.
func newLogger(stderr io.Writer) *zap.Logger {
	if os.Getenv("GPXJOIN_DEBUG") == "" {
		return zap.NewNop()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(stderr),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
