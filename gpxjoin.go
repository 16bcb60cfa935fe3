// Package gpxjoin merges GPX track logs into a single document. The first
// input supplies the output's header, metadata and tail; every input,
// including the first, contributes its tracks as siblings under the same
// gpx root. Processing is a single streaming pass per source; no document
// is ever held in memory whole.
package gpxjoin

import (
	"io"
	"os"

	gpxerrors "github.com/jacoelho/gpxjoin/errors"
)

// JoinFiles opens every path in order and merges them into dst. The file at
// paths[0] is the template; the rest contribute only their tracks. All paths
// are opened before any output is produced, so an unreadable path fails the
// run with nothing written.
func JoinFiles(paths []string, dst io.Writer) (Stats, error) {
	if len(paths) == 0 {
		return Stats{}, ErrNoSources
	}
	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return Stats{}, gpxerrors.New(gpxerrors.CodeOpen, path, err)
		}
		files = append(files, f)
		sources = append(sources, Source{Name: path, R: f})
	}
	return Join(sources, dst)
}
