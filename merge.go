package gpxjoin

import (
	"errors"
	"io"

	gpxerrors "github.com/jacoelho/gpxjoin/errors"
	"github.com/jacoelho/gpxjoin/internal/elempath"
	"github.com/jacoelho/gpxjoin/pkg/xmltok"
)

// Element names the merge keys on, per the GPX 1.1 format.
const (
	rootName  = "gpx"
	trackName = "trk"
)

// ErrNoSources is returned when a merge is requested with no inputs.
var ErrNoSources = errors.New("need at least one source file")

// Source pairs a readable stream with a name used in diagnostics.
type Source struct {
	R    io.Reader
	Name string
}

// Stats summarizes a completed merge run.
type Stats struct {
	BytesWritten   int64
	Sources        int
	TracksAppended int
	TokensWritten  int
}

// pendingRootClose captures the template's paused decoder together with the
// buffered closing-root tag bytes. It is created once when the template's
// root body ends and consumed once after every contributor is drained.
type pendingRootClose struct {
	dec *xmltok.Decoder
	raw []byte
}

// Join merges GPX documents into a single document written to dst.
//
// The first source is the template: its bytes stream through verbatim up to
// the tag closing its gpx root. Every following source contributes only the
// subtrees rooted at gpx/trk, in source order. The template's closing tag,
// and whatever followed it, are written last. On failure bytes already
// written remain written; the caller owns discarding a failed run's output.
func Join(sources []Source, dst io.Writer) (Stats, error) {
	m := &merger{dst: dst}
	if len(sources) == 0 {
		return m.stats, ErrNoSources
	}
	m.stats.Sources = len(sources)

	pending, err := m.streamTemplate(sources[0])
	if err != nil {
		return m.stats, err
	}
	for _, src := range sources[1:] {
		if err := m.streamContributor(src); err != nil {
			return m.stats, err
		}
	}
	if err := m.resumeTemplate(sources[0].Name, pending); err != nil {
		return m.stats, err
	}
	return m.stats, nil
}

type merger struct {
	dst   io.Writer
	stats Stats
}

// streamTemplate forwards every template token until the end tag that closes
// the root element, which is stashed unwritten together with the paused
// decoder so contributors can be spliced in before it.
func (m *merger) streamTemplate(src Source) (*pendingRootClose, error) {
	dec := xmltok.NewDecoder(src.R)
	var path elempath.Path
	for {
		tok, err := dec.ReadToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, gpxerrors.Newf(gpxerrors.CodeMissingRootClose, src.Name,
					"document ended before the %s root element closed", rootName)
			}
			return nil, gpxerrors.New(gpxerrors.CodeParse, src.Name, err)
		}
		if tok.Kind == xmltok.KindStartElement {
			path.Push(string(tok.Name))
		}
		if tok.Kind == xmltok.KindEndElement && path.IsExactly(rootName) {
			if string(tok.Name) != rootName {
				return nil, gpxerrors.New(gpxerrors.CodeTagMismatch, src.Name,
					&gpxerrors.TagMismatchError{Expected: rootName, Found: string(tok.Name)})
			}
			return &pendingRootClose{dec: dec, raw: append([]byte(nil), tok.Raw...)}, nil
		}
		if err := m.write(tok.Raw); err != nil {
			return nil, err
		}
		if err := balance(&path, tok); err != nil {
			return nil, gpxerrors.New(gpxerrors.CodeTagMismatch, src.Name, err)
		}
	}
}

// streamContributor forwards only the tokens whose path is rooted at
// gpx/trk. Tag balance is still verified for the whole document.
func (m *merger) streamContributor(src Source) error {
	dec := xmltok.NewDecoder(src.R)
	var path elempath.Path
	for {
		tok, err := dec.ReadToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return gpxerrors.New(gpxerrors.CodeParse, src.Name, err)
		}
		if tok.Kind == xmltok.KindStartElement {
			path.Push(string(tok.Name))
		}
		if path.HasPrefix(rootName, trackName) {
			if tok.Kind == xmltok.KindStartElement && path.IsExactly(rootName, trackName) {
				m.stats.TracksAppended++
			}
			if err := m.write(tok.Raw); err != nil {
				return err
			}
		}
		if err := balance(&path, tok); err != nil {
			return gpxerrors.New(gpxerrors.CodeTagMismatch, src.Name, err)
		}
	}
}

// resumeTemplate replays the stashed closing tag and streams the remainder
// of the template verbatim.
func (m *merger) resumeTemplate(name string, pending *pendingRootClose) error {
	if err := m.write(pending.raw); err != nil {
		return err
	}
	for {
		tok, err := pending.dec.ReadToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return gpxerrors.New(gpxerrors.CodeParse, name, err)
		}
		if err := m.write(tok.Raw); err != nil {
			return err
		}
	}
}

// balance applies the token's effect on the element stack. Self-closing
// elements count as an immediately-closed start tag: pushed before the
// inclusion decision, popped here.
func balance(path *elempath.Path, tok xmltok.Token) error {
	switch {
	case tok.Kind == xmltok.KindStartElement && tok.SelfClosing:
		return path.PopExpect(string(tok.Name))
	case tok.Kind == xmltok.KindEndElement:
		return path.PopExpect(string(tok.Name))
	}
	return nil
}

func (m *merger) write(raw []byte) error {
	n, err := m.dst.Write(raw)
	m.stats.BytesWritten += int64(n)
	if err != nil {
		return gpxerrors.New(gpxerrors.CodeWrite, "", err)
	}
	m.stats.TokensWritten++
	return nil
}
