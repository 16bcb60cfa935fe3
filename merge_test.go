package gpxjoin

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	gpxerrors "github.com/jacoelho/gpxjoin/errors"
)

func join(t *testing.T, docs ...string) (string, Stats, error) {
	t.Helper()
	sources := make([]Source, 0, len(docs))
	for i, doc := range docs {
		sources = append(sources, Source{Name: fmt.Sprintf("doc-%d", i), R: strings.NewReader(doc)})
	}
	var out bytes.Buffer
	stats, err := Join(sources, &out)
	return out.String(), stats, err
}

func TestJoinExampleScenario(t *testing.T) {
	out, stats, err := join(t,
		`<gpx><metadata>M</metadata><trk>A</trk></gpx>`,
		`<gpx><trk>B</trk></gpx>`,
	)
	require.NoError(t, err)
	assert.Equal(t, `<gpx><metadata>M</metadata><trk>A</trk><trk>B</trk></gpx>`, out)
	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 1, stats.TracksAppended)
}

func TestJoinCanonicalFixture(t *testing.T) {
	first := `<?xml version="1.0" encoding="utf-8"?>
<gpx version="1.1" creator="gpxjoin" xmlns="http://www.topografix.com/GPX/1/1">
    <metadata>
        <name><![CDATA[this is the first file]]></name>
        <desc>description here</desc>
        <author><name>whatever</name></author>
    </metadata>
    <trk>
        <name>first track</name>
        <trkseg>
            <trkpt lat="47.543448" lon="-121.096462">
                <ele>1008.620662</ele>
                <time>2021-08-27T18:59:24.070Z</time>
            </trkpt>
        </trkseg>
    </trk>
</gpx>
`
	second := `<?xml version="1.0" encoding="utf-8"?>
<gpx version="1.1" creator="gpxjoin" xmlns="http://www.topografix.com/GPX/1/1">
    <metadata>
        <name><![CDATA[this is the second file]]></name>
        <desc>description here</desc>
        <author><name>whatever</name></author>
    </metadata>
    <trk>
        <name>second track</name>
        <trkseg>
            <trkpt lat="47.552213" lon="-121.133853">
                <ele>1750.672203</ele>
                <time>2021-08-27T22:04:05.536Z</time>
            </trkpt>
        </trkseg>
    </trk>
</gpx>
`
	// Indentation at the second track is irregular because the contributor's
	// surrounding whitespace lives outside the trk subtree.
	want := `<?xml version="1.0" encoding="utf-8"?>
<gpx version="1.1" creator="gpxjoin" xmlns="http://www.topografix.com/GPX/1/1">
    <metadata>
        <name><![CDATA[this is the first file]]></name>
        <desc>description here</desc>
        <author><name>whatever</name></author>
    </metadata>
    <trk>
        <name>first track</name>
        <trkseg>
            <trkpt lat="47.543448" lon="-121.096462">
                <ele>1008.620662</ele>
                <time>2021-08-27T18:59:24.070Z</time>
            </trkpt>
        </trkseg>
    </trk>
<trk>
        <name>second track</name>
        <trkseg>
            <trkpt lat="47.552213" lon="-121.133853">
                <ele>1750.672203</ele>
                <time>2021-08-27T22:04:05.536Z</time>
            </trkpt>
        </trkseg>
    </trk></gpx>
`
	out, _, err := join(t, first, second)
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestJoinIdentity(t *testing.T) {
	docs := []string{
		`<gpx creator="x"><metadata>M</metadata></gpx>`,
		"<?xml version=\"1.0\"?>\n<gpx>\n  <trk>A</trk>\n  <trk>B</trk>\n</gpx>\n",
	}
	for _, doc := range docs {
		out, stats, err := join(t, doc)
		require.NoError(t, err)
		assert.Equal(t, doc, out, "single input must reproduce its bytes unchanged")
		assert.Zero(t, stats.TracksAppended)
	}
}

func TestJoinContributorNonTrackDropped(t *testing.T) {
	out, _, err := join(t,
		`<gpx><trk>A</trk></gpx>`,
		`<?xml version="1.0"?><gpx><metadata>SECRET</metadata><wpt lat="1" lon="2"/><trk>B</trk><rte>R</rte></gpx>`,
	)
	require.NoError(t, err)
	assert.Equal(t, `<gpx><trk>A</trk><trk>B</trk></gpx>`, out)
	assert.NotContains(t, out, "SECRET")
	assert.NotContains(t, out, "wpt")
	assert.NotContains(t, out, "rte")
}

func TestJoinTrackOrder(t *testing.T) {
	out, stats, err := join(t,
		`<gpx><trk>t0</trk><trk>t1</trk></gpx>`,
		`<gpx><trk>c1_0</trk><trk>c1_1</trk></gpx>`,
		`<gpx><trk>c2_0</trk></gpx>`,
	)
	require.NoError(t, err)
	assert.Equal(t, `<gpx><trk>t0</trk><trk>t1</trk><trk>c1_0</trk><trk>c1_1</trk><trk>c2_0</trk></gpx>`, out)
	assert.Equal(t, 3, stats.TracksAppended)
}

func TestJoinDeepTrackContentKept(t *testing.T) {
	out, _, err := join(t,
		`<gpx></gpx>`,
		`<gpx><trk><trkseg><trkpt lat="1" lon="2"><ele>3</ele></trkpt></trkseg></trk></gpx>`,
	)
	require.NoError(t, err)
	assert.Equal(t, `<gpx><trk><trkseg><trkpt lat="1" lon="2"><ele>3</ele></trkpt></trkseg></trk></gpx>`, out)
}

func TestJoinNonTrackContainerNotATrackBoundary(t *testing.T) {
	// a trk nested inside a non-trk container under gpx is not recognized
	out, _, err := join(t,
		`<gpx><trk>A</trk></gpx>`,
		`<gpx><extensions><trk>HIDDEN</trk></extensions></gpx>`,
	)
	require.NoError(t, err)
	assert.Equal(t, `<gpx><trk>A</trk></gpx>`, out)
}

func TestJoinSelfClosingTrack(t *testing.T) {
	out, stats, err := join(t,
		`<gpx><trk>A</trk></gpx>`,
		`<gpx><trk/></gpx>`,
	)
	require.NoError(t, err)
	assert.Equal(t, `<gpx><trk>A</trk><trk/></gpx>`, out)
	assert.Equal(t, 1, stats.TracksAppended)
}

func TestJoinTemplateTailPreserved(t *testing.T) {
	out, _, err := join(t,
		"<gpx><trk>A</trk></gpx><!-- after root -->\n",
		`<gpx><trk>B</trk></gpx>`,
	)
	require.NoError(t, err)
	assert.Equal(t, "<gpx><trk>A</trk><trk>B</trk></gpx><!-- after root -->\n", out)
}

func TestJoinTagMismatch(t *testing.T) {
	tests := []struct {
		name string
		docs []string
	}{
		{"stray close in template", []string{`<gpx></trk></gpx>`}},
		{"crossed tags in template", []string{`<gpx><a><b></a></b></gpx>`}},
		{"stray close in contributor", []string{`<gpx></gpx>`, `<gpx><trk>B</trk></trk></gpx>`}},
		{"crossed tags in contributor", []string{`<gpx></gpx>`, `<gpx><a><b></a></b></gpx>`}},
		{"crossed tags outside track subtree", []string{`<gpx></gpx>`, `<gpx><wpt><ele></wpt></ele></gpx>`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := join(t, tt.docs...)
			require.Error(t, err)
			merr, ok := gpxerrors.AsMergeError(err)
			require.True(t, ok, "error = %v, want MergeError", err)
			assert.Equal(t, gpxerrors.CodeTagMismatch, merr.Code)
			assert.Equal(t, fmt.Sprintf("doc-%d", len(tt.docs)-1), merr.Source)
		})
	}
}

func TestJoinMissingTemplateRootClose(t *testing.T) {
	docs := []string{
		`<notgpx><trk>A</trk></notgpx>`,
		`<foo/>`,
	}
	for _, doc := range docs {
		_, _, err := join(t, doc)
		require.Error(t, err)
		merr, ok := gpxerrors.AsMergeError(err)
		require.True(t, ok, "error = %v, want MergeError", err)
		assert.Equal(t, gpxerrors.CodeMissingRootClose, merr.Code)
		assert.Equal(t, "doc-0", merr.Source)
	}
}

func TestJoinContributorRootNotGpx(t *testing.T) {
	// a contributor with a foreign root simply contributes nothing
	out, stats, err := join(t,
		`<gpx><trk>A</trk></gpx>`,
		`<kml><trk>B</trk></kml>`,
	)
	require.NoError(t, err)
	assert.Equal(t, `<gpx><trk>A</trk></gpx>`, out)
	assert.Zero(t, stats.TracksAppended)
}

func TestJoinParseErrorWrapsSource(t *testing.T) {
	_, _, err := join(t,
		`<gpx><trk>A</trk></gpx>`,
		`<gpx><trk>B<!-- bad -- comment --></trk></gpx>`,
	)
	require.Error(t, err)
	merr, ok := gpxerrors.AsMergeError(err)
	require.True(t, ok, "error = %v, want MergeError", err)
	assert.Equal(t, gpxerrors.CodeParse, merr.Code)
	assert.Equal(t, "doc-1", merr.Source)
}

func TestJoinNoSources(t *testing.T) {
	var out bytes.Buffer
	_, err := Join(nil, &out)
	require.ErrorIs(t, err, ErrNoSources)
	assert.Zero(t, out.Len())
}

type failingWriter struct {
	remaining int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if len(p) > w.remaining {
		n := w.remaining
		w.remaining = 0
		return n, errors.New("sink full")
	}
	w.remaining -= len(p)
	return len(p), nil
}

func TestJoinWriteError(t *testing.T) {
	sources := []Source{{Name: "a", R: strings.NewReader(`<gpx><trk>AAAA</trk></gpx>`)}}
	_, err := Join(sources, &failingWriter{remaining: 8})
	require.Error(t, err)
	merr, ok := gpxerrors.AsMergeError(err)
	require.True(t, ok, "error = %v, want MergeError", err)
	assert.Equal(t, gpxerrors.CodeWrite, merr.Code)
}

func TestJoinStats(t *testing.T) {
	out, stats, err := join(t,
		`<gpx><trk>A</trk></gpx>`,
		`<gpx><trk>B</trk><trk>C</trk></gpx>`,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 2, stats.TracksAppended)
	assert.Equal(t, int64(len(out)), stats.BytesWritten)
	assert.Positive(t, stats.TokensWritten)
}

// Output equals the template body, every contributor's tracks in source
// order, then the closing tag, for any number of contributors and tracks.
func TestPropertyTrackConcatenationOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[a-z0-9 ]{0,12}`)

		templateTracks := rapid.SliceOfN(text, 0, 4).Draw(rt, "templateTracks")
		var templateBody strings.Builder
		templateBody.WriteString(`<gpx version="1.1"><metadata><name>tpl</name></metadata>`)
		for _, tk := range templateTracks {
			fmt.Fprintf(&templateBody, "<trk><name>%s</name></trk>", tk)
		}
		template := templateBody.String() + "</gpx>"

		contributors := rapid.SliceOfN(rapid.SliceOfN(text, 0, 3), 1, 4).Draw(rt, "contributors")
		docs := []string{template}
		var wantTracks strings.Builder
		for _, tracks := range contributors {
			var doc strings.Builder
			doc.WriteString(`<gpx><metadata><name>dropped</name></metadata>`)
			for _, tk := range tracks {
				fmt.Fprintf(&doc, "<trk><name>%s</name></trk>", tk)
				fmt.Fprintf(&wantTracks, "<trk><name>%s</name></trk>", tk)
			}
			doc.WriteString("</gpx>")
			docs = append(docs, doc.String())
		}

		out, _, err := join(t, docs...)
		if err != nil {
			rt.Fatalf("Join error = %v", err)
		}
		want := templateBody.String() + wantTracks.String() + "</gpx>"
		if out != want {
			rt.Fatalf("merged output = %q, want %q", out, want)
		}
	})
}

// Merging a template with zero contributors reproduces it byte for byte.
func TestPropertyIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[a-z0-9 ]{0,12}`)
		tracks := rapid.SliceOfN(text, 0, 5).Draw(rt, "tracks")

		var doc strings.Builder
		doc.WriteString("<?xml version=\"1.0\"?>\n<gpx creator=\"prop\">\n")
		for _, tk := range tracks {
			fmt.Fprintf(&doc, "  <trk><name>%s</name></trk>\n", tk)
		}
		doc.WriteString("</gpx>\n")

		out, _, err := join(t, doc.String())
		if err != nil {
			rt.Fatalf("Join error = %v", err)
		}
		if out != doc.String() {
			rt.Fatalf("identity merge output = %q, want %q", out, doc.String())
		}
	})
}

// A stray extra end tag fails the run in whichever source it appears.
func TestPropertyStrayEndTagAlwaysFails(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		clean := `<gpx><trk>ok</trk></gpx>`
		corrupt := `<gpx><trk>bad</trk></trk></gpx>`
		total := rapid.IntRange(1, 4).Draw(rt, "total")
		corruptAt := rapid.IntRange(0, total-1).Draw(rt, "corruptAt")

		docs := make([]string, total)
		for i := range docs {
			if i == corruptAt {
				docs[i] = corrupt
			} else {
				docs[i] = clean
			}
		}
		_, _, err := join(t, docs...)
		if err == nil {
			rt.Fatalf("merge with corrupt source %d of %d succeeded, want TagMismatchError", corruptAt, total)
		}
		merr, ok := gpxerrors.AsMergeError(err)
		if !ok || merr.Code != gpxerrors.CodeTagMismatch {
			rt.Fatalf("error = %v, want %s", err, gpxerrors.CodeTagMismatch)
		}
	})
}
