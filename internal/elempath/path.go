// Package elempath tracks the open-element ancestry of a streaming XML scan.
package elempath

import (
	"strings"

	gpxerrors "github.com/jacoelho/gpxjoin/errors"
)

// Path is the stack of open element names from the document root to the
// current parse position. The zero value is an empty path.
type Path struct {
	names []string
}

// Depth reports the current nesting depth.
func (p *Path) Depth() int {
	return len(p.names)
}

// Push appends name to the path.
func (p *Path) Push(name string) {
	p.names = append(p.names, name)
}

// PopExpect removes the innermost element, failing with a TagMismatchError
// when the path is empty or the removed name differs from name.
func (p *Path) PopExpect(name string) error {
	if len(p.names) == 0 {
		return &gpxerrors.TagMismatchError{Found: name}
	}
	top := p.names[len(p.names)-1]
	if top != name {
		return &gpxerrors.TagMismatchError{Expected: top, Found: name}
	}
	p.names = p.names[:len(p.names)-1]
	return nil
}

// IsExactly reports whether the path equals pattern element for element.
func (p *Path) IsExactly(pattern ...string) bool {
	if len(p.names) != len(pattern) {
		return false
	}
	return p.hasPrefix(pattern)
}

// HasPrefix reports whether the path starts with pattern. A path matching
// the pattern exactly also has it as a prefix.
func (p *Path) HasPrefix(pattern ...string) bool {
	if len(p.names) < len(pattern) {
		return false
	}
	return p.hasPrefix(pattern)
}

func (p *Path) hasPrefix(pattern []string) bool {
	for i, want := range pattern {
		if p.names[i] != want {
			return false
		}
	}
	return true
}

// String renders the path with slash separators, "/gpx/trk" style.
func (p *Path) String() string {
	if len(p.names) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, name := range p.names {
		b.WriteByte('/')
		b.WriteString(name)
	}
	return b.String()
}
