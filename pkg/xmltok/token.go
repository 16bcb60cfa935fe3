package xmltok

// Token is a view of the next XML token. Name and Raw alias the decoder's
// internal buffer and are only valid until the next ReadToken call; callers
// that retain a token across reads must copy the bytes they need.
type Token struct {
	// Name holds the element name for start and end elements and the target
	// for processing instructions. Nil for other kinds.
	Name []byte
	// Raw holds the exact input bytes of the token. Writing every token's
	// Raw in order reproduces the input byte for byte.
	Raw []byte
	// Line and Column are the 1-based position where the token starts,
	// or zero when position tracking is disabled.
	Line   int
	Column int
	Kind   Kind
	// SelfClosing reports that a start element ended with "/>".
	SelfClosing bool
}

// IsXMLDecl reports whether the token is the XML declaration.
func (t Token) IsXMLDecl() bool {
	return t.Kind == KindPI && string(t.Name) == "xml"
}
