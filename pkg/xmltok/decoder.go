package xmltok

import (
	"bufio"
	"errors"
	"io"
	"unicode/utf8"
)

const defaultBufferSize = 32 * 1024

// Decoder streams raw XML tokens from a reader. Unlike encoding/xml it never
// rewrites input: every token carries the exact bytes it was lexed from, so
// forwarding tokens to a writer reproduces the input verbatim.
//
// The decoder enforces lexical well-formedness only. It does not verify tag
// balance and it tolerates content before and after the root element; callers
// that need those checks layer them on top.
type Decoder struct {
	r           *bufio.Reader
	bufioReader *bufio.Reader
	raw         []byte
	err         error
	optsRaw     Options
	opts        decoderOptions
	offset      int64
	line        int
	column      int
	depth       int
}

type decoderOptions struct {
	maxDepth        int
	maxTokenSize    int
	bufferSize      int
	trackLineColumn bool
}

// NewDecoder creates a new XML decoder for the reader.
func NewDecoder(r io.Reader, opts ...Options) *Decoder {
	dec := &Decoder{}
	dec.Reset(r, opts...)
	return dec
}

// Reset prepares the decoder for reading from r with new options.
func (d *Decoder) Reset(r io.Reader, opts ...Options) {
	if d == nil {
		return
	}
	joined := JoinOptions(opts...)
	d.optsRaw = joined
	d.opts = resolveOptions(joined)

	d.raw = d.raw[:0]
	d.err = nil
	d.offset = 0
	d.depth = 0
	if d.opts.trackLineColumn {
		d.line = 1
		d.column = 1
	} else {
		d.line = 0
		d.column = 0
	}

	if r == nil {
		d.err = errNilReader
		return
	}
	if bufioReader, ok := r.(*bufio.Reader); ok {
		d.r = bufioReader
		return
	}
	// reuse the internal bufio.Reader to avoid per-reset allocations.
	bufferSize := d.opts.bufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if d.bufioReader == nil || d.bufioReader.Size() != bufferSize {
		d.bufioReader = bufio.NewReaderSize(r, bufferSize)
	} else {
		d.bufioReader.Reset(r)
	}
	d.r = d.bufioReader
}

// Options returns the immutable options snapshot.
func (d *Decoder) Options() Options {
	var zero Options
	if d == nil {
		return zero
	}
	return d.optsRaw
}

// InputOffset reports the absolute byte offset of the next read position.
func (d *Decoder) InputOffset() int64 {
	if d == nil {
		return 0
	}
	return d.offset
}

// ReadToken returns the next XML token. The token's byte slices are only
// valid until the next ReadToken call. io.EOF signals clean end of input.
func (d *Decoder) ReadToken() (Token, error) {
	if d == nil {
		return Token{}, errNilReader
	}
	if d.err != nil {
		return Token{}, d.err
	}
	tok, err := d.scanToken()
	if err != nil {
		return Token{}, d.fail(err)
	}
	return tok, nil
}

func (d *Decoder) fail(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		d.err = io.EOF
		return io.EOF
	}
	var syntax *SyntaxError
	if errors.As(err, &syntax) {
		d.err = err
		return err
	}
	wrapped := &SyntaxError{
		Offset: d.offset,
		Line:   d.line,
		Column: d.column,
		Err:    err,
	}
	d.err = wrapped
	return wrapped
}

func (d *Decoder) scanToken() (Token, error) {
	d.raw = d.raw[:0]
	tok := Token{Line: d.line, Column: d.column}

	b, err := d.readByte()
	if err != nil {
		return Token{}, err
	}
	if b != '<' {
		if err := d.scanCharData(); err != nil {
			return Token{}, err
		}
		tok.Kind = KindCharData
		tok.Raw = d.raw
		return tok, nil
	}

	b, err = d.readByte()
	if err != nil {
		return Token{}, noEOF(err)
	}
	switch b {
	case '/':
		name, err := d.scanEndTag()
		if err != nil {
			return Token{}, err
		}
		if d.depth > 0 {
			d.depth--
		}
		tok.Kind = KindEndElement
		tok.Name = name
		tok.Raw = d.raw
		return tok, nil
	case '?':
		name, err := d.scanPI()
		if err != nil {
			return Token{}, err
		}
		tok.Kind = KindPI
		tok.Name = name
		tok.Raw = d.raw
		return tok, nil
	case '!':
		kind, err := d.scanBang()
		if err != nil {
			return Token{}, err
		}
		tok.Kind = kind
		tok.Raw = d.raw
		return tok, nil
	default:
		if !isNameStartByte(b) {
			return Token{}, errInvalidName
		}
		name, selfClosing, err := d.scanStartTag()
		if err != nil {
			return Token{}, err
		}
		if !selfClosing {
			d.depth++
			if d.opts.maxDepth > 0 && d.depth > d.opts.maxDepth {
				return Token{}, errDepthLimit
			}
		}
		tok.Kind = KindStartElement
		tok.Name = name
		tok.SelfClosing = selfClosing
		tok.Raw = d.raw
		return tok, nil
	}
}

// readByte consumes one byte into the raw buffer.
func (d *Decoder) readByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}
	d.raw = append(d.raw, b)
	d.offset++
	if d.opts.trackLineColumn {
		if b == '\n' {
			d.line++
			d.column = 1
		} else {
			d.column++
		}
	}
	if d.opts.maxTokenSize > 0 && len(d.raw) > d.opts.maxTokenSize {
		return 0, errTokenTooLarge
	}
	return b, nil
}

func (d *Decoder) peekByte() (byte, error) {
	peek, err := d.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return peek[0], nil
}

// noEOF converts a mid-token EOF into a hard error.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return errUnexpectedEOF
	}
	return err
}

// scanCharData consumes character data up to the next '<' or end of input.
// The first byte is already in the raw buffer.
func (d *Decoder) scanCharData() error {
	for {
		b, err := d.peekByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if b == '<' {
			break
		}
		if _, err := d.readByte(); err != nil {
			return err
		}
	}
	return validateCharData(d.raw)
}

func validateCharData(data []byte) error {
	bracketRun := 0
	for i := 0; i < len(data); {
		b := data[i]
		if b < utf8.RuneSelf {
			switch {
			case b == ']':
				bracketRun++
			case b == '>' && bracketRun >= 2:
				return errInvalidToken
			case b < 0x20 && b != '\t' && b != '\n' && b != '\r':
				return errInvalidChar
			default:
			}
			if b != ']' {
				bracketRun = 0
			}
			i++
			continue
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return errInvalidChar
		}
		if !isValidXMLChar(r) {
			return errInvalidChar
		}
		bracketRun = 0
		i += size
	}
	return nil
}

// scanName consumes a name and returns its bounds in the raw buffer.
// The caller guarantees the name's first byte is already consumed.
func (d *Decoder) scanName() (start, end int, err error) {
	start = len(d.raw) - 1
	if !isNameStartByte(d.raw[start]) {
		return 0, 0, errInvalidName
	}
	for {
		b, err := d.peekByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, 0, errUnexpectedEOF
			}
			return 0, 0, err
		}
		if !isNameByte(b) {
			return start, len(d.raw), nil
		}
		if _, err := d.readByte(); err != nil {
			return 0, 0, err
		}
	}
}

// scanEndTag consumes "name [ws] >" after "</".
func (d *Decoder) scanEndTag() ([]byte, error) {
	if _, err := d.readByte(); err != nil {
		return nil, noEOF(err)
	}
	start, end, err := d.scanName()
	if err != nil {
		return nil, err
	}
	for {
		b, err := d.readByte()
		if err != nil {
			return nil, noEOF(err)
		}
		if b == '>' {
			return d.raw[start:end], nil
		}
		if !isWhitespace(b) {
			return nil, errInvalidToken
		}
	}
}

// scanStartTag consumes the remainder of a start tag after "<n" where n is
// the first name byte. Attribute values are not split out; quotes are only
// tracked so '>' inside a value does not terminate the tag.
func (d *Decoder) scanStartTag() (name []byte, selfClosing bool, err error) {
	start, end, err := d.scanName()
	if err != nil {
		return nil, false, err
	}
	if b, err := d.peekByte(); err == nil {
		if !isWhitespace(b) && b != '/' && b != '>' {
			return nil, false, errInvalidToken
		}
	}
	var quote byte
	for {
		b, err := d.readByte()
		if err != nil {
			return nil, false, noEOF(err)
		}
		if quote != 0 {
			switch b {
			case quote:
				quote = 0
			case '<':
				return nil, false, errInvalidToken
			}
			continue
		}
		switch b {
		case '"', '\'':
			quote = b
		case '>':
			return d.raw[start:end], false, nil
		case '/':
			next, err := d.readByte()
			if err != nil {
				return nil, false, noEOF(err)
			}
			if next != '>' {
				return nil, false, errInvalidToken
			}
			return d.raw[start:end], true, nil
		case '<':
			return nil, false, errInvalidToken
		}
	}
}

// scanPI consumes "target ... ?>" after "<?".
func (d *Decoder) scanPI() ([]byte, error) {
	if _, err := d.readByte(); err != nil {
		return nil, noEOF(err)
	}
	start, end, err := d.scanName()
	if err != nil {
		if errors.Is(err, errInvalidName) {
			return nil, errInvalidPI
		}
		return nil, err
	}
	var prev byte
	for {
		b, err := d.readByte()
		if err != nil {
			return nil, noEOF(err)
		}
		if prev == '?' && b == '>' {
			return d.raw[start:end], nil
		}
		prev = b
	}
}

var litCDStart = []byte("[CDATA[")

// scanBang dispatches "<!--", "<![CDATA[" and directives after "<!".
func (d *Decoder) scanBang() (Kind, error) {
	b, err := d.readByte()
	if err != nil {
		return KindNone, noEOF(err)
	}
	switch b {
	case '-':
		next, err := d.readByte()
		if err != nil {
			return KindNone, noEOF(err)
		}
		if next != '-' {
			return KindNone, errInvalidComment
		}
		if err := d.scanComment(); err != nil {
			return KindNone, err
		}
		return KindComment, nil
	case '[':
		for _, want := range litCDStart[1:] {
			got, err := d.readByte()
			if err != nil {
				return KindNone, noEOF(err)
			}
			if got != want {
				return KindNone, errInvalidCDATA
			}
		}
		if err := d.scanCDATA(); err != nil {
			return KindNone, err
		}
		return KindCDATA, nil
	default:
		if !isNameStartByte(b) {
			return KindNone, errInvalidDirective
		}
		if err := d.scanDirective(); err != nil {
			return KindNone, err
		}
		return KindDirective, nil
	}
}

// scanComment consumes up to "-->". Per XML 1.0 §2.5, "--" must not occur
// inside a comment.
func (d *Decoder) scanComment() error {
	dashRun := 0
	for {
		b, err := d.readByte()
		if err != nil {
			return noEOF(err)
		}
		switch b {
		case '-':
			dashRun++
			if dashRun > 2 {
				return errInvalidComment
			}
		case '>':
			if dashRun == 2 {
				return nil
			}
			dashRun = 0
		default:
			if dashRun == 2 {
				return errInvalidComment
			}
			dashRun = 0
		}
	}
}

func (d *Decoder) scanCDATA() error {
	bracketRun := 0
	for {
		b, err := d.readByte()
		if err != nil {
			return noEOF(err)
		}
		switch {
		case b == ']':
			if bracketRun < 2 {
				bracketRun++
			}
		case b == '>' && bracketRun >= 2:
			return nil
		default:
			bracketRun = 0
		}
	}
}

// scanDirective consumes a directive up to its closing '>', honoring quoted
// strings and an internal subset in brackets.
func (d *Decoder) scanDirective() error {
	var quote byte
	bracketDepth := 0
	for {
		b, err := d.readByte()
		if err != nil {
			return noEOF(err)
		}
		if quote != 0 {
			if b == quote {
				quote = 0
			}
			continue
		}
		switch b {
		case '"', '\'':
			quote = b
		case '[':
			bracketDepth++
		case ']':
			if bracketDepth > 0 {
				bracketDepth--
			}
		case '>':
			if bracketDepth == 0 {
				return nil
			}
		}
	}
}

func resolveOptions(opts Options) decoderOptions {
	resolved := decoderOptions{trackLineColumn: true, bufferSize: defaultBufferSize}
	if value, ok := opts.MaxDepth(); ok {
		resolved.maxDepth = normalizeLimit(value)
	}
	if value, ok := opts.MaxTokenSize(); ok {
		resolved.maxTokenSize = normalizeLimit(value)
	}
	if value, ok := opts.BufferSize(); ok {
		resolved.bufferSize = normalizeLimit(value)
	}
	if value, ok := opts.TrackLineColumn(); ok {
		resolved.trackLineColumn = value
	}
	if resolved.bufferSize == 0 {
		resolved.bufferSize = defaultBufferSize
	}
	return resolved
}

func normalizeLimit(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
