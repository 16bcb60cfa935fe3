package xmltok

// Options holds decoder configuration values.
// The zero value means no overrides.
type Options struct {
	maxDepth        int
	maxTokenSize    int
	bufferSize      int
	trackLineColumn bool

	maxDepthSet        bool
	maxTokenSizeSet    bool
	bufferSizeSet      bool
	trackLineColumnSet bool
}

// JoinOptions combines multiple option sets into one in declaration order.
// Later options override earlier ones when set.
func JoinOptions(srcs ...Options) Options {
	var merged Options
	for _, src := range srcs {
		merged.merge(src)
	}
	return merged
}

func (opts *Options) merge(src Options) {
	if src.maxDepthSet {
		opts.maxDepth = src.maxDepth
		opts.maxDepthSet = true
	}
	if src.maxTokenSizeSet {
		opts.maxTokenSize = src.maxTokenSize
		opts.maxTokenSizeSet = true
	}
	if src.bufferSizeSet {
		opts.bufferSize = src.bufferSize
		opts.bufferSizeSet = true
	}
	if src.trackLineColumnSet {
		opts.trackLineColumn = src.trackLineColumn
		opts.trackLineColumnSet = true
	}
}

// WithMaxDepth limits element nesting depth. Zero or negative means unlimited.
func WithMaxDepth(n int) Options {
	return Options{maxDepth: n, maxDepthSet: true}
}

// WithMaxTokenSize limits the byte size of a single token. Zero or negative
// means unlimited.
func WithMaxTokenSize(n int) Options {
	return Options{maxTokenSize: n, maxTokenSizeSet: true}
}

// WithBufferSize sets the read buffer size.
func WithBufferSize(n int) Options {
	return Options{bufferSize: n, bufferSizeSet: true}
}

// WithTrackLineColumn toggles line/column tracking. Enabled by default.
func WithTrackLineColumn(enabled bool) Options {
	return Options{trackLineColumn: enabled, trackLineColumnSet: true}
}

// MaxDepth returns the configured depth limit, if set.
func (opts Options) MaxDepth() (int, bool) {
	return opts.maxDepth, opts.maxDepthSet
}

// MaxTokenSize returns the configured token size limit, if set.
func (opts Options) MaxTokenSize() (int, bool) {
	return opts.maxTokenSize, opts.maxTokenSizeSet
}

// BufferSize returns the configured buffer size, if set.
func (opts Options) BufferSize() (int, bool) {
	return opts.bufferSize, opts.bufferSizeSet
}

// TrackLineColumn returns the configured tracking toggle, if set.
func (opts Options) TrackLineColumn() (bool, bool) {
	return opts.trackLineColumn, opts.trackLineColumnSet
}
