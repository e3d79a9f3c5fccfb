package response

import (
	"strconv"
	"strings"
)

// Options holds the per-call settings of Write, End and SendFile.
type Options struct {
	// BinaryData selects a binary frame; false sends a text frame.
	BinaryData bool
	// Finish marks the frame as the last fragment of its message.
	Finish bool
	// Start is the file offset used by SendFile.
	Start int64
	// End is the exclusive end offset used by SendFile.
	End int64
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the options used when a call passes none.
func DefaultOptions() Options {
	return Options{BinaryData: true, Finish: true}
}

// ResolveOptions applies opts on top of DefaultOptions.
func ResolveOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// WithBinaryData sets the binary/text flag.
func WithBinaryData(b bool) Option { return func(o *Options) { o.BinaryData = b } }

// WithFinish sets the final-fragment flag.
func WithFinish(b bool) Option { return func(o *Options) { o.Finish = b } }

// WithStart sets the SendFile start offset.
func WithStart(n int64) Option { return func(o *Options) { o.Start = n } }

// WithEnd sets the SendFile end offset.
func WithEnd(n int64) Option { return func(o *Options) { o.End = n } }

// WithRange sets both SendFile offsets.
func WithRange(start, end int64) Option {
	return func(o *Options) {
		o.Start = start
		o.End = end
	}
}

// WithOptions replaces the options wholesale.
func WithOptions(v Options) Option { return func(o *Options) { *o = v } }

// OptionsFromBag resolves options from a loosely typed key/value bag such as
// one decoded from an inbound message. Recognized keys are binary_data,
// finish, start and end. Missing booleans keep their defaults; integers that
// fail to parse become 0.
func OptionsFromBag(bag map[string]string) Options {
	o := DefaultOptions()
	if bag == nil {
		return o
	}
	if v, ok := bag["binary_data"]; ok {
		o.BinaryData = parseBool(v, o.BinaryData)
	}
	if v, ok := bag["finish"]; ok {
		o.Finish = parseBool(v, o.Finish)
	}
	o.Start = parseInt(bag["start"])
	o.End = parseInt(bag["end"])
	return o
}

func parseBool(v string, def bool) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

func parseInt(v string) int64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int64(f)
	}
	return 0
}
