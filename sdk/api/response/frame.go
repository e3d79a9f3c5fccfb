package response

import (
	"bytes"
	"strconv"
	"strings"
)

// Metadata frames are ordinary push frames whose payload starts with
// HeaderPrefix. Cooperating clients rely on this prefix, so it is part of the
// wire contract and must not change.
const (
	HeaderPrefix    = "Header-"
	statusKey       = "Status"
	setCookieKey    = "Set-Cookie"
	headerSeparator = ": "
)

// Kind classifies a received frame.
type Kind int

const (
	KindBody Kind = iota
	KindStatus
	KindHeader
	KindCookie
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindHeader:
		return "header"
	case KindCookie:
		return "cookie"
	default:
		return "body"
	}
}

// Frame is the decoded form of a received payload.
type Frame struct {
	Kind  Kind
	Key   string
	Value string
	// Code is set for KindStatus frames whose value is numeric.
	Code int
	// Body holds the raw payload of KindBody frames.
	Body []byte
}

// StatusLine returns the payload of a status metadata frame.
func StatusLine(code int) string {
	return HeaderLine(statusKey, strconv.Itoa(code))
}

// HeaderLine returns the payload of a header metadata frame.
func HeaderLine(key, value string) string {
	return HeaderPrefix + key + headerSeparator + value
}

// CookieLine returns the payload of a Set-Cookie metadata frame.
func CookieLine(cookie string) string {
	return HeaderLine(setCookieKey, cookie)
}

// SplitHeader splits a raw "Key: Value" line on its first colon. The value is
// trimmed; a line without a colon yields the whole line as key.
func SplitHeader(raw string) (key, value string) {
	k, v, ok := strings.Cut(raw, ":")
	if !ok {
		return raw, ""
	}
	return k, strings.TrimSpace(v)
}

// ParseFrame classifies payload according to the metadata prefix convention.
// Anything that does not look like "Header-<Key>: <Value>" is a body frame.
func ParseFrame(payload []byte) Frame {
	if !bytes.HasPrefix(payload, []byte(HeaderPrefix)) {
		return Frame{Kind: KindBody, Body: payload}
	}
	rest := string(payload[len(HeaderPrefix):])
	key, value, ok := strings.Cut(rest, headerSeparator)
	if !ok || key == "" {
		return Frame{Kind: KindBody, Body: payload}
	}
	f := Frame{Kind: KindHeader, Key: key, Value: value}
	switch key {
	case statusKey:
		f.Kind = KindStatus
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			f.Code = n
		}
	case setCookieKey:
		f.Kind = KindCookie
	}
	return f
}
