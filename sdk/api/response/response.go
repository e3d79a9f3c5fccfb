// Package response defines the transport-neutral response contract used by
// connection handlers, together with the typed options and the metadata frame
// convention shared by the server and cooperating clients.
package response

// Response is implemented by every transport variant able to answer an
// inbound event. Each call reports whether the transport accepted it.
type Response interface {
	// Status emits the status code of the response.
	Status(code int) bool
	// Header emits a raw "Key: Value" header line.
	Header(raw string) bool
	// Cookie emits a Set-Cookie line built from key, value and attributes.
	Cookie(key, value string, opts ...CookieOption) bool
	// Redirect emits a status (302 when code is omitted) followed by a Location header.
	Redirect(url string, code ...int) bool
	// Write sends a body frame. Empty data is rejected.
	Write(data []byte, opts ...Option) bool
	// SendFile transfers the [Start, End) range of a file.
	SendFile(filename string, opts ...Option) bool
	// End sends a final body frame. It does not close the connection.
	End(data []byte, opts ...Option) bool
}
