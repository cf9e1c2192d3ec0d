package fetch

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

// Result holds a successful fetch outcome with its metadata.
type Result struct {
	// URL is the requested URL as given by the caller.
	URL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// Content is the raw response body.
	Content []byte

	// Text is the body decoded to UTF-8 per the response's declared
	// charset. Falls back to the raw bytes when no charset applies.
	Text string

	// Headers are the response headers.
	Headers http.Header

	// Elapsed is the wall-clock duration of the fetch, including rate-limit
	// waits and retries.
	Elapsed time.Duration

	// ContentType is the response's Content-Type header value.
	ContentType string
}

// decodeText converts a response body to UTF-8 using the charset declared
// in the Content-Type header, sniffing the content when none is declared.
func decodeText(body []byte, contentType string) string {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
