package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const contentType = "application/json; charset=UTF-8"

// Response is the outcome of processing one request.
type Response struct {
	Status int
	Body   string
}

// StatusLine returns e.g. "404 Not Found".
func (r Response) StatusLine() string {
	return strconv.Itoa(r.Status) + " " + http.StatusText(r.Status)
}

// Format renders r as a complete HTTP/1.1 response dated now. The
// connection is always closed after one response.
func (r Response) Format(now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %s\r\n", r.StatusLine())
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(http.TimeFormat))
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(r.Body))
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(r.Body)
	return []byte(b.String())
}
