package api

import (
	"net/http"
	"strconv"
	"strings"
)

var supportedVersions = map[string]bool{
	"HTTP/1.0": true,
	"HTTP/1.1": true,
	"HTTP/2.0": true,
}

// Request is a parsed request. Only the request line, the header block and
// a Content-Length delimited body are understood.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers map[string]string
	Body    string
}

// RequestError is a malformed request together with the response it maps to.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// ParseRequest parses raw request text. Lines are LF separated, a trailing
// CR is dropped. Headers end at the first empty line; the body is whatever
// follows, cut to Content-Length (0 when absent or unparseable).
func ParseRequest(raw string) (*Request, error) {
	first, rest, ok := nextLine(raw)
	if !ok {
		return nil, &RequestError{Status: http.StatusBadRequest, Message: msgInvalidRequest}
	}

	parts := strings.Fields(first)
	if len(parts) != 3 {
		return nil, &RequestError{Status: http.StatusBadRequest, Message: msgInvalidRequestLine}
	}
	req := &Request{
		Method:  parts[0],
		Path:    parts[1],
		Version: parts[2],
		Headers: make(map[string]string),
	}
	if !supportedVersions[req.Version] {
		return nil, &RequestError{Status: http.StatusHTTPVersionNotSupported, Message: msgVersionNotSupported}
	}

	contentLength := 0
	for {
		var line string
		line, rest, ok = nextLine(rest)
		if !ok || line == "" {
			break
		}
		key, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, &RequestError{Status: http.StatusBadRequest, Message: msgInvalidHeader}
		}
		if strings.EqualFold(key, "Content-Length") {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				n = 0
			}
			contentLength = n
		}
		req.Headers[key] = value
	}

	if contentLength > len(rest) {
		return nil, &RequestError{Status: http.StatusBadRequest, Message: msgShortBody}
	}
	req.Body = rest[:contentLength]
	return req, nil
}

// nextLine splits off the first line of s. ok is false once s is exhausted.
func nextLine(s string) (line, rest string, ok bool) {
	if s == "" {
		return "", "", false
	}
	line, rest, _ = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, true
}
