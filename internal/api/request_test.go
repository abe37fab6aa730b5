package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want *Request
	}{
		{
			name: "request line only",
			raw:  "GET /todos HTTP/1.1\r\n\r\n",
			want: &Request{Method: "GET", Path: "/todos", Version: "HTTP/1.1", Headers: map[string]string{}},
		},
		{
			name: "no trailing newline",
			raw:  "GET /todos HTTP/1.0",
			want: &Request{Method: "GET", Path: "/todos", Version: "HTTP/1.0", Headers: map[string]string{}},
		},
		{
			name: "headers and body cut to content length",
			raw:  "POST /todos HTTP/1.1\r\nHost: localhost\r\nContent-Length: 5\r\n\r\nhello world",
			want: &Request{
				Method: "POST", Path: "/todos", Version: "HTTP/1.1",
				Headers: map[string]string{"Host": "localhost", "Content-Length": "5"},
				Body:    "hello",
			},
		},
		{
			name: "bare LF line endings and lowercase content-length",
			raw:  "PUT /todos/1 HTTP/2.0\ncontent-length: 2\n\n{}",
			want: &Request{
				Method: "PUT", Path: "/todos/1", Version: "HTTP/2.0",
				Headers: map[string]string{"content-length": "2"},
				Body:    "{}",
			},
		},
		{
			name: "unparseable content length means empty body",
			raw:  "POST /todos HTTP/1.1\r\nContent-Length: lots\r\n\r\n{\"title\":\"x\"}",
			want: &Request{
				Method: "POST", Path: "/todos", Version: "HTTP/1.1",
				Headers: map[string]string{"Content-Length": "lots"},
			},
		},
		{
			name: "negative content length means empty body",
			raw:  "POST /todos HTTP/1.1\r\nContent-Length: -3\r\n\r\nabc",
			want: &Request{
				Method: "POST", Path: "/todos", Version: "HTTP/1.1",
				Headers: map[string]string{"Content-Length": "-3"},
			},
		},
		{
			name: "header value keeps later colon-space",
			raw:  "GET /todos HTTP/1.1\r\nX-Note: a: b\r\n\r\n",
			want: &Request{
				Method: "GET", Path: "/todos", Version: "HTTP/1.1",
				Headers: map[string]string{"X-Note": "a: b"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRequest(tt.raw)
			if err != nil {
				t.Fatalf("ParseRequest: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseRequest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRequest_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		raw        string
		wantStatus int
		wantMsg    string
	}{
		{"empty input", "", http.StatusBadRequest, msgInvalidRequest},
		{"two tokens", "GET /todos\r\n\r\n", http.StatusBadRequest, msgInvalidRequestLine},
		{"four tokens", "GET /todos HTTP/1.1 extra\r\n\r\n", http.StatusBadRequest, msgInvalidRequestLine},
		{"blank request line", "\r\n\r\n", http.StatusBadRequest, msgInvalidRequestLine},
		{"unsupported version", "GET /todos HTTP/3.0\r\n\r\n", http.StatusHTTPVersionNotSupported, msgVersionNotSupported},
		{"version checked before route", "BREW /pot HTCPCP/1.0\r\n\r\n", http.StatusHTTPVersionNotSupported, msgVersionNotSupported},
		{"version checked before headers", "GET /todos HTTP/0.9\r\nbroken\r\n\r\n", http.StatusHTTPVersionNotSupported, msgVersionNotSupported},
		{"header without colon", "GET /todos HTTP/1.1\r\nbroken\r\n\r\n", http.StatusBadRequest, msgInvalidHeader},
		{"header colon without space", "GET /todos HTTP/1.1\r\nHost:localhost\r\n\r\n", http.StatusBadRequest, msgInvalidHeader},
		{"body shorter than declared", "POST /todos HTTP/1.1\r\nContent-Length: 50\r\n\r\n{}", http.StatusBadRequest, msgShortBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseRequest(tt.raw)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("ParseRequest error = %v, want *RequestError", err)
			}
			if reqErr.Status != tt.wantStatus || reqErr.Message != tt.wantMsg {
				t.Errorf("got (%d, %q), want (%d, %q)", reqErr.Status, reqErr.Message, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}
