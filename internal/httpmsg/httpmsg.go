// Package httpmsg holds the transport-independent request and response values
// passed between the server shell, the router and its dispatch targets.
package httpmsg

import (
	"net/http"
)

var (
	notFoundBody            = []byte("Not Found")
	internalServerErrorBody = []byte("Internal Server Error")
)

// Request is what the server shell hands the router, once per request.
type Request struct {
	Method     string
	Path       string // always starts with "/"
	Query      string
	Header     http.Header
	Body       []byte
	RemoteAddr string
	Host       string
}

// Response is built fresh per request and never reused.
type Response struct {
	Status int
	Body   []byte

	// empty means "send no Content-Type header at all"
	ContentType string

	// extra headers, only ever set by a real backend
	Header http.Header
}

// OK is a 200 with the given body and (possibly empty) content type.
func OK(body []byte, contentType string) *Response {
	return &Response{
		Status:      http.StatusOK,
		Body:        body,
		ContentType: contentType,
	}
}

// NotFound is the fixed-body 404.
func NotFound() *Response {
	return &Response{
		Status: http.StatusNotFound,
		Body:   append([]byte(nil), notFoundBody...),
	}
}

// InternalServerError is the fixed-body 500.
func InternalServerError() *Response {
	return &Response{
		Status: http.StatusInternalServerError,
		Body:   append([]byte(nil), internalServerErrorBody...),
	}
}
