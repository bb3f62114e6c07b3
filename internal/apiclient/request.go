package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Request describes one backend call. It is built per call and never mutated
// once handed to the client; each attempt derives a fresh *http.Request from it.
type Request struct {
	Method string
	// Path is either a resolved endpoint path, joined to the client base URL,
	// or an absolute URL.
	Path   string
	Header http.Header
	Body   []byte
	// Endpoint is the logical endpoint name, used for metrics and logs.
	Endpoint string
}

// NewRequest builds a request with body encoded as JSON. A nil body sends none.
func NewRequest(method, path string, body any) (*Request, error) {
	req := &Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		req.Body = data
	}
	return req, nil
}

// Response is a received backend response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
