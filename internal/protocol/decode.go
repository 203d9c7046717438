package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeRequest parses one request line. The fake host uses it.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(bytes.TrimSpace(line), &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return req, nil
}

// DecodeResponse parses one complete response object.
func DecodeResponse(data []byte) (Response, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Response{}, fmt.Errorf("%w: expected JSON object", ErrMalformedResponse)
	}
	var resp Response
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if dec.More() {
		return Response{}, fmt.Errorf("%w: trailing data after response", ErrMalformedResponse)
	}
	return resp, nil
}

// Err maps the reply status to an error; nil for success.
func (r Response) Err() error {
	switch r.Status {
	case StatusSuccess:
		return nil
	case StatusError:
		return &RemoteError{Message: strings.TrimSpace(r.Message)}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStatus, r.Status)
	}
}

// Output flattens the result field into text.
func (r Response) Output() string {
	return flatten(r.Result)
}

func flatten(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '{':
		var nested nestedResult
		if err := json.Unmarshal(raw, &nested); err == nil && len(nested.Result) > 0 {
			return flatten(nested.Result)
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

// Complete reports whether buf holds one whole JSON value.
func Complete(buf []byte) bool {
	buf = bytes.TrimSpace(buf)
	if len(buf) == 0 {
		return false
	}
	return json.Valid(buf)
}
