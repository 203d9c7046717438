package protocol

import "encoding/json"

const (
	TypeExecuteCode = "execute_code"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is the command envelope sent to the host.
type Request struct {
	Type   string        `json:"type"`
	Params RequestParams `json:"params"`
}

type RequestParams struct {
	Code string `json:"code"`
}

// Response is the single reply object the host writes back.
type Response struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// nestedResult matches BlenderMCP's {"executed": true, "result": "<stdout>"} shape.
type nestedResult struct {
	Executed *bool           `json:"executed,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}
