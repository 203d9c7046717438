package protocol

import (
	"encoding/json"
	"strings"
)

// EncodeRequest returns the newline-terminated execute_code line for code.
func EncodeRequest(code string) ([]byte, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}
	line, err := json.Marshal(Request{
		Type:   TypeExecuteCode,
		Params: RequestParams{Code: code},
	})
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// EncodeResponse is the host-side encoder; fakes and tests use it.
func EncodeResponse(resp Response) ([]byte, error) {
	line, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// SuccessResponse wraps output the way BlenderMCP does.
func SuccessResponse(output string) Response {
	executed := true
	raw, _ := json.Marshal(nestedResult{Executed: &executed, Result: mustString(output)})
	return Response{Status: StatusSuccess, Result: raw}
}

// ErrorResponse is the status:"error" reply for message.
func ErrorResponse(message string) Response {
	return Response{Status: StatusError, Message: message}
}

func mustString(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}
