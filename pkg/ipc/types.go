package ipc

import "encoding/json"

// Error codes shared by the daemon and its clients.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknownMethod  = "UNKNOWN_METHOD"
	CodeInternal       = "INTERNAL"
	CodeNotFound       = "NOT_FOUND"
	CodeBusy           = "BUSY"
	CodeRejected       = "REJECTED"
)

// Request models RPC requests.
type Request struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response models RPC responses. Streaming methods send any number of
// frames with Event set before a final frame without it.
type Response struct {
	ID      string          `json:"id,omitempty"`
	OK      bool            `json:"ok"`
	Event   bool            `json:"event,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	TraceID string          `json:"traceId,omitempty"`
}

// Error follows the API contract for structured failures.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message + " (" + e.Code + ")"
}

// Errorf helps build protocol errors.
func Errorf(code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}
