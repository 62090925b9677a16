// Package protocol implements the JSON-RPC 2.0 wire surface: request and
// response framing, the method table bijective with envelope kinds, the
// envelope transcoder, and the request dispatcher.
package protocol

import (
	"errors"
	"fmt"

	"github.com/arbiterhq/Switchboard/internal/domain"
)

// Version is the only JSON-RPC version the wire accepts.
const Version = "2.0"

// Request is a JSON-RPC 2.0 request object. ID is any JSON value the
// caller chose; it is echoed back untouched.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      any            `json:"id,omitempty"`
}

// Response is a JSON-RPC 2.0 response object. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *ErrorObj `json:"error,omitempty"`
	ID      any       `json:"id,omitempty"`
}

// ErrorObj is a JSON-RPC 2.0 error object.
type ErrorObj struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ErrorObj) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC 2.0 reserved error codes.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Domain error codes. These values are part of the public wire contract
// and must stay stable across releases.
const (
	CodeAgentNotFound     = -32001
	CodeMessageNotFound   = -32002
	CodeTaskNotFound      = -32003
	CodeInvalidTransition = -32004
	CodeMailboxFull       = -32005
)

// NewResult builds a success response echoing the request id.
func NewResult(id, result any) *Response {
	return &Response{JSONRPC: Version, Result: result, ID: id}
}

// NewError builds an error response echoing the request id.
func NewError(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: Version,
		Error:   &ErrorObj{Code: code, Message: message},
		ID:      id,
	}
}

// CodeFor maps a domain error to its stable wire code. domain.ErrNotFound
// is ambiguous on its own (message, task or capability record), so the
// caller names the code for its entity.
func CodeFor(err error, notFoundCode int) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return notFoundCode
	case errors.Is(err, domain.ErrUnknownAgent), errors.Is(err, domain.ErrNotAnAgent):
		return CodeAgentNotFound
	case errors.Is(err, domain.ErrMailboxFull):
		return CodeMailboxFull
	case errors.Is(err, domain.ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, domain.ErrValidation):
		return CodeInvalidParams
	default:
		return CodeInternalError
	}
}
