// Package dispatcher routes incoming channel calls to capability providers
// and delivers exactly one reply per call.
package dispatcher

import "encoding/json"

// CallEnvelope is the JSON envelope for incoming channel calls.
type CallEnvelope struct {
	ID        string             `json:"id"`
	Method    string             `json:"method"`
	Arguments json.RawMessage    `json:"arguments,omitempty"`
	Ctx       *InvocationContext `json:"ctx,omitempty"`
}

// CallResponse is the JSON envelope for channel replies.
type CallResponse struct {
	ID             string       `json:"id"`
	Ok             bool         `json:"ok"`
	Result         interface{}  `json:"result,omitempty"`
	Error          *ErrorDetail `json:"error,omitempty"`
	NotImplemented bool         `json:"notImplemented,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	Caller        string `json:"caller,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}
