package dispatcher

// ErrorCode is the closed set of failure codes a call can end with.
type ErrorCode string

const (
	CodeInvalidArguments      ErrorCode = "INVALID_ARGUMENTS"
	CodeResourceNotFound      ErrorCode = "IMAGE_NOT_FOUND"
	CodeNoPresentationContext ErrorCode = "NO_PRESENTATION_CONTEXT"
	CodePermissionDenied      ErrorCode = "PERMISSION_DENIED"
	CodeOperationFailed       ErrorCode = "SAVE_FAILED"
)

// ResultKind tags a CallResult.
type ResultKind int

const (
	KindSuccess ResultKind = iota
	KindFailure
	KindNotImplemented
)

// CallResult is the terminal outcome of one call.
type CallResult struct {
	Kind    ResultKind
	Value   interface{}
	Code    ErrorCode
	Message string
}

// Success builds a successful result.
func Success(v interface{}) CallResult {
	return CallResult{Kind: KindSuccess, Value: v}
}

// Failure builds a failed result.
func Failure(code ErrorCode, message string) CallResult {
	return CallResult{Kind: KindFailure, Code: code, Message: message}
}

// NotImplemented builds the result for a method the channel does not know.
func NotImplemented() CallResult {
	return CallResult{Kind: KindNotImplemented}
}

// Outcome returns a short label for metrics and logs.
func (r CallResult) Outcome() string {
	switch r.Kind {
	case KindSuccess:
		return "success"
	case KindNotImplemented:
		return "not_implemented"
	default:
		return string(r.Code)
	}
}

// Response converts the result into its wire envelope.
func (r CallResult) Response(id string) *CallResponse {
	switch r.Kind {
	case KindSuccess:
		return &CallResponse{ID: id, Ok: true, Result: r.Value}
	case KindNotImplemented:
		return &CallResponse{ID: id, Ok: false, NotImplemented: true}
	default:
		return &CallResponse{
			ID: id,
			Ok: false,
			Error: &ErrorDetail{
				Code:    string(r.Code),
				Message: r.Message,
			},
		}
	}
}
