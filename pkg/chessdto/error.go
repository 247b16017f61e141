package chessdto

// DomainError is the boundary form of a failed operation.
type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess service error"
}

// Body returns the JSON fields every error payload carries.
func (e DomainError) Body() ErrorBody {
	return ErrorBody{Error: e.Error(), Code: e.Code, Retryable: e.Retryable}
}

// ErrorBody is embedded in responses that can fail.
type ErrorBody struct {
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorResponse is returned by endpoints whose success shape has no "ok"
// field.
type ErrorResponse struct {
	OK bool `json:"ok"`
	ErrorBody
}
