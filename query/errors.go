package query

import (
	"errors"
	"strings"
)

// ErrBadRequest matches every error caused by invalid request parameters
var ErrBadRequest = errors.New("bad request")

// BadRequestError is returned when a request is rejected before any store access.
// Invalid and Allowed enumerate the offending and the accepted values when the
// rejection concerns a list (items, joins, fields).
type BadRequestError struct {
	Reason  string
	Message string
	Invalid []string
	Allowed []string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrBadRequest) match any BadRequestError
func (e *BadRequestError) Is(target error) bool {
	return target == ErrBadRequest
}

// Rejection reasons, also used as metric labels
const (
	ReasonItem     = "item"
	ReasonJoin     = "join"
	ReasonField    = "field"
	ReasonOperator = "operator"
	ReasonValue    = "value"

	// ReasonParameter is a malformed query string, rejected before compiling
	ReasonParameter = "parameter"
)

func badRequest(reason, msg string) *BadRequestError {
	return &BadRequestError{Reason: reason, Message: msg}
}

func joinList(values []string) string {
	return strings.Join(values, ", ")
}
