package app

import "fmt"

// DomainError is a service-layer failure with a fixed HTTP status and a
// machine-readable code (FORBIDDEN, VALIDATION_ERROR, CARD_DELETED, ...).
// Anything else that reaches the handler maps through mapError instead.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
