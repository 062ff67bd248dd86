package client

import "fmt"

// ConnectionError means the backend could not be reached at all
type ConnectionError struct {
	BaseURL string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed. Please check if the backend server is running on %s", e.BaseURL)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RequestError means the backend answered with a non-2xx status
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// AuthenticationError means login or registration was rejected by the backend
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ValidationError reports a local precondition that failed before any request was made
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
