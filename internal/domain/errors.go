package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited indicates rate limit exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrEmptyMessage indicates a blank visitor message
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMissingLeadFields indicates a lead form without name or phone
	ErrMissingLeadFields = errors.New("name and phone are required")
	// ErrFormNotExpected indicates a form submission outside the form step
	ErrFormNotExpected = errors.New("lead form is not awaiting submission")
	// ErrCompletionFailed indicates the completion service failed after retries
	ErrCompletionFailed = errors.New("failed to get response")
)
