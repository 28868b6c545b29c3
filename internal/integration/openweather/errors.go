package openweather

import (
	"fmt"
)

// ErrorKind classifies a failed weather query
type ErrorKind int

const (
	// ErrNetwork covers transport failures and timeouts
	ErrNetwork ErrorKind = iota + 1
	// ErrCityNotFound means the service has no match for the city
	ErrCityNotFound
	// ErrMalformedResponse means a successful body lacks a required field
	ErrMalformedResponse
	// ErrUnknown covers everything else, including undecodable bodies
	ErrUnknown
)

// String returns the snake_case name used in logs
func (k ErrorKind) String() string {
	switch k {
	case ErrNetwork:
		return "network"
	case ErrCityNotFound:
		return "city_not_found"
	case ErrMalformedResponse:
		return "malformed_response"
	case ErrUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// FetchError is returned by Client.Fetch for every failure
type FetchError struct {
	Kind     ErrorKind
	Endpoint string
	City     string
	Err      error
}

// Error includes the endpoint, city and kind
func (e *FetchError) Error() string {
	return fmt.Sprintf("openweather %s %q: %s: %v", e.Endpoint, e.City, e.Kind, e.Err)
}

// Unwrap returns the underlying cause
func (e *FetchError) Unwrap() error {
	return e.Err
}
