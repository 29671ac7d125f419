package alphavantage

import "fmt"

// ErrRateLimitExceeded is returned when the daily request budget is spent or
// Alpha Vantage reports a frequency limit.
type ErrRateLimitExceeded struct{}

func (ErrRateLimitExceeded) Error() string {
	return "alpha vantage rate limit exceeded"
}

// ErrInvalidAPIKey is returned when Alpha Vantage rejects the API key.
type ErrInvalidAPIKey struct{}

func (ErrInvalidAPIKey) Error() string {
	return "alpha vantage API key is invalid or missing"
}

// ErrSymbolNotFound is returned when Alpha Vantage has no data for a symbol.
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Symbol)
}

// APIError is an "Error Message" response that is not one of the typed errors.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpha vantage error: %s", e.Message)
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("alpha vantage returned HTTP %d", e.StatusCode)
}
