package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"

	"google.golang.org/genai"

	"apiscribe/internal/types"
)

// authPattern matches the status text SDKs put in their error messages.
var authPattern = regexp.MustCompile(`(?i)\b(401|403)\b|unauthorized|forbidden|invalid[ _-]?api[ _-]?key|permission denied`)

// classify maps a backend error to ErrNetwork, ErrAuthentication or ErrService.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return types.ErrNetwork
	}

	if code, ok := statusCode(err); ok {
		if code == 401 || code == 403 {
			return types.ErrAuthentication
		}
		return types.ErrService
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return types.ErrNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return types.ErrNetwork
	}

	if authPattern.MatchString(err.Error()) {
		return types.ErrAuthentication
	}
	return types.ErrService
}

// statusCode extracts an HTTP status from errors that carry one structurally.
func statusCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return apiErr.Code, true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// StatusError is a non-2xx reply from a backend that exposes its status code.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d %s: %s", e.Code, http.StatusText(e.Code), e.Message)
}
