package apiclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrSessionExpired matches any error produced by a 401 response. By the time
// it is returned the session store has already been cleared.
var ErrSessionExpired = errors.New("session expired")

// APIError is a non-2xx response from the payment API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Is(target error) bool {
	return target == ErrSessionExpired && e.StatusCode == http.StatusUnauthorized
}

// Message returns the text to show for err: the API's message when there is
// one, otherwise fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// errorMessage extracts the human message from an error body: detail as a
// string, the first msg of a detail list, then message.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}

	if len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil && strings.TrimSpace(detail) != "" {
			return detail
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 && items[0].Msg != "" {
			return items[0].Msg
		}
	}
	if strings.TrimSpace(payload.Message) != "" {
		return payload.Message
	}
	return fallback
}
