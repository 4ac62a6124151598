package directus

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from Directus.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("directus: %s (%s)", e.Code, e.Message)
	}
	return fmt.Sprintf("directus: unexpected status %d", e.Status)
}

// errorBody mirrors the {"errors": [...]} envelope.
type errorBody struct {
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Errors) > 0 {
		apiErr.Code = eb.Errors[0].Extensions.Code
		apiErr.Message = eb.Errors[0].Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
