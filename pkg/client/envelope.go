package client

import (
	"encoding/json"
	"fmt"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// DecodeData unwraps the {"data": ...} envelope into target, or returns an
// *APIError for non-2xx responses.
func DecodeData(resp *Response, target any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Code string `json:"code"`
		}
		_ = json.Unmarshal(resp.Body, &errResp)
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Code,
			Message:    GetErrorMessage(resp),
		}
	}

	envelope := struct {
		Data any `json:"data"`
	}{Data: target}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
