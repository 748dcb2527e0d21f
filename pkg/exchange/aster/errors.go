package aster

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is a structured exchange error response.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aster: code=%d msg=%s", e.Code, e.Msg)
}

// parseAPIError decodes an error body; falls back to a plain error when the
// body is not the standard {code,msg} shape.
func parseAPIError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return &apiErr
	}
	return fmt.Errorf("aster: status %d: %s", status, string(body))
}

// Margin-related error codes returned on entry with insufficient funds.
const (
	codeMarginInsufficient  = -2019
	codeBalanceInsufficient = -2010
)

// IsBalanceError reports whether the error indicates insufficient balance or
// margin. These are recoverable: the caller skips the order and continues.
func IsBalanceError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == codeMarginInsufficient || apiErr.Code == codeBalanceInsufficient {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient") || strings.Contains(msg, "balance")
}
