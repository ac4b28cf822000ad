package client

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Error is a PostgREST error response.
type Error struct {
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Status  int     `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}
	if gjson.ValidBytes(body) && gjson.GetBytes(body, "code").Exists() {
		if err := json.Unmarshal(body, e); err == nil {
			return e
		}
	}
	e.Message = string(body)
	return e
}
