// Package errors is the error shape the HTTP API renders to clients.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is an error with an HTTP status and optional per-field details.
type Error struct {
	Status  int
	Err     error
	Details []Detail
}

// Detail points at a single offending request field.
type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s, details: %v", e.Status, e.Err, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type transport struct {
	Message string   `json:"message"`
	Details []Detail `json:"details"`
	Status  int      `json:"status"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	msg := http.StatusText(e.Status)
	if e.Err != nil {
		msg = e.Err.Error()
	}

	return json.Marshal(transport{
		Message: msg,
		Details: e.Details,
		Status:  e.Status,
	})
}

func (e *Error) UnmarshalJSON(byts []byte) error {
	t := transport{}
	if err := json.Unmarshal(byts, &t); err != nil {
		return err
	}

	e.Err = errors.New(t.Message)
	e.Details = t.Details
	e.Status = t.Status
	return nil
}

// E builds an Error from any mix of a message string, a wrapped error, a
// status code and details. Status defaults to 500.
func E(args ...any) *Error {
	ret := &Error{
		Status: http.StatusInternalServerError,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}

// Status reports the HTTP status carried by err, or 500 when err is not an *Error.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}

	return http.StatusInternalServerError
}
