package service

import (
	"encoding/json"
	"fmt"

	"github.com/containerd/errdefs"
)

// Error is a request failure with an operator-facing message. It unwraps to
// the errdefs class that decides the response status.
type Error struct {
	Msg   string
	Class error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Class }

func invalid(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Class: errdefs.ErrInvalidArgument}
}

func notFound(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Class: errdefs.ErrNotFound}
}

func conflict(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Class: errdefs.ErrAlreadyExists}
}

// OptionalID is a nullable id field that remembers whether it was sent at
// all, so that "cluster_id": null can detach while an absent key is a no-op
type OptionalID struct {
	Set bool
	ID  *int64
}

// UnmarshalJSON is only invoked for keys present in the document
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.ID = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("id must be an integer: %w", err)
	}
	o.ID = &id
	return nil
}

// MarshalJSON renders the id or null
func (o OptionalID) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.ID)
}
