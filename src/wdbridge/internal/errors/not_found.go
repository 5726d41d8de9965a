package errors

import (
	stderr "errors"
	"fmt"

	"github.com/gofrs/uuid"
)

// UUIDNotFoundError reports a bridged session id that is not known to the daemon.
type UUIDNotFoundError struct {
	UUID uuid.UUID
}

// Error is an implementation of the error interface.
func (n *UUIDNotFoundError) Error() string {
	return fmt.Sprintf("UUID %q not found", n.UUID)
}

// NotFoundUUID returns an UUID and true if UUIDNotFoundError is part of the
// error chain.
func NotFoundUUID(e error) (_ uuid.UUID, ok bool) {
	var nf *UUIDNotFoundError
	if !stderr.As(e, &nf) {
		return uuid.Nil, false
	}
	return nf.UUID, true
}

// UnknownDriverError reports a driver name with no configuration.
type UnknownDriverError struct {
	Name string
}

// Error is an implementation of the error interface.
func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("no driver configured with name %q", e.Name)
}
