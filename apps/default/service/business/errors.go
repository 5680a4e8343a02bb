package business

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrCollaboratorUnavailable marks datastore failures. The request is aborted, no decision is reported.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrThrottleLookup is returned when the failure summary could not be read. The guard treats it as throttled.
	ErrThrottleLookup = errors.New("throttle lookup failed")
)

func collaboratorError(operation string, err error) error {
	return errors.WithStack(fmt.Errorf("%w: %s: %w", ErrCollaboratorUnavailable, operation, err))
}
