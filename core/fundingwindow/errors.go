package fundingwindow

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrProgrammeNotFound = errors.New("programme not found")
	ErrLastProgramme     = errors.New("a funding window needs at least one programme")
	ErrUnknownField      = errors.New("unknown field")
	ErrSubmitInProgress  = errors.New("a submission is already in progress")
	ErrAlreadySubmitted  = errors.New("this funding window was already submitted")
	ErrInvalidForm       = errors.New("please correct the highlighted fields")
	ErrMalformedResponse = errors.New("the server did not return the funding window identifier")
	ErrNotFound          = errors.New("submission not found")

	errCreateWindowFallback = "failed to create funding window"
)

// RemoteError is a non-success answer from the remote API.
type RemoteError struct {
	StatusCode int
	Message    string // server-supplied, may be empty
}

func (err *RemoteError) Error() string {
	if err.Message != "" {
		return err.Message
	}
	return fmt.Sprintf("remote api responded with status %d", err.StatusCode)
}

// userMessage returns the server-provided message of err, or fallback.
func userMessage(err error, fallback string) string {
	if rErr, ok := errors.Cause(err).(*RemoteError); ok && rErr.Message != "" {
		return rErr.Message
	}
	return fallback
}

func createProgrammeFallback(name string) string {
	return fmt.Sprintf("failed to create programme %q", name)
}
