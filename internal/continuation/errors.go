package continuation

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks a tool-call argument that failed validation.
// Callers classify it with errors.Is.
var ErrInvalidArgument = errors.New("continuation: invalid argument")

// ThreadNotFoundError reports a continuation id that is unknown or whose
// thread has expired. It is the only fatal outcome of the lookup step;
// the message tells the caller how to recover, since restarting without
// the id is the one thing that helps.
type ThreadNotFoundError struct {
	ID string
}

func (e *ThreadNotFoundError) Error() string {
	return fmt.Sprintf(
		"conversation thread %q was not found or has expired. "+
			"Threads expire a fixed interval after creation. "+
			"Restart the conversation by resubmitting the full prompt without the continuation_id parameter; "+
			"this creates a new thread that can continue with follow-up exchanges.",
		e.ID,
	)
}
