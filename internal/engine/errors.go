package engine

import "fmt"

// ValidationError reports input that fails a business rule. Always
// recoverable; the caller should re-prompt.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) ValidationError {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransitionError reports a state change that is not permitted from the
// current state or for the acting user.
type TransitionError struct {
	From  string
	To    string
	Actor string
}

func (e TransitionError) Error() string {
	if e.Actor != "" {
		return fmt.Sprintf("invalid status transition %s -> %s by %s", e.From, e.To, e.Actor)
	}
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// ForbiddenError reports an action the acting user may not perform.
type ForbiddenError struct {
	User   string
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("user %s may not %s", e.User, e.Action)
}
