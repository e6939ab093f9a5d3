// Package etlerr is the error taxonomy shared by every pipeline stage.
package etlerr

import (
	"errors"
	"fmt"
)

// Kind is a typed error kind for consistent classification across stages.
type Kind string

const (
	// ─── Fatal ─────────────────────────────────────────────────────────
	KindConfig         Kind = "CONFIG_ERROR"
	KindQuotaExhausted Kind = "QUOTA_EXHAUSTED"
	KindNotFound       Kind = "NOT_FOUND"

	// ─── Recoverable ───────────────────────────────────────────────────
	KindTransient  Kind = "TRANSIENT_NETWORK_ERROR"
	KindValidation Kind = "VALIDATION_ERROR"
	KindConflict   Kind = "PERSISTENCE_CONFLICT"
	KindUpstream   Kind = "UPSTREAM_ERROR"

	// ─── Other ─────────────────────────────────────────────────────────
	KindInternal Kind = "INTERNAL_ERROR"
)

// Describe returns a human-readable description for a given kind.
func Describe(kind Kind) string {
	switch kind {
	case KindConfig:
		return "Configuration is missing or invalid."
	case KindQuotaExhausted:
		return "Every API credential has hit its request quota."
	case KindNotFound:
		return "A required reference source could not be found."
	case KindTransient:
		return "The upstream service could not be reached."
	case KindValidation:
		return "A record failed validation and was skipped."
	case KindConflict:
		return "The record already exists."
	case KindUpstream:
		return "The upstream service rejected the request."
	default:
		return "An internal error occurred."
	}
}

// Error is a classified pipeline error. Op names the unit of work
// (a page, a batch, a file) so log lines point at what failed.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// New constructs a classified error.
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Wrap classifies err under kind. Returns nil for a nil err.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = Describe(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindConfig}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindInternal if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether the unit of work may be retried.
func IsRetryable(err error) bool {
	return IsKind(err, KindTransient)
}

// IsFatal reports whether err must end the run.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindConfig, KindQuotaExhausted, KindNotFound:
		return true
	}
	return false
}

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindConfig:
		return 2
	case KindQuotaExhausted:
		return 3
	case KindNotFound:
		return 4
	default:
		return 1
	}
}
