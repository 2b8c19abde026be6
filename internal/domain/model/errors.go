package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elliotchance/pie/v2"
)

// kind is a stable, documented error category exposed to callers.
type kind struct {
	code    string
	message string
}

func (k *kind) Error() string { return k.message }

// Code returns the stable machine-readable code.
func (k *kind) Code() string { return k.code }

// Error kinds. Compare with errors.Is.
var (
	ErrValidation         error = &kind{"validation_error", "request is invalid"}
	ErrNotFound           error = &kind{"not_found", "resource not found"}
	ErrInvalidState       error = &kind{"invalid_state", "session is not in a state that allows this operation"}
	ErrInvalidActor       error = &kind{"invalid_actor", "caller is not allowed to perform this operation"}
	ErrIneligibleSkill    error = &kind{"ineligible_skill", "skill level is outside the session range"}
	ErrAlreadyJoined      error = &kind{"already_joined", "user already participates in this session"}
	ErrSessionFull        error = &kind{"session_full", "session has no free seats"}
	ErrTimeout            error = &kind{"timeout", "operation deadline exceeded"}
	ErrStoreConflict      error = &kind{"store_conflict", "concurrent update, retry the operation"}
	ErrStoreUnavailable   error = &kind{"store_unavailable", "storage is temporarily unavailable"}
	ErrRatingUpdateFailed error = &kind{"rating_update_failed", "session completed but ratings are pending reconciliation"}
)

var kinds = []error{
	ErrValidation, ErrNotFound, ErrInvalidState, ErrInvalidActor, ErrIneligibleSkill,
	ErrAlreadyJoined, ErrSessionFull, ErrTimeout, ErrStoreConflict, ErrStoreUnavailable,
	ErrRatingUpdateFailed,
}

// ErrRatingsApplied is returned by stores when a rating batch targets a
// session whose ratings were already applied. It carries no kind.
var ErrRatingsApplied = errors.New("ratings already applied")

// CodeInternal is reported for errors that carry no kind.
const CodeInternal = "internal_error"

// Error is the error type returned by engine operations.
// Msg and Fields are safe to show to callers; Err is the internal cause.
type Error struct {
	Op     string
	Kind   error
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.publicMessage())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func (e *Error) publicMessage() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "internal error"
}

// NewKind returns an error of the given kind.
func NewKind(op string, k error) *Error {
	return &Error{Op: op, Kind: k}
}

// Errorf returns an error of the given kind with a public message.
func Errorf(op string, k error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// WrapKind attaches a kind to an internal cause.
func WrapKind(op string, k, err error) *Error {
	return &Error{Op: op, Kind: k, Err: err}
}

// Invalid returns a validation error listing offending fields.
func Invalid(op string, fields map[string]string) *Error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return &Error{Op: op, Kind: ErrValidation, Msg: "invalid fields: " + strings.Join(pie.Sort(keys), ", "), Fields: fields}
}

// KindOf returns the kind carried by err, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// CodeOf returns the stable code for err.
func CodeOf(err error) string {
	if k, ok := KindOf(err).(*kind); ok {
		return k.code
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message for err. Internal causes never appear.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.publicMessage()
	}
	if k := KindOf(err); k != nil {
		return k.Error()
	}
	return "internal error"
}

// FieldsOf returns per-field validation messages, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// Retryable reports whether the engine may retry the operation on its own.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == ErrStoreConflict || k == ErrStoreUnavailable
}
