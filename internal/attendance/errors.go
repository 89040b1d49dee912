package attendance

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies repository failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindDuplicateKey
	KindConflict
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindDuplicateKey:
		return "duplicate_key"
	case KindConflict:
		return "conflict"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the repositories.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrDuplicateKey     = &Error{Kind: KindDuplicateKey}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
)

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels (errors without message or cause) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func invalid(msg string) error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func notFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Postgres SQLSTATE codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeStringTooLong       = "22001"
	codeNumericOutOfRange   = "22003"
	codeInvalidDatetime     = "22007"
	codeDatetimeOverflow    = "22008"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// classify converts a driver or transaction error into the taxonomy. Errors that
// are already typed pass through; constraint codes map to their kinds and
// everything else counts as the store being unavailable.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Kind: KindNotFound, Message: op + ": not found"}
	}
	switch pgCode(err) {
	case codeUniqueViolation:
		return &Error{Kind: KindConflict, Message: op + ": already exists", Err: err}
	case codeForeignKeyViolation:
		return &Error{Kind: KindNotFound, Message: op + ": referenced student not found", Err: err}
	case codeCheckViolation, codeStringTooLong, codeNumericOutOfRange, codeInvalidDatetime, codeDatetimeOverflow:
		return &Error{Kind: KindInvalidInput, Message: op + ": rejected by store", Err: err}
	}
	return &Error{Kind: KindStoreUnavailable, Message: op, Err: err}
}

func itoa64(i int64) string { return strconv.FormatInt(i, 10) }
