package feed

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies why a fetch produced no snapshot.
type FetchErrorKind string

const (
	KindNetwork       FetchErrorKind = "network"
	KindTimeout       FetchErrorKind = "timeout"
	KindStatus        FetchErrorKind = "status"
	KindParse         FetchErrorKind = "parse"
	KindMissingSymbol FetchErrorKind = "missing_symbol"
	KindCircuitOpen   FetchErrorKind = "circuit_open"
)

// FetchError is returned for every failed fetch. The caller skips the tick.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf returns the FetchErrorKind of err, or KindNetwork for foreign errors.
func KindOf(err error) FetchErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}

func fetchErr(kind FetchErrorKind, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
