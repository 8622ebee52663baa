package model

import (
	"errors"
	"fmt"
)

// Kind classifies an error for JSON-RPC code mapping and the sidelog.
type Kind string

const (
	KindIO            Kind = "io"
	KindParse         Kind = "parse"
	KindSchema        Kind = "schema"
	KindTimeout       Kind = "timeout"
	KindSubprocess    Kind = "subprocess"
	KindCrypto        Kind = "crypto"
	KindLedger        Kind = "ledger"
	KindConfig        Kind = "config"
	KindNotFound      Kind = "not_found"
	KindForbiddenPath Kind = "forbidden_path"
)

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind. Nil err yields nil.
func E(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Ef wraps a formatted message with a kind.
func Ef(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from an error chain, defaulting to io.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}
