package types

import (
	"errors"
	"fmt"
)

// Lookup errors. ErrStackNotFound and ErrPaperNotFound both match
// ErrNotFound under errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrStackNotFound = fmt.Errorf("stack %w", ErrNotFound)
	ErrPaperNotFound = fmt.Errorf("paper %w", ErrNotFound)
	ErrAmbiguousID   = errors.New("ambiguous paper id")
)

// Registry guard errors.
var (
	ErrAlreadyExists      = errors.New("stack already exists")
	ErrCannotDeleteActive = errors.New("cannot delete the active stack")
	ErrSameStack          = errors.New("target is the active stack")
	ErrConflict           = errors.New("paper is still referenced by a stack")
	ErrInvalidName        = errors.New("invalid stack name")
	ErrInvalidContent     = errors.New("invalid content")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Persistence errors. ErrLocked is the only error a caller should retry.
var (
	ErrLocked = errors.New("registry is locked by another bib process")
	ErrIO     = errors.New("persistence failure")
)

// Error kinds reported by Kind.
const (
	KindNotFound           = "not_found"
	KindAmbiguousID        = "ambiguous_id"
	KindAlreadyExists      = "already_exists"
	KindCannotDeleteActive = "cannot_delete_active"
	KindSameStack          = "same_stack"
	KindConflict           = "conflict"
	KindInvalidName        = "invalid_name"
	KindInvalidContent     = "invalid_content"
	KindInvalidConfig      = "invalid_config"
	KindLocked             = "locked"
	KindIO                 = "io"
	KindUnknown            = "error"
)

// kindOrder is checked in order; the first sentinel matched wins.
var kindOrder = []struct {
	err  error
	kind string
}{
	{ErrLocked, KindLocked},
	{ErrIO, KindIO},
	{ErrNotFound, KindNotFound},
	{ErrAmbiguousID, KindAmbiguousID},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrCannotDeleteActive, KindCannotDeleteActive},
	{ErrSameStack, KindSameStack},
	{ErrConflict, KindConflict},
	{ErrInvalidName, KindInvalidName},
	{ErrInvalidContent, KindInvalidContent},
	{ErrInvalidConfig, KindInvalidConfig},
}

// Kind classifies err into one of the Kind constants. It returns the empty
// string for a nil error and KindUnknown for errors outside the taxonomy.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Retryable reports whether the operation that produced err may succeed if
// repeated unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrLocked)
}
