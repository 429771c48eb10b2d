package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates malformed input parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateEmbedding indicates an attempt to attach a second
	// embedding to a memory that already has one.
	ErrDuplicateEmbedding = errors.New("memory already has an embedding")
)

// ScopeFilter restricts a query to a dopple and/or user. Empty fields apply
// no restriction; set fields combine conjunctively.
type ScopeFilter struct {
	DoppleID string
	UserID   string
}

// IsZero reports whether the filter applies no restriction at all.
func (s ScopeFilter) IsZero() bool {
	return s.DoppleID == "" && s.UserID == ""
}

// MetadataFilter selects memories by exact metadata. All set filters are
// ANDed together. Tag filters match memories carrying at least one of the
// listed names within each kind.
type MetadataFilter struct {
	Scope ScopeFilter

	// Tag name filters; nil/empty means no filter for that kind.
	Emotions []string
	Topics   []string
	Traits   []string

	// MinImportance filters to memories with importance >= the value.
	// Zero means no importance filter.
	MinImportance int

	// Start and End bound the creation timestamp (inclusive). Zero values
	// leave the corresponding side unbounded.
	Start time.Time
	End   time.Time

	// Limit and Offset implement standard pagination.
	Limit  int
	Offset int
}

// Normalize applies pagination defaults and caps.
func (f *MetadataFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
