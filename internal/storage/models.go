package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// OperationLog is one audit record of an enrichment operation outcome.
type OperationLog struct {
	ID         string
	UserID     string
	Operation  string // "summary", "tags", "category", "search", "enrich"
	Status     string // "completed", "failed"
	TokensUsed int
	Model      string
	ErrorCode  string
	CreatedAt  time.Time
}
