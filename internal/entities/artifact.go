package entities

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// Status is the lifecycle state of an artifact row. Transitions are
// monotonic: once a row leaves StatusActive it never returns.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
	StatusFailed  Status = "failed"
)

var ErrIllegalTransition = errors.New("illegal status transition")

// Valid reports whether s is one of the closed set of statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusDeleted, StatusFailed:
		return true
	}
	return false
}

// Transition validates a status change. StatusDeleted and StatusFailed are
// terminal; the only legal moves are active->deleted and active->failed.
func Transition(from, to Status) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %q -> %q", ErrIllegalTransition, from, to)
	}
	if from == StatusActive && (to == StatusDeleted || to == StatusFailed) {
		return nil
	}
	return fmt.Errorf("%w: %q -> %q", ErrIllegalTransition, from, to)
}

// Kind is the coarse category of a stored file. Pipeline outputs are
// always KindConverted; KindUploaded is reserved for raw uploads.
type Kind string

const (
	KindConverted Kind = "converted"
	KindUploaded  Kind = "uploaded"
)

// Artifact is one row in the files table: a durable conversion output
// stored as a blob plus this metadata record.
type Artifact struct {
	ID         string     `json:"id"`
	StorageKey string     `json:"storage_key"`
	Kind       Kind       `json:"kind"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	Status     Status     `json:"status"`
}

// Expired reports whether the artifact is past its TTL at now.
func (a Artifact) Expired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}

const idSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewArtifactID returns a new external artifact identifier: millisecond
// timestamp plus a random base36 suffix. Safe to embed in storage keys
// and URLs; collision-resistant without a database sequence.
func NewArtifactID() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = idSuffixAlphabet[rand.Intn(len(idSuffixAlphabet))]
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + string(suffix)
}
