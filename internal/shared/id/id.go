// Package id generates the identifiers used for pipeline runs, healing
// checkpoints and traced requests.
//
// Every identifier is a ULID behind a short prefix (run_, ckpt_, req_), so
// run and checkpoint histories sort by creation time and stay readable in
// logs. Ids from one Source are strictly increasing even within a
// millisecond.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunID identifies one pipeline run
type RunID string

// CheckpointID identifies a healing checkpoint
type CheckpointID string

// RequestID identifies a traced request or span
type RequestID string

const (
	RunPrefix        = "run"
	CheckpointPrefix = "ckpt"
	RequestPrefix    = "req"
)

// ErrMalformed is returned for strings that are not ids
var ErrMalformed = errors.New("malformed id")

// Source hands out monotonic ULIDs
type Source struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewSource creates a source reading entropy from r, or crypto/rand when r is nil
func NewSource(r io.Reader) *Source {
	if r == nil {
		r = rand.Reader
	}
	return &Source{entropy: ulid.Monotonic(r, 0), now: time.Now}
}

// Next returns a fresh ULID
func (s *Source) Next() ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy)
}

// Prefixed returns a fresh ULID behind prefix
func (s *Source) Prefixed(prefix string) string {
	return prefix + "_" + s.Next().String()
}

var shared = NewSource(nil)

// NewRunID generates a run id
func NewRunID() RunID {
	return RunID(shared.Prefixed(RunPrefix))
}

// NewCheckpointID generates a checkpoint id
func NewCheckpointID() CheckpointID {
	return CheckpointID(shared.Prefixed(CheckpointPrefix))
}

// NewRequestID generates a request id
func NewRequestID() RequestID {
	return RequestID(shared.Prefixed(RequestPrefix))
}

func (r RunID) String() string        { return string(r) }
func (c CheckpointID) String() string { return string(c) }
func (r RequestID) String() string    { return string(r) }

// Time returns when the run id was generated, or the zero time if it is malformed
func (r RunID) Time() time.Time {
	t, _ := Timestamp(string(r))
	return t
}

// ParseRunID accepts a prefixed or bare run id and returns the prefixed form
func ParseRunID(s string) (RunID, error) {
	prefix, raw, found := strings.Cut(s, "_")
	if !found {
		raw, prefix = s, RunPrefix
	}
	if prefix != RunPrefix {
		return "", fmt.Errorf("%w: %q is not a run id", ErrMalformed, s)
	}
	u, err := ulid.ParseStrict(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return RunID(RunPrefix + "_" + u.String()), nil
}

// IsValid reports whether s is a ULID, with or without a prefix
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Parse parses the ULID part of s
func Parse(s string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return u, nil
}

// Timestamp returns when the id was generated
func Timestamp(s string) (time.Time, error) {
	u, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
