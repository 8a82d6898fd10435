// Package security generates the names of the IPC objects of a session.
//
// Names are hard to guess and unique per process: every object is created
// exclusively with mode 0600, so a name that is already taken fails the
// creation instead of attaching to someone else's object.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// Object kinds used in names.
const (
	KindSegment       = "shm"
	KindRequestReady  = "req"
	KindResponseReady = "resp"
)

// Prefix starts every generated name.
const Prefix = "/sumipc-"

// Mode is the permission of every created object.
const Mode os.FileMode = 0o600

// Names are the three objects of one controller and worker pair.
type Names struct {
	Segment       string
	RequestReady  string
	ResponseReady string
}

// All returns the names in creation order.
func (n Names) All() []string {
	return []string{n.Segment, n.RequestReady, n.ResponseReady}
}

// NewName returns "/sumipc-<kind>-<pid>-<16 hex digits>".
func NewName(kind string) (string, error) {
	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("security: random name suffix: %w", err)
	}
	return fmt.Sprintf("%s%s-%d-%s", Prefix, kind, os.Getpid(), hex.EncodeToString(suffix[:])), nil
}

// NewNames returns a fresh set of names.
func NewNames() (Names, error) {
	var (
		n   Names
		err error
	)
	if n.Segment, err = NewName(KindSegment); err != nil {
		return Names{}, err
	}
	if n.RequestReady, err = NewName(KindRequestReady); err != nil {
		return Names{}, err
	}
	if n.ResponseReady, err = NewName(KindResponseReady); err != nil {
		return Names{}, err
	}
	return n, nil
}
