// Package repository persists strategy snapshots keyed by
// (person, exchange, bot, status) and manages atomic status transitions.
// Status is part of the storage key: changing it moves the snapshot to a
// new key in one transaction, which makes "does a snapshot exist under
// key K" usable as a coarse lock.
package repository

import (
	"fmt"

	"github.com/pkg/errors"

	"botfleet/internal/domain"
)

var (
	// ErrNotFound is returned when no snapshot exists at the requested key.
	ErrNotFound = errors.New("snapshot not found")
	// ErrInvalidTransition is returned when a status change is not in the
	// allowed set or no snapshot exists at the source status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Key addresses exactly one snapshot. At most one snapshot exists per
// (PersonID, Exchange, BotID) across all statuses when the transition
// rules are respected.
type Key struct {
	PersonID string
	Exchange string
	BotID    string
	Status   domain.Status
}

// String renders the storage key, person/exchange/status/bot.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.PersonID, k.Exchange, k.Status, k.BotID)
}

// WithStatus returns the same key under another status.
func (k Key) WithStatus(status domain.Status) Key {
	k.Status = status
	return k
}

func (k Key) validate() error {
	if k.PersonID == "" || k.Exchange == "" || k.BotID == "" {
		return errors.New("person id, exchange and bot id are required")
	}
	if !k.Status.Valid() {
		return errors.Errorf("unknown status %q", k.Status)
	}
	return nil
}

// Repository stores and moves snapshots.
type Repository interface {
	// Store serializes the snapshot under the key, overwriting any
	// existing value at that exact key.
	Store(key Key, snap *Snapshot) error
	// Read returns the snapshot at the key, or ErrNotFound.
	Read(key Key) (*Snapshot, error)
	// ChangeStatus atomically moves the snapshot from the key at `from`
	// to the same key at `to`. No observer ever sees the snapshot at
	// neither or both keys. Moving a status onto itself is a no-op.
	ChangeStatus(personID, exchange, botID string, from, to domain.Status) error
	Close() error
}
