// Package orders persists venue-confirmed fills in a write-ahead log for
// audit. The journal is append-only; the strategy state itself lives in
// the snapshot repository.
package orders

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"botfleet/internal/domain"
)

const (
	segmentLimit = 1000
	maxSegments  = 20

	fillKeyPrefix = "fill_"
)

// WALStore records confirmed fills in a WAL. It implements the live
// executor's FillJournal.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed fill journal in dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		return nil, errors.New("journal dir is required")
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "fill_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init fill journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Record appends a filled order to the journal.
func (s *WALStore) Record(o domain.Order) error {
	if s == nil || s.wal == nil {
		return errors.New("fill journal is not initialized")
	}
	if o.ID == "" {
		return errors.New("order id is required")
	}

	payload, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "marshal fill")
	}

	key := fmt.Sprintf("%s%s", fillKeyPrefix, o.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// FillsAfter returns all fills written after the provided WAL index.
func (s *WALStore) FillsAfter(index uint64) ([]domain.Order, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("fill journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	fills := make([]domain.Order, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, fillKeyPrefix) {
			continue
		}

		var o domain.Order
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, errors.Wrap(err, "decode fill")
		}
		fills = append(fills, o)
	}

	return fills, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("fill journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
