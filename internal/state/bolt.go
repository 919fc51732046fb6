package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	boltBucketState = "state" // key: "last_run" -> marker text
	boltBucketRuns  = "runs"  // key: marker + "/" + run id -> Run JSON

	boltKeyLastRun = "last_run"
)

// Run summarises one successful pass.
type Run struct {
	ID             string    `json:"id"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	Objects        int       `json:"objects"`
	Qualifying     int       `json:"qualifying"`
	Tickets        []string  `json:"tickets,omitempty"`
	Correspondence int       `json:"correspondence"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Recorder is implemented by stores that keep run history.
type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
	Runs(ctx context.Context, limit int) ([]Run, error)
}

// BoltStore keeps the marker and run history in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// NewBolt opens (creating if needed) the database at path.
func NewBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(boltBucketState)); err != nil {
			return err
		}

		if _, err := tx.CreateBucketIfNotExists([]byte(boltBucketRuns)); err != nil {
			return err
		}

		return nil
	}); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Load(_ context.Context) (time.Time, bool, error) {
	var raw []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(boltBucketState)).Get([]byte(boltKeyLastRun)); v != nil {
			raw = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return time.Time{}, false, err
	}

	if len(raw) == 0 {
		return time.Time{}, false, nil
	}

	t, err := ParseMarker(string(raw))
	if err != nil {
		return time.Time{}, false, err
	}

	return t, true, nil
}

func (b *BoltStore) Save(_ context.Context, t time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketState)).Put([]byte(boltKeyLastRun), []byte(FormatMarker(t)))
	})
}

// RecordRun appends run to the history.
func (b *BoltStore) RecordRun(_ context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}

	data, err := json.Marshal(&run)
	if err != nil {
		return err
	}

	key := FormatMarker(run.To) + "/" + run.ID

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketRuns)).Put([]byte(key), data)
	})
}

// Runs returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (b *BoltStore) Runs(_ context.Context, limit int) ([]Run, error) {
	var runs []Run

	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(boltBucketRuns)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}

			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt run %s: %w", k, err)
			}

			runs = append(runs, run)
		}

		return nil
	})

	return runs, err
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}
