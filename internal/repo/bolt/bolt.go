// Package bolt is an embedded single-file backend on bbolt. History and SLI
// records live in one nested bucket per target, keyed by timestamp and an
// insertion sequence.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/repo"
)

var (
	targetsBucket = []byte("targets")
	historyBucket = []byte("history")
	sliBucket     = []byte("sli")
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{targetsBucket, historyBucket, sliBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// key orders by time first, then by insertion sequence. The sign bit is
// flipped so pre-epoch timestamps still sort before later ones.
func key(at time.Time, seq uint64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k[:8], uint64(at.UnixNano())^(1<<63))
	binary.BigEndian.PutUint64(k[8:], seq)
	return k
}

func appendKeyed(tx *bbolt.Tx, top []byte, id domain.TargetID, at time.Time, v any) error {
	b, err := tx.Bucket(top).CreateBucketIfNotExists([]byte(id))
	if err != nil {
		return fmt.Errorf("create partition %s: %w", id, err)
	}
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return b.Put(key(at, seq), data)
}

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal target: %w", err)
		}
		return tx.Bucket(targetsBucket).Put([]byte(t.ID), data)
	})
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	var out []domain.Target
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(targetsBucket).ForEach(func(k, v []byte) error {
			var t domain.Target
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("unmarshal target %s: %w", k, err)
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	var t domain.Target
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(targetsBucket).Get([]byte(id))
		if v == nil {
			return repo.ErrNotFound
		}
		return json.Unmarshal(v, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(targetsBucket)
		if b.Get([]byte(id)) == nil {
			return repo.ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

// ---- HistoryStore ----

func (s *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return appendKeyed(tx, historyBucket, r.TargetID, r.CheckedAt, r)
	})
}

func (s *Store) QueryWindow(ctx context.Context, id domain.TargetID, from, to time.Time, opts repo.QueryOptions) ([]domain.HistoryRecord, error) {
	lo := key(from, 0)
	hi := key(to, ^uint64(0))
	var out []domain.HistoryRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(historyBucket).Bucket([]byte(id))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		collect := func(v []byte) (bool, error) {
			var r domain.HistoryRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return false, fmt.Errorf("unmarshal record: %w", err)
			}
			out = append(out, r)
			return opts.Limit > 0 && len(out) >= opts.Limit, nil
		}
		if opts.Descending {
			k, v := c.Seek(hi)
			switch {
			case k == nil:
				k, v = c.Last()
			case bytes.Compare(k, hi) > 0:
				k, v = c.Prev()
			}
			for ; k != nil && bytes.Compare(k, lo) >= 0; k, v = c.Prev() {
				if done, err := collect(v); err != nil || done {
					return err
				}
			}
			return nil
		}
		for k, v := c.Seek(lo); k != nil && bytes.Compare(k, hi) <= 0; k, v = c.Next() {
			if done, err := collect(v); err != nil || done {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) QueryLatest(ctx context.Context, id domain.TargetID, n int) ([]domain.HistoryRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []domain.HistoryRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(historyBucket).Bucket([]byte(id))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var r domain.HistoryRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// ---- SliStore ----

func (s *Store) AppendSLI(ctx context.Context, r *domain.SliRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return appendKeyed(tx, sliBucket, r.TargetID, r.EvaluatedAt, r)
	})
}

func (s *Store) LatestSLI(ctx context.Context, id domain.TargetID) (*domain.SliRecord, error) {
	var r domain.SliRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sliBucket).Bucket([]byte(id))
		if b == nil {
			return repo.ErrNotFound
		}
		k, v := b.Cursor().Last()
		if k == nil {
			return repo.ErrNotFound
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
