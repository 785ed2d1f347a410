package memory

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var messagesBucket = []byte("messages")

// BoltStore keeps the log in a BoltDB file. Keys are the bucket's sequence
// numbers, big-endian, so cursor order is append order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the BoltDB file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(messagesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Append(ctx context.Context, records []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket)
		for _, r := range records {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			if err := b.Put(key, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Records(ctx context.Context) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []json.RawMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			// v is only valid for the life of the transaction.
			out = append(out, append(json.RawMessage(nil), v...))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear drops and recreates the bucket in one transaction.
func (s *BoltStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(messagesBucket) != nil {
			if err := tx.DeleteBucket(messagesBucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(messagesBucket)
		return err
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
