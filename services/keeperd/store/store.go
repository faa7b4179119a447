// Package store persists per-market keeper state (last successful update
// time, last accepted field-commitment sequence) across restarts, using
// go.etcd.io/bbolt the same way the teacher's oracle-attesterd persists its
// invoice/nonce state — a single-file embedded KV store opened once at
// startup.
package store

import (
	"encoding/binary"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
)

var bucketLastUpdates = []byte("last_updates")

// Store tracks, per market address, the unix timestamp of the last
// successful field-commitment submission and the last sequence number
// used, so a restarted keeper does not immediately re-submit every market.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the bbolt file at path, ensuring the bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLastUpdates)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// record is the persisted value for one market.
type record struct {
	lastUpdateUnix int64
	lastSequence   uint64
}

func encodeRecord(r record) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.lastUpdateUnix))
	binary.BigEndian.PutUint64(buf[8:16], r.lastSequence)
	return buf
}

func decodeRecord(b []byte) (record, bool) {
	if len(b) != 16 {
		return record{}, false
	}
	return record{
		lastUpdateUnix: int64(binary.BigEndian.Uint64(b[0:8])),
		lastSequence:   binary.BigEndian.Uint64(b[8:16]),
	}, true
}

// LastUpdate returns the last successful update's timestamp and sequence
// for a market. ok is false if the market has never been updated.
func (s *Store) LastUpdate(marketAddress string) (lastUpdateUnix int64, lastSequence uint64, ok bool) {
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLastUpdates)
		raw := b.Get([]byte(marketAddress))
		if raw == nil {
			return nil
		}
		rec, decoded := decodeRecord(raw)
		if !decoded {
			return nil
		}
		lastUpdateUnix, lastSequence, ok = rec.lastUpdateUnix, rec.lastSequence, true
		return nil
	})
	return lastUpdateUnix, lastSequence, ok
}

// RecordUpdate persists a successful submission.
func (s *Store) RecordUpdate(marketAddress string, now int64, sequence uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLastUpdates)
		return b.Put([]byte(marketAddress), encodeRecord(record{lastUpdateUnix: now, lastSequence: sequence}))
	})
}
