// Package ledger provides persistent history for processed instructions.
//
// The account store keeps only current state; the ledger records what
// happened at each slot: which operation ran over which accounts, and
// whether it succeeded. Receipts are append-only and queryable by slot.
package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/x1-tokensale/internal/types"
)

var (
	// ErrReceiptNotFound is returned when no receipt exists for a slot.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrClosed is returned when operating on a closed ledger.
	ErrClosed = errors.New("ledger closed")
)

// Bucket names for BoltDB.
var (
	// bucketReceipts stores receipts keyed by slot.
	bucketReceipts = []byte("receipts")

	// bucketMetadata stores ledger metadata.
	bucketMetadata = []byte("metadata")
)

// Metadata keys.
var (
	keyLatestSlot   = []byte("latest_slot")
	keyReceiptCount = []byte("receipt_count")
)

// Receipt is the recorded outcome of one processed instruction.
type Receipt struct {
	// Slot the instruction executed in.
	Slot uint64

	// Tag is the instruction's wire tag.
	Tag byte

	// Accounts is the instruction's declared account set, in order.
	Accounts []types.Pubkey

	// Ok is true if the instruction committed.
	Ok bool

	// Err holds the failure message when Ok is false.
	Err string
}

// Config holds ledger configuration options.
type Config struct {
	// Path is the file path for the ledger database.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:     path,
		NoSync:   false,
		ReadOnly: false,
	}
}

// Store is a BoltDB-backed receipt ledger.
type Store struct {
	db     *bolt.DB
	config Config

	// Cached values for fast reads.
	mu           sync.RWMutex
	latestSlot   uint64
	receiptCount uint64

	closed bool
}

// Open creates or opens a ledger at the configured path.
func Open(config Config) (*Store, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	opts := &bolt.Options{
		Timeout:  5 * time.Second,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	}

	db, err := bolt.Open(config.Path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db, config: config}

	if !config.ReadOnly {
		err := db.Update(func(tx *bolt.Tx) error {
			for _, bucket := range [][]byte{bucketReceipts, bucketMetadata} {
				if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}

	if err := store.loadCachedValues(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load cached values: %w", err)
	}

	return store, nil
}

// loadCachedValues restores the cached slot and count.
func (s *Store) loadCachedValues() error {
	return s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)
		if meta == nil {
			return nil
		}
		if v := meta.Get(keyLatestSlot); len(v) == 8 {
			s.latestSlot = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(keyReceiptCount); len(v) == 8 {
			s.receiptCount = binary.BigEndian.Uint64(v)
		}
		return nil
	})
}

// encodeSlotKey encodes a slot as a big-endian key so BoltDB iterates in
// slot order.
func encodeSlotKey(slot uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, slot)
	return key
}

// Append records a receipt. Slots are expected to be appended in order;
// re-appending a slot overwrites its receipt.
func (s *Store) Append(receipt *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(receipt); err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	newCount := s.receiptCount
	err := s.db.Update(func(tx *bolt.Tx) error {
		receipts := tx.Bucket(bucketReceipts)
		key := encodeSlotKey(receipt.Slot)
		if receipts.Get(key) == nil {
			newCount++
		}
		if err := receipts.Put(key, buf.Bytes()); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMetadata)
		if err := meta.Put(keyLatestSlot, encodeSlotKey(receipt.Slot)); err != nil {
			return err
		}
		return meta.Put(keyReceiptCount, encodeSlotKey(newCount))
	})
	if err != nil {
		return fmt.Errorf("append receipt: %w", err)
	}

	if receipt.Slot > s.latestSlot {
		s.latestSlot = receipt.Slot
	}
	s.receiptCount = newCount
	return nil
}

// Get returns the receipt for a slot.
func (s *Store) Get(slot uint64) (*Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var receipt *Receipt
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReceipts).Get(encodeSlotKey(slot))
		if data == nil {
			return ErrReceiptNotFound
		}
		receipt = &Receipt{}
		return gob.NewDecoder(bytes.NewReader(data)).Decode(receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// GetRange returns receipts for slots in [start, end], in slot order.
func (s *Store) GetRange(start, end uint64) ([]*Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var receipts []*Receipt
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReceipts).Cursor()
		for k, v := c.Seek(encodeSlotKey(start)); k != nil; k, v = c.Next() {
			if binary.BigEndian.Uint64(k) > end {
				break
			}
			receipt := &Receipt{}
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(receipt); err != nil {
				return err
			}
			receipts = append(receipts, receipt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// LatestSlot returns the highest recorded slot.
func (s *Store) LatestSlot() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestSlot
}

// Count returns the number of recorded receipts.
func (s *Store) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.receiptCount
}

// Sync flushes the database to disk.
func (s *Store) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.Sync()
}

// Close closes the ledger.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
