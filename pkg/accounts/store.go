// BadgerDB-backed persistent implementation of the account store.
package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/fortiblox/x1-tokensale/internal/types"
)

// Key prefixes for BadgerDB storage.
// Prefixes allow efficient iteration over specific data types.
var (
	// prefixAccount is the prefix for account data.
	// Key format: prefixAccount + pubkey (32 bytes)
	prefixAccount = []byte{0x01}

	// prefixMeta is the prefix for metadata.
	prefixMeta = []byte{0x02}

	// metaSlot is the key for the current slot.
	metaSlot = append(prefixMeta, []byte("slot")...)

	// metaAccountsCount is the key for the accounts count.
	metaAccountsCount = append(prefixMeta, []byte("count")...)
)

// BadgerDBConfig contains configuration for the Badger store.
type BadgerDBConfig struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	// False improves throughput but risks loss on crash.
	SyncWrites bool

	// NumCompactors is the number of compaction workers.
	NumCompactors int

	// ValueLogFileSize is the size of each value log file.
	ValueLogFileSize int64

	// Logger is an optional badger logger. Nil disables badger logging.
	Logger badger.Logger
}

// DefaultBadgerDBConfig returns default configuration.
func DefaultBadgerDBConfig(path string) BadgerDBConfig {
	return BadgerDBConfig{
		Path:             path,
		InMemory:         false,
		SyncWrites:       false,
		NumCompactors:    4,
		ValueLogFileSize: 256 << 20, // 256MB
		Logger:           nil,
	}
}

// BadgerDB is the persistent account store backing a long-lived sale host.
//
// Accounts are keyed by pubkey under a type prefix; the serialized value is
// the flat Account encoding. Slot and count metadata are cached in memory
// and persisted under meta keys.
type BadgerDB struct {
	db *badger.DB

	slot          atomic.Uint64
	accountsCount atomic.Uint64

	// mu serializes writers so the count stays consistent with the keys.
	mu sync.Mutex

	closed atomic.Bool
}

// NewBadgerDB opens a Badger-backed account store.
func NewBadgerDB(cfg BadgerDBConfig) (*BadgerDB, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumCompactors(cfg.NumCompactors).
		WithValueLogFileSize(cfg.ValueLogFileSize).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	bdb := &BadgerDB{db: db}
	if err := bdb.loadMeta(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	return bdb, nil
}

// loadMeta restores cached slot and count values.
func (b *BadgerDB) loadMeta() error {
	return b.db.View(func(txn *badger.Txn) error {
		if item, err := txn.Get(metaSlot); err == nil {
			if err := item.Value(func(v []byte) error {
				if len(v) == 8 {
					b.slot.Store(binary.LittleEndian.Uint64(v))
				}
				return nil
			}); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if item, err := txn.Get(metaAccountsCount); err == nil {
			if err := item.Value(func(v []byte) error {
				if len(v) == 8 {
					b.accountsCount.Store(binary.LittleEndian.Uint64(v))
				}
				return nil
			}); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return nil
	})
}

func accountKey(pubkey types.Pubkey) []byte {
	key := make([]byte, 0, len(prefixAccount)+types.PubkeySize)
	key = append(key, prefixAccount...)
	key = append(key, pubkey[:]...)
	return key
}

// GetAccount retrieves an account by address.
func (b *BadgerDB) GetAccount(pubkey types.Pubkey) (*Account, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var account *Account
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(pubkey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			account, err = DeserializeAccount(v)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// SetAccount stores an account. Zero accounts are deleted.
func (b *BadgerDB) SetAccount(pubkey types.Pubkey, account *Account) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if account.IsZero() {
		return b.DeleteAccount(pubkey)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := accountKey(pubkey)
	existed, err := b.hasKey(key)
	if err != nil {
		return err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, account.Serialize())
	})
	if err != nil {
		return fmt.Errorf("set account: %w", err)
	}

	if !existed {
		b.accountsCount.Add(1)
	}
	return nil
}

// SetAccounts applies a set of account updates in a single transaction:
// either every update persists or none does.
func (b *BadgerDB) SetAccounts(updates map[types.Pubkey]*Account) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var countDelta int64
	err := b.db.Update(func(txn *badger.Txn) error {
		countDelta = 0
		for pubkey, account := range updates {
			key := accountKey(pubkey)

			_, err := txn.Get(key)
			existed := err == nil
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			if account.IsZero() {
				if existed {
					if err := txn.Delete(key); err != nil {
						return err
					}
					countDelta--
				}
				continue
			}

			if err := txn.Set(key, account.Serialize()); err != nil {
				return err
			}
			if !existed {
				countDelta++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set accounts: %w", err)
	}

	b.accountsCount.Add(uint64(countDelta))
	return nil
}

// DeleteAccount removes an account.
func (b *BadgerDB) DeleteAccount(pubkey types.Pubkey) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := accountKey(pubkey)
	existed, err := b.hasKey(key)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	b.accountsCount.Add(^uint64(0)) // Decrement.
	return nil
}

func (b *BadgerDB) hasKey(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			exists = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	return exists, err
}

// HasAccount checks if an account exists.
func (b *BadgerDB) HasAccount(pubkey types.Pubkey) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}
	return b.hasKey(accountKey(pubkey))
}

// GetSlot returns the current slot.
func (b *BadgerDB) GetSlot() uint64 {
	return b.slot.Load()
}

// SetSlot updates the current slot.
func (b *BadgerDB) SetSlot(slot uint64) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.slot.Store(slot)

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, slot)
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaSlot, buf)
	})
}

// AccountsCount returns the total number of accounts.
func (b *BadgerDB) AccountsCount() (uint64, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	return b.accountsCount.Load(), nil
}

// Commit persists cached metadata and syncs.
func (b *BadgerDB) Commit() error {
	if b.closed.Load() {
		return ErrClosed
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, b.accountsCount.Load())
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaAccountsCount, buf)
	})
	if err != nil {
		return err
	}
	return b.db.Sync()
}

// Range calls fn for every stored account until fn returns false.
func (b *BadgerDB) Range(fn func(pubkey types.Pubkey, account *Account) bool) error {
	if b.closed.Load() {
		return ErrClosed
	}

	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixAccount
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != len(prefixAccount)+types.PubkeySize {
				continue
			}

			var pubkey types.Pubkey
			copy(pubkey[:], key[len(prefixAccount):])

			var account *Account
			err := item.Value(func(v []byte) error {
				var verr error
				account, verr = DeserializeAccount(v)
				return verr
			})
			if err != nil {
				return err
			}

			if !fn(pubkey, account) {
				break
			}
		}
		return nil
	})
}

// Close commits metadata and closes the database.
func (b *BadgerDB) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, b.accountsCount.Load())
	b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaAccountsCount, buf)
	})

	return b.db.Close()
}

// Verify interface compliance.
var _ DB = (*BadgerDB)(nil)
