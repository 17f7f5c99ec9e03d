package accounts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/fortiblox/x1-tokensale/internal/types"
)

func testKey(b byte) types.Pubkey {
	var p types.Pubkey
	p[0] = b
	return p
}

// TestAccountSerializeRoundTrip tests the flat account encoding.
func TestAccountSerializeRoundTrip(t *testing.T) {
	account := &Account{
		Lamports:   1_000_000,
		Data:       []byte{1, 2, 3, 4, 5},
		Owner:      testKey(9),
		Executable: true,
		RentEpoch:  ^uint64(0),
	}

	decoded, err := DeserializeAccount(account.Serialize())
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Lamports != account.Lamports {
		t.Errorf("lamports: got %d want %d", decoded.Lamports, account.Lamports)
	}
	if string(decoded.Data) != string(account.Data) {
		t.Errorf("data mismatch")
	}
	if decoded.Owner != account.Owner {
		t.Errorf("owner mismatch")
	}
	if !decoded.Executable {
		t.Errorf("executable flag lost")
	}
	if decoded.RentEpoch != account.RentEpoch {
		t.Errorf("rent epoch mismatch")
	}
}

// TestDeserializeTruncated tests that short input is rejected.
func TestDeserializeTruncated(t *testing.T) {
	if _, err := DeserializeAccount([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidData) {
		t.Errorf("want ErrInvalidData, got %v", err)
	}
}

// TestMemoryDB exercises the in-memory store.
func TestMemoryDB(t *testing.T) {
	db := NewMemoryDB()
	pk := testKey(1)

	if _, err := db.GetAccount(pk); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("want ErrAccountNotFound, got %v", err)
	}

	account := &Account{Lamports: 500, Data: []byte("hello"), Owner: testKey(2)}
	if err := db.SetAccount(pk, account); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetAccount(pk)
	if err != nil {
		t.Fatal(err)
	}
	if got.Lamports != 500 {
		t.Errorf("lamports: got %d", got.Lamports)
	}

	// Returned accounts are copies.
	got.Lamports = 0
	again, _ := db.GetAccount(pk)
	if again.Lamports != 500 {
		t.Error("GetAccount returned a shared reference")
	}

	// Zero accounts are deleted.
	if err := db.SetAccount(pk, &Account{}); err != nil {
		t.Fatal(err)
	}
	if ok, _ := db.HasAccount(pk); ok {
		t.Error("zero account not deleted")
	}
}

// TestMemoryDBSetAccounts tests the batch write path: stores, overwrites,
// and zero-account deletions applied together.
func TestMemoryDBSetAccounts(t *testing.T) {
	db := NewMemoryDB()
	if err := db.SetAccount(testKey(1), &Account{Lamports: 100}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetAccount(testKey(2), &Account{Lamports: 200}); err != nil {
		t.Fatal(err)
	}

	err := db.SetAccounts(map[types.Pubkey]*Account{
		testKey(1): {Lamports: 150},
		testKey(2): {}, // zero: deleted
		testKey(3): {Lamports: 300},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.GetAccount(testKey(1))
	if err != nil || got.Lamports != 150 {
		t.Errorf("account 1: %v %+v", err, got)
	}
	if ok, _ := db.HasAccount(testKey(2)); ok {
		t.Error("zero account survived the batch")
	}
	got, err = db.GetAccount(testKey(3))
	if err != nil || got.Lamports != 300 {
		t.Errorf("account 3: %v %+v", err, got)
	}
}

// TestMemoryDBSlot tests slot tracking.
func TestMemoryDBSlot(t *testing.T) {
	db := NewMemoryDB()
	if db.GetSlot() != 0 {
		t.Errorf("fresh slot = %d", db.GetSlot())
	}
	if err := db.SetSlot(42); err != nil {
		t.Fatal(err)
	}
	if db.GetSlot() != 42 {
		t.Errorf("slot = %d, want 42", db.GetSlot())
	}
}

// TestBadgerDBInMemory exercises the Badger-backed store without disk.
func TestBadgerDBInMemory(t *testing.T) {
	cfg := DefaultBadgerDBConfig("")
	cfg.InMemory = true
	db, err := NewBadgerDB(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	pk := testKey(7)
	account := &Account{Lamports: 777, Data: []byte{7}, Owner: testKey(8)}
	if err := db.SetAccount(pk, account); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetAccount(pk)
	if err != nil {
		t.Fatal(err)
	}
	if got.Lamports != 777 || got.Owner != testKey(8) {
		t.Errorf("unexpected account: %+v", got)
	}

	count, err := db.AccountsCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	if err := db.DeleteAccount(pk); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetAccount(pk); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("want ErrAccountNotFound after delete, got %v", err)
	}
	count, _ = db.AccountsCount()
	if count != 0 {
		t.Errorf("count after delete = %d", count)
	}
}

// TestBadgerDBSetAccounts tests the transactional batch write, including
// the cached count across inserts and deletions.
func TestBadgerDBSetAccounts(t *testing.T) {
	cfg := DefaultBadgerDBConfig("")
	cfg.InMemory = true
	db, err := NewBadgerDB(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.SetAccount(testKey(1), &Account{Lamports: 100}); err != nil {
		t.Fatal(err)
	}

	err = db.SetAccounts(map[types.Pubkey]*Account{
		testKey(1): {}, // zero: deleted
		testKey(2): {Lamports: 200},
		testKey(3): {Lamports: 300},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.GetAccount(testKey(1)); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("zero account survived the batch: %v", err)
	}
	got, err := db.GetAccount(testKey(2))
	if err != nil || got.Lamports != 200 {
		t.Errorf("account 2: %v %+v", err, got)
	}

	count, err := db.AccountsCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

// TestSnapshotRoundTrip writes a snapshot and restores it into a fresh DB.
func TestSnapshotRoundTrip(t *testing.T) {
	src := NewMemoryDB()
	for i := byte(1); i <= 10; i++ {
		err := src.SetAccount(testKey(i), &Account{
			Lamports: uint64(i) * 100,
			Data:     []byte{i, i, i},
			Owner:    testKey(0xAA),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := src.SetSlot(99); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "state.snap")
	if err := WriteSnapshot(src, path); err != nil {
		t.Fatal(err)
	}

	dst := NewMemoryDB()
	header, err := LoadSnapshot(dst, path)
	if err != nil {
		t.Fatal(err)
	}

	if header.Slot != 99 {
		t.Errorf("header slot = %d, want 99", header.Slot)
	}
	if header.AccountsCount != 10 {
		t.Errorf("header count = %d, want 10", header.AccountsCount)
	}
	if dst.GetSlot() != 99 {
		t.Errorf("restored slot = %d", dst.GetSlot())
	}

	for i := byte(1); i <= 10; i++ {
		got, err := dst.GetAccount(testKey(i))
		if err != nil {
			t.Fatalf("account %d: %v", i, err)
		}
		if got.Lamports != uint64(i)*100 {
			t.Errorf("account %d lamports = %d", i, got.Lamports)
		}
	}
}

// TestSnapshotBadMagic tests rejection of foreign files.
func TestSnapshotBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.snap")
	if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(NewMemoryDB(), path); !errors.Is(err, ErrBadSnapshotMagic) {
		t.Errorf("want ErrBadSnapshotMagic, got %v", err)
	}
}

// TestSnapshotTrailingData tests that a snapshot whose stream holds more
// entries than the header declares is rejected. The checksum only covers the
// declared entries, so the extra bytes would otherwise pass unnoticed.
func TestSnapshotTrailingData(t *testing.T) {
	entry := func(b byte, account *Account) []byte {
		pk := testKey(b)
		data := account.Serialize()
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(data)))

		out := append([]byte{}, pk[:]...)
		out = append(out, lenBuf[:]...)
		return append(out, data...)
	}
	declared := entry(1, &Account{Lamports: 500, Owner: testKey(0xAA)})
	smuggled := entry(2, &Account{Lamports: 700, Owner: testKey(0xAA)})

	// Header declares one entry and checksums only that entry; the
	// compressed stream carries a second one.
	header := SnapshotHeader{Version: snapshotVersion, Slot: 5, AccountsCount: 1}
	hasher := blake3.New()
	hasher.Write(declared)
	hasher.Digest().Read(header.Checksum[:])

	var buf bytes.Buffer
	if err := writeSnapshotHeader(&buf, &header); err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(declared); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(smuggled); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "trailing.snap")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSnapshot(NewMemoryDB(), path); !errors.Is(err, ErrSnapshotTrailing) {
		t.Errorf("want ErrSnapshotTrailing, got %v", err)
	}
}
