// Snapshot creation and loading for the account store.
package accounts

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/fortiblox/x1-tokensale/internal/types"
)

// Snapshot format version.
const snapshotVersion uint32 = 1

// Snapshot file magic bytes.
var snapshotMagic = []byte{'X', 'T', 'S', 'N'}

// Snapshot errors.
var (
	ErrBadSnapshotMagic   = errors.New("bad snapshot magic")
	ErrBadSnapshotVersion = errors.New("unsupported snapshot version")
	ErrSnapshotChecksum   = errors.New("snapshot checksum mismatch")
	ErrSnapshotTrailing   = errors.New("snapshot has trailing data")
)

// RangeDB is a store that supports full iteration; both MemoryDB and
// BadgerDB satisfy it.
type RangeDB interface {
	DB
	Range(fn func(pubkey types.Pubkey, account *Account) bool) error
}

// SnapshotHeader describes a snapshot file.
//
// Layout on disk:
//   - Magic (4 bytes): "XTSN"
//   - Version (4 bytes, little-endian)
//   - Slot (8 bytes)
//   - AccountsCount (8 bytes)
//   - Checksum (32 bytes): blake3 of the uncompressed entry stream
//   - Entries: zstd-compressed stream of
//     pubkey (32) + entry_len (8) + serialized account
type SnapshotHeader struct {
	Version       uint32
	Slot          uint64
	AccountsCount uint64
	Checksum      [32]byte
}

const snapshotHeaderSize = 4 + 4 + 8 + 8 + 32

// WriteSnapshot writes the full account state to path.
func WriteSnapshot(db RangeDB, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	count, err := db.AccountsCount()
	if err != nil {
		return err
	}

	// Header with a zero checksum placeholder; patched after the stream.
	header := SnapshotHeader{
		Version:       snapshotVersion,
		Slot:          db.GetSlot(),
		AccountsCount: count,
	}
	if err := writeSnapshotHeader(f, &header); err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	enc, err := zstd.NewWriter(bw)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	hasher := blake3.New()
	var written uint64
	var rangeErr error

	err = db.Range(func(pubkey types.Pubkey, account *Account) bool {
		entry := account.Serialize()

		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(entry)))

		for _, chunk := range [][]byte{pubkey[:], lenBuf[:], entry} {
			hasher.Write(chunk)
			if _, werr := enc.Write(chunk); werr != nil {
				rangeErr = werr
				return false
			}
		}
		written++
		return true
	})
	if err != nil {
		return err
	}
	if rangeErr != nil {
		return fmt.Errorf("write snapshot entry: %w", rangeErr)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	if written != count {
		// Count cache drifted; record what was actually written.
		header.AccountsCount = written
	}

	// Patch header with the real checksum.
	hasher.Digest().Read(header.Checksum[:])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := writeSnapshotHeader(f, &header); err != nil {
		return err
	}

	return f.Sync()
}

// LoadSnapshot restores account state from path into db.
// Existing accounts with the same addresses are overwritten.
func LoadSnapshot(db DB, path string) (*SnapshotHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	header, err := readSnapshotHeader(f)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	hasher := blake3.New()
	r := io.TeeReader(dec, hasher)

	for i := uint64(0); i < header.AccountsCount; i++ {
		var pubkey types.Pubkey
		if _, err := io.ReadFull(r, pubkey[:]); err != nil {
			return nil, fmt.Errorf("read snapshot entry %d: %w", i, err)
		}

		var lenBuf [8]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("read snapshot entry %d: %w", i, err)
		}
		entryLen := binary.LittleEndian.Uint64(lenBuf[:])
		if entryLen > MaxAccountDataSize+57 {
			return nil, ErrInvalidData
		}

		entry := make([]byte, entryLen)
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, fmt.Errorf("read snapshot entry %d: %w", i, err)
		}

		account, err := DeserializeAccount(entry)
		if err != nil {
			return nil, err
		}
		if err := db.SetAccount(pubkey, account); err != nil {
			return nil, err
		}
	}

	var checksum [32]byte
	hasher.Digest().Read(checksum[:])
	if checksum != header.Checksum {
		return nil, ErrSnapshotChecksum
	}

	// The checksum covers only the bytes read above; the stream must hold
	// exactly AccountsCount entries and nothing more.
	if _, err := io.CopyN(io.Discard, dec, 1); !errors.Is(err, io.EOF) {
		return nil, ErrSnapshotTrailing
	}

	if err := db.SetSlot(header.Slot); err != nil {
		return nil, err
	}

	return header, nil
}

func writeSnapshotHeader(w io.Writer, h *SnapshotHeader) error {
	buf := make([]byte, 0, snapshotHeaderSize)
	buf = append(buf, snapshotMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = binary.LittleEndian.AppendUint64(buf, h.Slot)
	buf = binary.LittleEndian.AppendUint64(buf, h.AccountsCount)
	buf = append(buf, h.Checksum[:]...)

	_, err := w.Write(buf)
	return err
}

func readSnapshotHeader(r io.Reader) (*SnapshotHeader, error) {
	buf := make([]byte, snapshotHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}

	if !bytes.Equal(buf[:4], snapshotMagic) {
		return nil, ErrBadSnapshotMagic
	}

	h := &SnapshotHeader{
		Version:       binary.LittleEndian.Uint32(buf[4:8]),
		Slot:          binary.LittleEndian.Uint64(buf[8:16]),
		AccountsCount: binary.LittleEndian.Uint64(buf[16:24]),
	}
	copy(h.Checksum[:], buf[24:56])

	if h.Version != snapshotVersion {
		return nil, ErrBadSnapshotVersion
	}

	return h, nil
}
