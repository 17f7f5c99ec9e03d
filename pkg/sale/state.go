// Package sale implements the whitelist-gated token sale engine: the two
// persisted record types, the instruction codec, per-operation account
// validation, and the state-transition handlers.
//
// The engine is invoked once per instruction with the program identity, the
// instruction's declared account set, and raw instruction bytes. All checks
// run before any mutation; the first failure aborts with no partial writes.
package sale

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/fortiblox/x1-tokensale/internal/types"
	"github.com/fortiblox/x1-tokensale/pkg/pda"
)

// PDA seed literals binding records to canonical addresses.
const (
	saleConfigSeed  = "sale_config"
	buyerRecordSeed = "buyer_record"
)

// Discriminator inputs. The first 8 bytes of the SHA-256 of these strings
// mark an account as holding the corresponding record type; all-zero bytes
// mean uninitialized.
const (
	saleConfigDiscInput  = "tokensale::state::sale_config"
	buyerRecordDiscInput = "tokensale::state::buyer_record"
)

// Serialized record sizes.
const (
	// SaleConfigLen is 3 pubkeys + root (32) + discriminator (8) +
	// price (8) + default limit (8) + bump (1) + is_running (1).
	SaleConfigLen = 32 + 32 + 32 + 32 + 8 + 8 + 8 + 1 + 1

	// BuyerRecordLen is token account (32) + discriminator (8) +
	// purchase limit (8) + bump (1).
	BuyerRecordLen = 32 + 8 + 8 + 1
)

func discriminator(input string) [8]byte {
	sum := sha256.Sum256([]byte(input))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

var (
	saleConfigDiscriminator  = discriminator(saleConfigDiscInput)
	buyerRecordDiscriminator = discriminator(buyerRecordDiscInput)
)

// SaleConfig is the per-sale configuration record. Exactly one live record
// exists per (sale authority, mint) pair, at the canonical derived address.
type SaleConfig struct {
	// SaleAuthority can configure the sale after initialization.
	SaleAuthority types.Pubkey

	// Mint is the asset being sold, created external to this program.
	Mint types.Pubkey

	// Vault receives the lamports paid by buyers.
	Vault types.Pubkey

	// WhitelistRoot is the Merkle root the purchase gate verifies against.
	WhitelistRoot types.Hash

	// Discriminator marks the record type; all-zero means uninitialized.
	Discriminator [8]byte

	// Price is the lamport payment per purchase.
	Price uint64

	// DefaultPurchaseLimit seeds new buyer records.
	DefaultPurchaseLimit uint64

	// Bump is the canonical derivation nonce recorded at creation.
	Bump uint8

	// IsRunning gates purchases.
	IsRunning bool
}

// Initialized reports whether the record carries the SaleConfig marker.
func (s *SaleConfig) Initialized() bool {
	return s.Discriminator == saleConfigDiscriminator
}

// SetInitialized stamps the record type marker.
func (s *SaleConfig) SetInitialized() {
	s.Discriminator = saleConfigDiscriminator
}

// Serialize encodes the record into its fixed flat layout.
func (s *SaleConfig) Serialize() []byte {
	buf := make([]byte, SaleConfigLen)
	off := 0
	off += copy(buf[off:], s.SaleAuthority[:])
	off += copy(buf[off:], s.Mint[:])
	off += copy(buf[off:], s.Vault[:])
	off += copy(buf[off:], s.WhitelistRoot[:])
	off += copy(buf[off:], s.Discriminator[:])
	binary.LittleEndian.PutUint64(buf[off:], s.Price)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], s.DefaultPurchaseLimit)
	off += 8
	buf[off] = s.Bump
	off++
	if s.IsRunning {
		buf[off] = 1
	}
	return buf
}

// DecodeSaleConfig decodes a record from its fixed flat layout.
func DecodeSaleConfig(data []byte) (*SaleConfig, error) {
	if len(data) != SaleConfigLen {
		return nil, newError(CodeInvalidAccountDataLength, "sale_config")
	}

	s := &SaleConfig{}
	off := 0
	off += copy(s.SaleAuthority[:], data[off:])
	off += copy(s.Mint[:], data[off:])
	off += copy(s.Vault[:], data[off:])
	off += copy(s.WhitelistRoot[:], data[off:])
	off += copy(s.Discriminator[:], data[off:])
	s.Price = binary.LittleEndian.Uint64(data[off:])
	off += 8
	s.DefaultPurchaseLimit = binary.LittleEndian.Uint64(data[off:])
	off += 8
	s.Bump = data[off]
	off++
	s.IsRunning = data[off] != 0
	return s, nil
}

// BuyerRecord is the per-buyer record. Exactly one live record exists per
// (sale config, buyer) pair, at the canonical derived address.
type BuyerRecord struct {
	// TokenAccount is where the buyer's purchased tokens land.
	TokenAccount types.Pubkey

	// Discriminator marks the record type; all-zero means uninitialized.
	Discriminator [8]byte

	// PurchaseLimit is the buyer-specific override of the sale default.
	PurchaseLimit uint64

	// Bump is the canonical derivation nonce.
	Bump uint8
}

// Initialized reports whether the record carries the BuyerRecord marker.
func (b *BuyerRecord) Initialized() bool {
	return b.Discriminator == buyerRecordDiscriminator
}

// SetInitialized stamps the record type marker.
func (b *BuyerRecord) SetInitialized() {
	b.Discriminator = buyerRecordDiscriminator
}

// Serialize encodes the record into its fixed flat layout.
func (b *BuyerRecord) Serialize() []byte {
	buf := make([]byte, BuyerRecordLen)
	off := 0
	off += copy(buf[off:], b.TokenAccount[:])
	off += copy(buf[off:], b.Discriminator[:])
	binary.LittleEndian.PutUint64(buf[off:], b.PurchaseLimit)
	off += 8
	buf[off] = b.Bump
	return buf
}

// DecodeBuyerRecord decodes a record from its fixed flat layout.
func DecodeBuyerRecord(data []byte) (*BuyerRecord, error) {
	if len(data) != BuyerRecordLen {
		return nil, newError(CodeInvalidAccountDataLength, "buyer_record")
	}

	b := &BuyerRecord{}
	off := 0
	off += copy(b.TokenAccount[:], data[off:])
	off += copy(b.Discriminator[:], data[off:])
	b.PurchaseLimit = binary.LittleEndian.Uint64(data[off:])
	off += 8
	b.Bump = data[off]
	return b, nil
}

// SaleConfigAddress derives the canonical SaleConfig address and bump for
// an (authority, mint) pair.
func SaleConfigAddress(programID, saleAuthority, mint types.Pubkey) (types.Pubkey, uint8, error) {
	return pda.FindProgramAddress(
		[][]byte{[]byte(saleConfigSeed), saleAuthority[:], mint[:]},
		programID,
	)
}

// BuyerRecordAddress derives the canonical BuyerRecord address and bump for
// a (sale config, buyer) pair.
func BuyerRecordAddress(programID, saleConfig, buyer types.Pubkey) (types.Pubkey, uint8, error) {
	return pda.FindProgramAddress(
		[][]byte{[]byte(buyerRecordSeed), saleConfig[:], buyer[:]},
		programID,
	)
}
