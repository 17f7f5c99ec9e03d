// Package token implements the minimal token program state the sale host
// depends on: mints and token accounts in the SPL binary layout, plus the
// mint-to primitive invoked during a purchase.
//
// Only the operations the sale engine exercises are implemented; this is a
// collaborator of the engine, not a full token program.
package token

import (
	"encoding/binary"
	"errors"

	"github.com/fortiblox/x1-tokensale/internal/types"
)

// Packed sizes of the on-chain layouts.
const (
	MintLen         = 82
	TokenAccountLen = 165
)

// Token program errors.
var (
	ErrInvalidAccountData = errors.New("invalid token account data")
	ErrUninitializedState = errors.New("token state uninitialized")
	ErrInvalidMint        = errors.New("token account mint mismatch")
	ErrOwnerMismatch      = errors.New("token account owner mismatch")
	ErrMintAuthority      = errors.New("invalid mint authority")
	ErrFixedSupply        = errors.New("mint has no mint authority")
	ErrSupplyOverflow     = errors.New("token supply overflow")
)

// AccountState is the lifecycle state of a token account.
type AccountState uint8

// Token account states.
const (
	StateUninitialized AccountState = 0
	StateInitialized   AccountState = 1
	StateFrozen        AccountState = 2
)

// Mint describes a token's issuance parameters.
//
// Packed layout (82 bytes):
//   - mint_authority: COption<Pubkey> (4 + 32)
//   - supply: u64
//   - decimals: u8
//   - is_initialized: bool (1)
//   - freeze_authority: COption<Pubkey> (4 + 32)
type Mint struct {
	// MintAuthority may issue new supply; nil means fixed supply.
	MintAuthority *types.Pubkey

	// Supply is the total circulating amount.
	Supply uint64

	// Decimals is the display precision.
	Decimals uint8

	// IsInitialized is set once the mint is created.
	IsInitialized bool

	// FreezeAuthority may freeze token accounts; nil disables freezing.
	FreezeAuthority *types.Pubkey
}

// Pack encodes the mint into its 82-byte layout.
func (m *Mint) Pack() []byte {
	buf := make([]byte, MintLen)
	packCOptionKey(buf[0:36], m.MintAuthority)
	binary.LittleEndian.PutUint64(buf[36:44], m.Supply)
	buf[44] = m.Decimals
	if m.IsInitialized {
		buf[45] = 1
	}
	packCOptionKey(buf[46:82], m.FreezeAuthority)
	return buf
}

// UnpackMint decodes a mint from its 82-byte layout.
func UnpackMint(data []byte) (*Mint, error) {
	if len(data) != MintLen {
		return nil, ErrInvalidAccountData
	}

	mintAuthority, err := unpackCOptionKey(data[0:36])
	if err != nil {
		return nil, err
	}
	freezeAuthority, err := unpackCOptionKey(data[46:82])
	if err != nil {
		return nil, err
	}

	return &Mint{
		MintAuthority:   mintAuthority,
		Supply:          binary.LittleEndian.Uint64(data[36:44]),
		Decimals:        data[44],
		IsInitialized:   data[45] != 0,
		FreezeAuthority: freezeAuthority,
	}, nil
}

// TokenAccount holds a wallet's balance of one mint.
//
// Packed layout (165 bytes):
//   - mint: Pubkey (32)
//   - owner: Pubkey (32)
//   - amount: u64
//   - delegate: COption<Pubkey> (4 + 32)
//   - state: u8
//   - is_native: COption<u64> (4 + 8)
//   - delegated_amount: u64
//   - close_authority: COption<Pubkey> (4 + 32)
type TokenAccount struct {
	Mint            types.Pubkey
	Owner           types.Pubkey
	Amount          uint64
	Delegate        *types.Pubkey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *types.Pubkey
}

// Pack encodes the token account into its 165-byte layout.
func (a *TokenAccount) Pack() []byte {
	buf := make([]byte, TokenAccountLen)
	copy(buf[0:32], a.Mint[:])
	copy(buf[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(buf[64:72], a.Amount)
	packCOptionKey(buf[72:108], a.Delegate)
	buf[108] = byte(a.State)
	if a.IsNative != nil {
		binary.LittleEndian.PutUint32(buf[109:113], 1)
		binary.LittleEndian.PutUint64(buf[113:121], *a.IsNative)
	}
	binary.LittleEndian.PutUint64(buf[121:129], a.DelegatedAmount)
	packCOptionKey(buf[129:165], a.CloseAuthority)
	return buf
}

// UnpackTokenAccount decodes a token account from its 165-byte layout.
func UnpackTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountLen {
		return nil, ErrInvalidAccountData
	}

	delegate, err := unpackCOptionKey(data[72:108])
	if err != nil {
		return nil, err
	}
	closeAuthority, err := unpackCOptionKey(data[129:165])
	if err != nil {
		return nil, err
	}

	account := &TokenAccount{
		Amount:          binary.LittleEndian.Uint64(data[64:72]),
		Delegate:        delegate,
		State:           AccountState(data[108]),
		DelegatedAmount: binary.LittleEndian.Uint64(data[121:129]),
		CloseAuthority:  closeAuthority,
	}
	copy(account.Mint[:], data[0:32])
	copy(account.Owner[:], data[32:64])

	switch binary.LittleEndian.Uint32(data[109:113]) {
	case 0:
	case 1:
		native := binary.LittleEndian.Uint64(data[113:121])
		account.IsNative = &native
	default:
		return nil, ErrInvalidAccountData
	}

	if account.State > StateFrozen {
		return nil, ErrInvalidAccountData
	}

	return account, nil
}

// IsInitialized reports whether the token account has been initialized.
func (a *TokenAccount) IsInitialized() bool {
	return a.State == StateInitialized || a.State == StateFrozen
}

// MintTo issues amount new tokens from mint into dest.
//
// The caller is responsible for having verified that authority signed;
// this checks that authority is the mint's mint authority and that both
// supply and destination balance survive checked addition.
func MintTo(mint *Mint, dest *TokenAccount, authority types.Pubkey, amount uint64) error {
	if !mint.IsInitialized {
		return ErrUninitializedState
	}
	if mint.MintAuthority == nil {
		return ErrFixedSupply
	}
	if *mint.MintAuthority != authority {
		return ErrMintAuthority
	}
	if dest.State != StateInitialized {
		return ErrUninitializedState
	}

	newSupply := mint.Supply + amount
	if newSupply < mint.Supply {
		return ErrSupplyOverflow
	}
	newAmount := dest.Amount + amount
	if newAmount < dest.Amount {
		return ErrSupplyOverflow
	}

	mint.Supply = newSupply
	dest.Amount = newAmount
	return nil
}

func packCOptionKey(buf []byte, key *types.Pubkey) {
	if key != nil {
		binary.LittleEndian.PutUint32(buf[0:4], 1)
		copy(buf[4:36], key[:])
	}
}

func unpackCOptionKey(buf []byte) (*types.Pubkey, error) {
	switch binary.LittleEndian.Uint32(buf[0:4]) {
	case 0:
		return nil, nil
	case 1:
		var key types.Pubkey
		copy(key[:], buf[4:36])
		return &key, nil
	default:
		return nil, ErrInvalidAccountData
	}
}
