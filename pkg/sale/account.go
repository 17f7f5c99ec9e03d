package sale

import (
	"github.com/fortiblox/x1-tokensale/internal/types"
)

// AccountInfo is one account in an instruction's declared account set. The
// host hands the engine working copies; mutations become visible only when
// the host commits the whole instruction.
type AccountInfo struct {
	// Key is the account address.
	Key types.Pubkey

	// Lamports is the account balance.
	Lamports uint64

	// Data is the account data.
	Data []byte

	// Owner is the program owning the account.
	Owner types.Pubkey

	// Executable marks program accounts.
	Executable bool

	// IsSigner is true if the account's key signed the transaction.
	IsSigner bool

	// IsWritable is true if the instruction declared the account writable.
	IsWritable bool
}

// Host exposes the native primitives handlers invoke. A primitive failure
// aborts the whole instruction; the host discards every working copy.
type Host interface {
	// CreateAccount allocates a new account of exactly space bytes, funds it
	// with lamports debited from funder, and assigns its owner.
	CreateAccount(funder, account *AccountInfo, lamports, space uint64, owner types.Pubkey) error

	// Transfer moves lamports between accounts with checked arithmetic.
	Transfer(from, to *AccountInfo, lamports uint64) error

	// MintTo issues amount tokens of mint into dest, authorized by authority.
	MintTo(mint, dest *AccountInfo, authority types.Pubkey, amount uint64) error

	// MinimumBalance returns the smallest balance a fresh account of the
	// given data length must hold.
	MinimumBalance(dataLen uint64) uint64

	// Logf records a diagnostic message.
	Logf(format string, args ...any)
}
