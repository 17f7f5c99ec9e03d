// Native primitives the sale handlers invoke: account allocation, lamport
// transfers, and token minting. All of them operate on working copies; a
// failure aborts the instruction and the runtime discards every copy.
package runtime

import (
	"fmt"
	"log"

	"github.com/fortiblox/x1-tokensale/internal/types"
	"github.com/fortiblox/x1-tokensale/pkg/sale"
	"github.com/fortiblox/x1-tokensale/pkg/token"
)

// hostContext implements the engine's host interface.
type hostContext struct {
	logger *log.Logger
}

// CreateAccount allocates a new account of exactly space bytes, funded from
// funder and assigned to owner.
func (h *hostContext) CreateAccount(funder, account *sale.AccountInfo, lamports, space uint64, owner types.Pubkey) error {
	if len(account.Data) != 0 || account.Lamports != 0 {
		return sale.ErrAlreadyInitialized
	}
	if !funder.IsSigner {
		return &sale.Error{Code: sale.CodeNeedSigner, Label: "funder"}
	}
	if funder.Lamports < lamports {
		return sale.ErrInsufficientFunds
	}

	funder.Lamports -= lamports
	account.Lamports = lamports
	account.Data = make([]byte, space)
	account.Owner = owner
	return nil
}

// Transfer moves lamports with checked arithmetic.
func (h *hostContext) Transfer(from, to *sale.AccountInfo, lamports uint64) error {
	if from.Lamports < lamports {
		return sale.ErrInsufficientFunds
	}
	if to.Lamports+lamports < to.Lamports {
		return sale.ErrArithmeticOverflow
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

// MintTo issues tokens into dest, authorized by authority.
func (h *hostContext) MintTo(mintInfo, destInfo *sale.AccountInfo, authority types.Pubkey, amount uint64) error {
	mint, err := token.UnpackMint(mintInfo.Data)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	dest, err := token.UnpackTokenAccount(destInfo.Data)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if err := token.MintTo(mint, dest, authority, amount); err != nil {
		return err
	}

	copy(mintInfo.Data, mint.Pack())
	copy(destInfo.Data, dest.Pack())
	return nil
}

// MinimumBalance returns the rent-exempt minimum for an account of the
// given data length.
func (h *hostContext) MinimumBalance(dataLen uint64) uint64 {
	return (dataLen + accountOverhead) * lamportsPerByteYear * exemptionYears
}

// Logf records an engine diagnostic.
func (h *hostContext) Logf(format string, args ...any) {
	h.logger.Printf("engine: "+format, args...)
}

// Verify interface compliance.
var _ sale.Host = (*hostContext)(nil)
