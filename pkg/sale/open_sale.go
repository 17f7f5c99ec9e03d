package sale

import (
	"fmt"

	"github.com/fortiblox/x1-tokensale/pkg/token"
)

// openSale creates and populates the SaleConfig for an (authority, mint)
// pair. The sale starts paused.
//
// Accounts
//  0. [WRITE]  sale_config, at the canonical derived address
//  1. []       mint
//  2. []       vault
//  3. [SIGNER] sale_authority
//  4. []       system_program
func (p *Processor) openSale(accounts []*AccountInfo, inst *OpenSale) error {
	saleConfigInfo := accounts[0]
	mintInfo := accounts[1]
	vaultInfo := accounts[2]
	authorityInfo := accounts[3]

	// The target slot must be unallocated.
	if len(saleConfigInfo.Data) != 0 {
		return fmt.Errorf("sale_config: %w", ErrAlreadyInitialized)
	}

	// The declared address must be the canonical derivation for
	// (authority, mint).
	expected, bump, err := SaleConfigAddress(p.programID, authorityInfo.Key, mintInfo.Key)
	if err != nil {
		return err
	}
	if saleConfigInfo.Key != expected {
		return newError(CodeUnexpectedPDASeeds, "sale_config")
	}

	// The mint must exist and be controlled by the sale authority.
	mint, err := token.UnpackMint(mintInfo.Data)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if !mint.IsInitialized {
		return fmt.Errorf("mint: %w", token.ErrUninitializedState)
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != authorityInfo.Key {
		return newError(CodeMintAndSaleAuthorityMismatch, "mint")
	}

	lamports := p.host.MinimumBalance(SaleConfigLen)
	if err := p.host.CreateAccount(authorityInfo, saleConfigInfo, lamports, SaleConfigLen, p.programID); err != nil {
		return err
	}

	config := &SaleConfig{
		SaleAuthority:        authorityInfo.Key,
		Mint:                 mintInfo.Key,
		Vault:                vaultInfo.Key,
		WhitelistRoot:        inst.WhitelistRoot,
		Price:                inst.Price,
		DefaultPurchaseLimit: inst.PurchaseLimit,
		Bump:                 bump,
		IsRunning:            false,
	}
	config.SetInitialized()
	copy(saleConfigInfo.Data, config.Serialize())

	p.host.Logf("sale opened: authority=%s mint=%s price=%d", authorityInfo.Key, mintInfo.Key, inst.Price)
	return nil
}
