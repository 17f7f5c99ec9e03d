package sale

import (
	"fmt"

	"github.com/fortiblox/x1-tokensale/pkg/token"
)

// toggleRunning flips the sale's purchase gate.
//
// Accounts
//  0. [WRITE]  sale_config
//  1. []       mint
//  2. [SIGNER] sale_authority
func (p *Processor) toggleRunning(accounts []*AccountInfo) error {
	saleConfigInfo := accounts[0]
	mintInfo := accounts[1]
	authorityInfo := accounts[2]

	config, err := p.decodeOwnedSaleConfig(saleConfigInfo)
	if err != nil {
		return err
	}

	// The supplied (authority, mint) pair must derive the declared address;
	// a signer other than the stored authority cannot satisfy this.
	expected, _, err := SaleConfigAddress(p.programID, authorityInfo.Key, mintInfo.Key)
	if err != nil {
		return err
	}
	if saleConfigInfo.Key != expected {
		return newError(CodeUnexpectedPDASeeds, "sale_config")
	}

	// The mint must still be controlled by the sale authority.
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

	config.IsRunning = !config.IsRunning
	copy(saleConfigInfo.Data, config.Serialize())

	p.host.Logf("sale %s: running=%t", saleConfigInfo.Key, config.IsRunning)
	return nil
}
