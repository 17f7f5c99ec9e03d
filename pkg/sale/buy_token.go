package sale

import (
	"fmt"

	"github.com/fortiblox/x1-tokensale/pkg/merkle"
	"github.com/fortiblox/x1-tokensale/pkg/token"
)

// buyToken executes a purchase: the buyer proves whitelist membership
// against the stored root, pays the sale price into the vault, and receives
// freshly minted tokens in their token account. The record's payout
// reference is updated last.
//
// Accounts
//  0. []       sale_config
//  1. [WRITE]  mint
//  2. [WRITE]  vault
//  3. []       sale_authority
//  4. [WRITE]  buyer_token_account
//  5. [WRITE]  buyer_record
//  6. [WRITE, SIGNER] buyer
//  7. []       token_program
func (p *Processor) buyToken(accounts []*AccountInfo, inst *BuyToken) error {
	saleConfigInfo := accounts[0]
	mintInfo := accounts[1]
	vaultInfo := accounts[2]
	authorityInfo := accounts[3]
	buyerTokenInfo := accounts[4]
	buyerRecordInfo := accounts[5]
	buyerInfo := accounts[6]

	config, err := p.decodeOwnedSaleConfig(saleConfigInfo)
	if err != nil {
		return err
	}

	// The supplied (authority, mint) pair must derive the declared address.
	expected, _, err := SaleConfigAddress(p.programID, authorityInfo.Key, mintInfo.Key)
	if err != nil {
		return err
	}
	if saleConfigInfo.Key != expected {
		return newError(CodeUnexpectedPDASeeds, "sale_config")
	}

	// Supplied accounts must match what the config stores.
	if config.Mint != mintInfo.Key {
		return newError(CodeAccountsAndTokenBaseMismatch, "mint")
	}
	if config.Vault != vaultInfo.Key {
		return newError(CodeAccountsAndTokenBaseMismatch, "vault")
	}

	mint, err := token.UnpackMint(mintInfo.Data)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != config.SaleAuthority {
		return newError(CodeAccountsAndTokenBaseMismatch, "sale_authority")
	}

	// The buyer's token account must be live, of the sale mint, and owned
	// by the buyer.
	buyerToken, err := token.UnpackTokenAccount(buyerTokenInfo.Data)
	if err != nil {
		return fmt.Errorf("buyer_token_account: %w", err)
	}
	if buyerToken.State != token.StateInitialized {
		return fmt.Errorf("buyer_token_account: %w", token.ErrUninitializedState)
	}
	if buyerToken.Mint != config.Mint {
		return fmt.Errorf("buyer_token_account: %w", token.ErrInvalidMint)
	}
	if buyerToken.Owner != buyerInfo.Key {
		return fmt.Errorf("buyer_token_account: %w", token.ErrOwnerMismatch)
	}

	record, err := p.decodeOwnedBuyerRecord(buyerRecordInfo)
	if err != nil {
		return err
	}

	expectedRecord, _, err := BuyerRecordAddress(p.programID, saleConfigInfo.Key, buyerInfo.Key)
	if err != nil {
		return err
	}
	if buyerRecordInfo.Key != expectedRecord {
		return newError(CodeUnexpectedPDASeeds, "buyer_record")
	}

	if !config.IsRunning {
		return ErrSaleNotRunning
	}

	// Whitelist gate. Fail-closed: a malformed or misordered proof simply
	// does not reproduce the root.
	leaf := merkle.PubkeyLeaf(buyerInfo.Key)
	if !merkle.VerifyMembership(config.WhitelistRoot, inst.Proof, leaf) {
		return newError(CodeNotWhitelisted, "buyer")
	}

	if err := p.host.Transfer(buyerInfo, vaultInfo, config.Price); err != nil {
		return err
	}

	if err := p.host.MintTo(mintInfo, buyerTokenInfo, config.SaleAuthority, inst.Amount); err != nil {
		return err
	}

	record.TokenAccount = buyerTokenInfo.Key
	copy(buyerRecordInfo.Data, record.Serialize())

	p.host.Logf("buyer %s bought %d, paid %d lamports", buyerInfo.Key, inst.Amount, config.Price)
	return nil
}
