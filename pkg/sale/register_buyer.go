package sale

import (
	"fmt"
)

// registerBuyer creates a BuyerRecord for (sale config, buyer), seeded with
// the sale's default purchase limit. The buyer funds the allocation.
//
// Accounts
//  0. []       sale_config
//  1. [WRITE]  buyer_record
//  2. [WRITE, SIGNER] buyer
//  3. []       system_program
func (p *Processor) registerBuyer(accounts []*AccountInfo) error {
	saleConfigInfo := accounts[0]
	buyerRecordInfo := accounts[1]
	buyerInfo := accounts[2]

	config, err := p.decodeOwnedSaleConfig(saleConfigInfo)
	if err != nil {
		return err
	}

	// The target slot must be unallocated.
	if len(buyerRecordInfo.Data) != 0 {
		return fmt.Errorf("buyer_record: %w", ErrAlreadyInitialized)
	}

	expected, bump, err := BuyerRecordAddress(p.programID, saleConfigInfo.Key, buyerInfo.Key)
	if err != nil {
		return err
	}
	if buyerRecordInfo.Key != expected {
		return newError(CodeUnexpectedPDASeeds, "buyer_record")
	}

	lamports := p.host.MinimumBalance(BuyerRecordLen)
	if err := p.host.CreateAccount(buyerInfo, buyerRecordInfo, lamports, BuyerRecordLen, p.programID); err != nil {
		return err
	}

	record := &BuyerRecord{
		PurchaseLimit: config.DefaultPurchaseLimit,
		Bump:          bump,
	}
	record.SetInitialized()
	copy(buyerRecordInfo.Data, record.Serialize())

	p.host.Logf("buyer %s registered, limit=%d", buyerInfo.Key, config.DefaultPurchaseLimit)
	return nil
}
