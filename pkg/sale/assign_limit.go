package sale

// assignLimit sets a buyer's purchase limit, overriding the sale default.
//
// Accounts
//  0. []       sale_config
//  1. [WRITE]  buyer_record
//  2. []       buyer
//  3. [SIGNER] sale_authority
func (p *Processor) assignLimit(accounts []*AccountInfo, inst *AssignLimit) error {
	saleConfigInfo := accounts[0]
	buyerRecordInfo := accounts[1]
	buyerInfo := accounts[2]
	authorityInfo := accounts[3]

	config, err := p.decodeOwnedSaleConfig(saleConfigInfo)
	if err != nil {
		return err
	}

	record, err := p.decodeOwnedBuyerRecord(buyerRecordInfo)
	if err != nil {
		return err
	}

	// The record must live at the canonical derivation for
	// (sale config, buyer).
	expected, _, err := BuyerRecordAddress(p.programID, saleConfigInfo.Key, buyerInfo.Key)
	if err != nil {
		return err
	}
	if buyerRecordInfo.Key != expected {
		return newError(CodeUnexpectedPDASeeds, "buyer_record")
	}

	// Only the stored sale authority may assign limits.
	if authorityInfo.Key != config.SaleAuthority {
		return newError(CodeAccountsAndTokenBaseMismatch, "sale_authority")
	}

	record.PurchaseLimit = inst.NewPurchaseLimit
	copy(buyerRecordInfo.Data, record.Serialize())

	p.host.Logf("buyer %s limit set to %d", buyerInfo.Key, inst.NewPurchaseLimit)
	return nil
}
