package sale

// deregisterBuyer destroys a BuyerRecord: the record's entire balance is
// swept to the buyer and its storage zeroed, reverting the marker to
// uninitialized.
//
// Accounts
//  0. []       sale_config
//  1. [WRITE]  buyer_record
//  2. [WRITE, SIGNER] buyer
func (p *Processor) deregisterBuyer(accounts []*AccountInfo) error {
	saleConfigInfo := accounts[0]
	buyerRecordInfo := accounts[1]
	buyerInfo := accounts[2]

	if _, err := p.decodeOwnedSaleConfig(saleConfigInfo); err != nil {
		return err
	}

	if _, err := p.decodeOwnedBuyerRecord(buyerRecordInfo); err != nil {
		return err
	}

	expected, _, err := BuyerRecordAddress(p.programID, saleConfigInfo.Key, buyerInfo.Key)
	if err != nil {
		return err
	}
	if buyerRecordInfo.Key != expected {
		return newError(CodeUnexpectedPDASeeds, "buyer_record")
	}

	swept := buyerRecordInfo.Lamports
	newBalance := buyerInfo.Lamports + swept
	if newBalance < buyerInfo.Lamports {
		return ErrArithmeticOverflow
	}

	buyerInfo.Lamports = newBalance
	buyerRecordInfo.Lamports = 0
	for i := range buyerRecordInfo.Data {
		buyerRecordInfo.Data[i] = 0
	}

	p.host.Logf("buyer %s deregistered, %d lamports swept", buyerInfo.Key, swept)
	return nil
}
