package sale

// closeSale destroys the SaleConfig: the record's entire balance is swept
// to the sale authority and its storage zeroed, reverting the marker to
// uninitialized.
//
// Accounts
//  0. [WRITE]  sale_config
//  1. []       mint
//  2. [WRITE, SIGNER] sale_authority
func (p *Processor) closeSale(accounts []*AccountInfo) error {
	saleConfigInfo := accounts[0]
	authorityInfo := accounts[2]

	config, err := p.decodeOwnedSaleConfig(saleConfigInfo)
	if err != nil {
		return err
	}

	// Re-derive from the STORED authority and mint; the caller-supplied
	// accounts play no part in locating the record.
	expected, _, err := SaleConfigAddress(p.programID, config.SaleAuthority, config.Mint)
	if err != nil {
		return err
	}
	if saleConfigInfo.Key != expected {
		return newError(CodeUnexpectedPDASeeds, "sale_config")
	}

	// Only the stored authority may close, and it receives the sweep.
	if authorityInfo.Key != config.SaleAuthority {
		return newError(CodeAccountsAndTokenBaseMismatch, "sale_authority")
	}

	swept := saleConfigInfo.Lamports
	newBalance := authorityInfo.Lamports + swept
	if newBalance < authorityInfo.Lamports {
		return ErrArithmeticOverflow
	}

	authorityInfo.Lamports = newBalance
	saleConfigInfo.Lamports = 0
	for i := range saleConfigInfo.Data {
		saleConfigInfo.Data[i] = 0
	}

	p.host.Logf("sale %s closed, %d lamports swept to %s", saleConfigInfo.Key, swept, authorityInfo.Key)
	return nil
}
