package sale

// configureSale applies a partial update to the SaleConfig. Absent fields
// retain their prior value; an update with every field absent is rejected.
//
// Accounts
//  0. [WRITE]  sale_config
//  1. []       mint
//  2. [SIGNER] sale_authority
func (p *Processor) configureSale(accounts []*AccountInfo, inst *ConfigureSale) error {
	saleConfigInfo := accounts[0]
	authorityInfo := accounts[2]

	if inst.Price == nil && inst.PurchaseLimit == nil && inst.WhitelistRoot == nil {
		return ErrNothingToConfigure
	}

	config, err := p.decodeOwnedSaleConfig(saleConfigInfo)
	if err != nil {
		return err
	}

	// Re-derive from the STORED authority and mint, so the declared address
	// is checked against what the record claims rather than against
	// caller-supplied accounts.
	expected, _, err := SaleConfigAddress(p.programID, config.SaleAuthority, config.Mint)
	if err != nil {
		return err
	}
	if saleConfigInfo.Key != expected {
		return newError(CodeUnexpectedPDASeeds, "sale_config")
	}

	// Only the stored authority may reconfigure.
	if authorityInfo.Key != config.SaleAuthority {
		return newError(CodeAccountsAndTokenBaseMismatch, "sale_authority")
	}

	if inst.Price != nil {
		config.Price = *inst.Price
	}
	if inst.PurchaseLimit != nil {
		config.DefaultPurchaseLimit = *inst.PurchaseLimit
	}
	if inst.WhitelistRoot != nil {
		config.WhitelistRoot = *inst.WhitelistRoot
	}
	copy(saleConfigInfo.Data, config.Serialize())

	p.host.Logf("sale %s reconfigured", saleConfigInfo.Key)
	return nil
}
