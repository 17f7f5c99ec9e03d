package sale

import (
	"github.com/fortiblox/x1-tokensale/internal/types"
)

// Processor routes decoded instructions to their handlers.
type Processor struct {
	programID types.Pubkey
	host      Host
}

// NewProcessor creates a processor executing as programID against host.
func NewProcessor(programID types.Pubkey, host Host) *Processor {
	return &Processor{programID: programID, host: host}
}

// ProgramID returns the program identity the processor executes as.
func (p *Processor) ProgramID() types.Pubkey {
	return p.programID
}

// Process decodes the instruction bytes, validates the account set, and
// runs the matching handler. The first failing check aborts; the host's
// commit boundary guarantees no partial writes become visible.
func (p *Processor) Process(accounts []*AccountInfo, data []byte) error {
	inst, err := DecodeInstruction(data)
	if err != nil {
		return err
	}

	switch inst := inst.(type) {
	case *OpenSale:
		if err := checkAccounts(openSaleRules, accounts); err != nil {
			return err
		}
		return p.openSale(accounts, inst)

	case *ToggleRunning:
		if err := checkAccounts(toggleRunningRules, accounts); err != nil {
			return err
		}
		return p.toggleRunning(accounts)

	case *ConfigureSale:
		if err := checkAccounts(configureSaleRules, accounts); err != nil {
			return err
		}
		return p.configureSale(accounts, inst)

	case *CloseSale:
		if err := checkAccounts(closeSaleRules, accounts); err != nil {
			return err
		}
		return p.closeSale(accounts)

	case *AssignLimit:
		if err := checkAccounts(assignLimitRules, accounts); err != nil {
			return err
		}
		return p.assignLimit(accounts, inst)

	case *RegisterBuyer:
		if err := checkAccounts(registerBuyerRules, accounts); err != nil {
			return err
		}
		return p.registerBuyer(accounts)

	case *DeregisterBuyer:
		if err := checkAccounts(deregisterBuyerRules, accounts); err != nil {
			return err
		}
		return p.deregisterBuyer(accounts)

	case *BuyToken:
		if err := checkAccounts(buyTokenRules, accounts); err != nil {
			return err
		}
		return p.buyToken(accounts, inst)

	default:
		return ErrInvalidInstructionData
	}
}

// decodeOwnedSaleConfig performs the shared record shape checks on a
// SaleConfig account: program ownership, exact length, initialized marker.
func (p *Processor) decodeOwnedSaleConfig(account *AccountInfo) (*SaleConfig, error) {
	if account.Owner != p.programID {
		return nil, ErrInvalidAccountOwner
	}
	if len(account.Data) != SaleConfigLen {
		return nil, newError(CodeInvalidAccountDataLength, "sale_config")
	}
	config, err := DecodeSaleConfig(account.Data)
	if err != nil {
		return nil, err
	}
	if !config.Initialized() {
		return nil, newError(CodeAccountUninitialized, "sale_config")
	}
	return config, nil
}

// decodeOwnedBuyerRecord performs the same shape checks on a BuyerRecord
// account.
func (p *Processor) decodeOwnedBuyerRecord(account *AccountInfo) (*BuyerRecord, error) {
	if account.Owner != p.programID {
		return nil, ErrInvalidAccountOwner
	}
	if len(account.Data) != BuyerRecordLen {
		return nil, newError(CodeInvalidAccountDataLength, "buyer_record")
	}
	record, err := DecodeBuyerRecord(account.Data)
	if err != nil {
		return nil, err
	}
	if !record.Initialized() {
		return nil, newError(CodeAccountUninitialized, "buyer_record")
	}
	return record, nil
}
