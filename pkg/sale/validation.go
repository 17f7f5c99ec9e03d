// Per-operation account constraint tables. Every handler shares the same
// shape checks (count, writable, signer, executable, pinned address); they
// run to completion before the handler body, which adds only the checks
// that differ (record state, derived-address match, cross-record
// consistency).
package sale

import (
	"fmt"

	"github.com/fortiblox/x1-tokensale/internal/types"
)

// accountRule constrains one positional account slot.
type accountRule struct {
	label         string
	writable      bool
	signer        bool
	nonExecutable bool

	// address pins the slot to an exact key (program slots); addressErr is
	// returned on mismatch.
	address    *types.Pubkey
	addressErr error
}

var (
	openSaleRules = []accountRule{
		{label: "sale_config", writable: true},
		{label: "mint"},
		{label: "vault", nonExecutable: true},
		{label: "sale_authority", writable: true, signer: true, nonExecutable: true},
		{label: "system_program", address: &types.SystemProgramAddr, addressErr: ErrIncorrectProgramID},
	}

	toggleRunningRules = []accountRule{
		{label: "sale_config", writable: true},
		{label: "mint"},
		{label: "sale_authority", signer: true, nonExecutable: true},
	}

	configureSaleRules = []accountRule{
		{label: "sale_config", writable: true},
		{label: "mint"},
		{label: "sale_authority", signer: true, nonExecutable: true},
	}

	closeSaleRules = []accountRule{
		{label: "sale_config", writable: true},
		{label: "mint"},
		{label: "sale_authority", writable: true, signer: true, nonExecutable: true},
	}

	assignLimitRules = []accountRule{
		{label: "sale_config"},
		{label: "buyer_record", writable: true},
		{label: "buyer", nonExecutable: true},
		{label: "sale_authority", signer: true, nonExecutable: true},
	}

	registerBuyerRules = []accountRule{
		{label: "sale_config"},
		{label: "buyer_record", writable: true},
		{label: "buyer", writable: true, signer: true, nonExecutable: true},
		{label: "system_program", address: &types.SystemProgramAddr, addressErr: ErrIncorrectProgramID},
	}

	deregisterBuyerRules = []accountRule{
		{label: "sale_config"},
		{label: "buyer_record", writable: true},
		{label: "buyer", writable: true, signer: true, nonExecutable: true},
	}

	buyTokenRules = []accountRule{
		{label: "sale_config"},
		{label: "mint", writable: true},
		{label: "vault", writable: true},
		{label: "sale_authority"},
		{label: "buyer_token_account", writable: true},
		{label: "buyer_record", writable: true},
		{label: "buyer", writable: true, signer: true, nonExecutable: true},
		{label: "token_program", address: &types.TokenProgramAddr, addressErr: newError(CodeInvalidTokenProgramID, "token_program")},
	}
)

// checkAccounts verifies an instruction's account set against its rules.
func checkAccounts(rules []accountRule, accounts []*AccountInfo) error {
	if len(accounts) < len(rules) {
		return ErrNotEnoughAccounts
	}

	for i, rule := range rules {
		account := accounts[i]

		if rule.address != nil && account.Key != *rule.address {
			return rule.addressErr
		}
		if rule.signer && !account.IsSigner {
			return newError(CodeNeedSigner, rule.label)
		}
		if rule.nonExecutable && account.Executable {
			return newError(CodeMustBeNonExecutable, rule.label)
		}
		if rule.writable && !account.IsWritable {
			return fmt.Errorf("%s: %w", rule.label, ErrAccountNotWritable)
		}
	}
	return nil
}
