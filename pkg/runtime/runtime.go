// Package runtime is the execution host for the sale engine. It loads each
// instruction's declared account set into working copies, invokes the
// processor, and commits every write back to the account store only when
// the whole instruction succeeds. Each executed instruction advances the
// slot and appends a receipt to the ledger.
package runtime

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/fortiblox/x1-tokensale/internal/types"
	"github.com/fortiblox/x1-tokensale/pkg/accounts"
	"github.com/fortiblox/x1-tokensale/pkg/ledger"
	"github.com/fortiblox/x1-tokensale/pkg/sale"
)

// Rent parameters for freshly created accounts.
const (
	lamportsPerByteYear = 3_480
	exemptionYears      = 2
	accountOverhead     = 128
)

// Config holds runtime configuration options.
type Config struct {
	// ProgramID is the identity the sale engine executes as.
	ProgramID types.Pubkey

	// Logger receives engine diagnostics. Nil uses the default logger.
	Logger *log.Logger
}

// DefaultConfig returns the default runtime configuration.
func DefaultConfig() Config {
	return Config{
		ProgramID: types.TokenSaleProgramAddr,
		Logger:    log.Default(),
	}
}

// AccountMeta declares one account of an instruction, with its required
// capabilities.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is one submitted instruction: the declared account set plus
// raw instruction bytes.
type Instruction struct {
	Accounts []AccountMeta
	Data     []byte
}

// Runtime executes instructions against an account store.
type Runtime struct {
	config    Config
	db        accounts.DB
	ledger    *ledger.Store
	processor *sale.Processor
	logger    *log.Logger

	// mu serializes instruction execution; the engine itself holds no
	// global state.
	mu sync.Mutex
}

// New creates a runtime over db. ledgerStore may be nil to skip receipts.
func New(config Config, db accounts.DB, ledgerStore *ledger.Store) *Runtime {
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	r := &Runtime{
		config: config,
		db:     db,
		ledger: ledgerStore,
		logger: logger,
	}
	r.processor = sale.NewProcessor(config.ProgramID, &hostContext{logger: logger})
	return r
}

// ProgramID returns the identity the sale engine executes as.
func (r *Runtime) ProgramID() types.Pubkey {
	return r.config.ProgramID
}

// Slot returns the current slot.
func (r *Runtime) Slot() uint64 {
	return r.db.GetSlot()
}

// Execute runs one instruction. On success every write commits atomically
// and the new slot is returned; on failure the working copies are discarded
// and the store is untouched. Either way the slot advances and a receipt is
// recorded.
func (r *Runtime) Execute(inst *Instruction) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.db.GetSlot() + 1

	infos, unique, err := r.loadAccounts(inst.Accounts)
	if err != nil {
		return 0, err
	}

	procErr := r.processor.Process(infos, inst.Data)

	if procErr == nil {
		// All writes land in one atomic batch so a store failure cannot
		// persist a prefix of the instruction's effects.
		updates := make(map[types.Pubkey]*accounts.Account, len(unique))
		for _, info := range unique {
			updates[info.Key] = &accounts.Account{
				Lamports:   info.Lamports,
				Data:       info.Data,
				Owner:      info.Owner,
				Executable: info.Executable,
				RentEpoch:  ^uint64(0),
			}
		}
		if err := r.db.SetAccounts(updates); err != nil {
			return 0, fmt.Errorf("commit accounts: %w", err)
		}
	}

	if err := r.db.SetSlot(slot); err != nil {
		return 0, fmt.Errorf("advance slot: %w", err)
	}

	if r.ledger != nil {
		receipt := &ledger.Receipt{
			Slot: slot,
			Ok:   procErr == nil,
		}
		if len(inst.Data) > 0 {
			receipt.Tag = inst.Data[0]
		}
		for _, meta := range inst.Accounts {
			receipt.Accounts = append(receipt.Accounts, meta.Pubkey)
		}
		if procErr != nil {
			receipt.Err = procErr.Error()
		}
		if err := r.ledger.Append(receipt); err != nil {
			return 0, fmt.Errorf("append receipt: %w", err)
		}
	}

	return slot, procErr
}

// loadAccounts builds working copies for the declared account set.
// Duplicate keys share one copy so mutations stay consistent.
func (r *Runtime) loadAccounts(metas []AccountMeta) ([]*sale.AccountInfo, []*sale.AccountInfo, error) {
	byKey := make(map[types.Pubkey]*sale.AccountInfo, len(metas))
	infos := make([]*sale.AccountInfo, 0, len(metas))
	unique := make([]*sale.AccountInfo, 0, len(metas))

	for _, meta := range metas {
		if existing, ok := byKey[meta.Pubkey]; ok {
			existing.IsSigner = existing.IsSigner || meta.IsSigner
			existing.IsWritable = existing.IsWritable || meta.IsWritable
			infos = append(infos, existing)
			continue
		}

		info := &sale.AccountInfo{
			Key:        meta.Pubkey,
			Owner:      types.SystemProgramAddr,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}

		stored, err := r.db.GetAccount(meta.Pubkey)
		switch {
		case err == nil:
			info.Lamports = stored.Lamports
			info.Data = stored.Data
			info.Owner = stored.Owner
			info.Executable = stored.Executable
		case errors.Is(err, accounts.ErrAccountNotFound):
			// Fresh zero account owned by the system program.
			if meta.Pubkey == types.SystemProgramAddr || meta.Pubkey == types.TokenProgramAddr {
				info.Executable = true
			}
		default:
			return nil, nil, fmt.Errorf("load account %s: %w", meta.Pubkey, err)
		}

		byKey[meta.Pubkey] = info
		infos = append(infos, info)
		unique = append(unique, info)
	}

	return infos, unique, nil
}

// ReadSaleConfig loads and decodes the SaleConfig at addr.
func (r *Runtime) ReadSaleConfig(addr types.Pubkey) (*sale.SaleConfig, error) {
	account, err := r.db.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	config, err := sale.DecodeSaleConfig(account.Data)
	if err != nil {
		return nil, err
	}
	if !config.Initialized() {
		return nil, accounts.ErrAccountNotFound
	}
	return config, nil
}

// ReadBuyerRecord loads and decodes the BuyerRecord at addr.
func (r *Runtime) ReadBuyerRecord(addr types.Pubkey) (*sale.BuyerRecord, error) {
	account, err := r.db.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	record, err := sale.DecodeBuyerRecord(account.Data)
	if err != nil {
		return nil, err
	}
	if !record.Initialized() {
		return nil, accounts.ErrAccountNotFound
	}
	return record, nil
}
