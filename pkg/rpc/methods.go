package rpc

import (
	"encoding/json"
	"errors"

	"github.com/fortiblox/x1-tokensale/internal/types"
	"github.com/fortiblox/x1-tokensale/pkg/accounts"
	"github.com/fortiblox/x1-tokensale/pkg/ledger"
	"github.com/fortiblox/x1-tokensale/pkg/runtime"
	"github.com/fortiblox/x1-tokensale/pkg/sale"
)

// Version reported by getVersion.
const Version = "0.1.0"

// Backend is the host state the server queries.
type Backend interface {
	// Slot returns the current slot.
	Slot() uint64

	// Balance returns an account's lamport balance.
	Balance(addr types.Pubkey) (uint64, error)

	// SaleConfig returns the decoded sale configuration at addr.
	SaleConfig(addr types.Pubkey) (*sale.SaleConfig, error)

	// BuyerRecord returns the decoded buyer record at addr.
	BuyerRecord(addr types.Pubkey) (*sale.BuyerRecord, error)

	// Receipt returns the instruction receipt for a slot.
	Receipt(slot uint64) (*ledger.Receipt, error)
}

// HostBackend adapts the runtime, account store, and ledger into a Backend.
type HostBackend struct {
	DB      accounts.DB
	Runtime *runtime.Runtime
	Ledger  *ledger.Store
}

// Slot returns the current slot.
func (b *HostBackend) Slot() uint64 {
	return b.Runtime.Slot()
}

// Balance returns an account's lamport balance.
func (b *HostBackend) Balance(addr types.Pubkey) (uint64, error) {
	account, err := b.DB.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return account.Lamports, nil
}

// SaleConfig returns the decoded sale configuration at addr.
func (b *HostBackend) SaleConfig(addr types.Pubkey) (*sale.SaleConfig, error) {
	return b.Runtime.ReadSaleConfig(addr)
}

// BuyerRecord returns the decoded buyer record at addr.
func (b *HostBackend) BuyerRecord(addr types.Pubkey) (*sale.BuyerRecord, error) {
	return b.Runtime.ReadBuyerRecord(addr)
}

// Receipt returns the instruction receipt for a slot. A host running
// without a ledger has no receipts.
func (b *HostBackend) Receipt(slot uint64) (*ledger.Receipt, error) {
	if b.Ledger == nil {
		return nil, ledger.ErrReceiptNotFound
	}
	return b.Ledger.Get(slot)
}

// Verify interface compliance.
var _ Backend = (*HostBackend)(nil)

// addressParam extracts a single base58 address parameter.
func addressParam(params json.RawMessage) (types.Pubkey, *RPCError) {
	var list []string
	if err := json.Unmarshal(params, &list); err != nil || len(list) != 1 {
		return types.Pubkey{}, rpcError(InvalidParams, "expected [address]")
	}
	addr, err := types.PubkeyFromBase58(list[0])
	if err != nil {
		return types.Pubkey{}, rpcError(InvalidParams, "invalid address: %v", err)
	}
	return addr, nil
}

// slotParam extracts a single slot parameter.
func slotParam(params json.RawMessage) (uint64, *RPCError) {
	var list []uint64
	if err := json.Unmarshal(params, &list); err != nil || len(list) != 1 {
		return 0, rpcError(InvalidParams, "expected [slot]")
	}
	return list[0], nil
}

func (s *Server) getHealth(json.RawMessage) (interface{}, *RPCError) {
	return "ok", nil
}

func (s *Server) getSlot(json.RawMessage) (interface{}, *RPCError) {
	return s.backend.Slot(), nil
}

func (s *Server) getVersion(json.RawMessage) (interface{}, *RPCError) {
	return map[string]string{"version": Version}, nil
}

func (s *Server) getBalance(params json.RawMessage) (interface{}, *RPCError) {
	addr, rpcErr := addressParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	balance, err := s.backend.Balance(addr)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return nil, rpcError(AccountNotFound, "account not found: %s", addr)
		}
		return nil, rpcError(InternalError, "%v", err)
	}
	return map[string]uint64{"value": balance}, nil
}

// saleConfigResult is the JSON shape of a sale configuration.
type saleConfigResult struct {
	SaleAuthority        string `json:"saleAuthority"`
	Mint                 string `json:"mint"`
	Vault                string `json:"vault"`
	WhitelistRoot        string `json:"whitelistRoot"`
	Price                uint64 `json:"price"`
	DefaultPurchaseLimit uint64 `json:"defaultPurchaseLimit"`
	Bump                 uint8  `json:"bump"`
	IsRunning            bool   `json:"isRunning"`
}

func (s *Server) getSaleConfig(params json.RawMessage) (interface{}, *RPCError) {
	addr, rpcErr := addressParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	config, err := s.backend.SaleConfig(addr)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return nil, rpcError(AccountNotFound, "sale config not found: %s", addr)
		}
		return nil, rpcError(InternalError, "%v", err)
	}

	return &saleConfigResult{
		SaleAuthority:        config.SaleAuthority.String(),
		Mint:                 config.Mint.String(),
		Vault:                config.Vault.String(),
		WhitelistRoot:        config.WhitelistRoot.String(),
		Price:                config.Price,
		DefaultPurchaseLimit: config.DefaultPurchaseLimit,
		Bump:                 config.Bump,
		IsRunning:            config.IsRunning,
	}, nil
}

// buyerRecordResult is the JSON shape of a buyer record.
type buyerRecordResult struct {
	TokenAccount  string `json:"tokenAccount"`
	PurchaseLimit uint64 `json:"purchaseLimit"`
	Bump          uint8  `json:"bump"`
}

func (s *Server) getBuyerRecord(params json.RawMessage) (interface{}, *RPCError) {
	addr, rpcErr := addressParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	record, err := s.backend.BuyerRecord(addr)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return nil, rpcError(AccountNotFound, "buyer record not found: %s", addr)
		}
		return nil, rpcError(InternalError, "%v", err)
	}

	return &buyerRecordResult{
		TokenAccount:  record.TokenAccount.String(),
		PurchaseLimit: record.PurchaseLimit,
		Bump:          record.Bump,
	}, nil
}

// receiptResult is the JSON shape of an instruction receipt.
type receiptResult struct {
	Slot     uint64   `json:"slot"`
	Tag      byte     `json:"tag"`
	Accounts []string `json:"accounts"`
	Ok       bool     `json:"ok"`
	Err      string   `json:"err,omitempty"`
}

func (s *Server) getReceipt(params json.RawMessage) (interface{}, *RPCError) {
	slot, rpcErr := slotParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	receipt, err := s.backend.Receipt(slot)
	if err != nil {
		if errors.Is(err, ledger.ErrReceiptNotFound) {
			return nil, rpcError(ReceiptNotFound, "no receipt for slot %d", slot)
		}
		return nil, rpcError(InternalError, "%v", err)
	}

	result := &receiptResult{
		Slot: receipt.Slot,
		Tag:  receipt.Tag,
		Ok:   receipt.Ok,
		Err:  receipt.Err,
	}
	for _, account := range receipt.Accounts {
		result.Accounts = append(result.Accounts, account.String())
	}
	return result, nil
}
