package sale

import (
	"testing"

	"github.com/fortiblox/x1-tokensale/internal/types"
	"github.com/fortiblox/x1-tokensale/pkg/token"
)

// testHost applies the native primitives directly to the working copies.
type testHost struct{}

func (h *testHost) CreateAccount(funder, account *AccountInfo, lamports, space uint64, owner types.Pubkey) error {
	if len(account.Data) != 0 {
		return ErrAlreadyInitialized
	}
	if funder.Lamports < lamports {
		return ErrInsufficientFunds
	}
	funder.Lamports -= lamports
	account.Lamports += lamports
	account.Data = make([]byte, space)
	account.Owner = owner
	return nil
}

func (h *testHost) Transfer(from, to *AccountInfo, lamports uint64) error {
	if from.Lamports < lamports {
		return ErrInsufficientFunds
	}
	if to.Lamports+lamports < to.Lamports {
		return ErrArithmeticOverflow
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

func (h *testHost) MintTo(mintInfo, destInfo *AccountInfo, authority types.Pubkey, amount uint64) error {
	mint, err := token.UnpackMint(mintInfo.Data)
	if err != nil {
		return err
	}
	dest, err := token.UnpackTokenAccount(destInfo.Data)
	if err != nil {
		return err
	}
	if err := token.MintTo(mint, dest, authority, amount); err != nil {
		return err
	}
	copy(mintInfo.Data, mint.Pack())
	copy(destInfo.Data, dest.Pack())
	return nil
}

func (h *testHost) MinimumBalance(dataLen uint64) uint64 {
	return 890_880 + 6_960*dataLen
}

func (h *testHost) Logf(format string, args ...any) {}

func key(b byte) types.Pubkey {
	var p types.Pubkey
	p[31] = b
	return p
}

// env holds a ready-to-use sale fixture: processor, mint controlled by the
// authority, funded wallets, and the derived record addresses.
type env struct {
	t *testing.T
	p *Processor

	programID types.Pubkey
	authority *AccountInfo
	mint      *AccountInfo
	vault     *AccountInfo
	buyer     *AccountInfo

	saleConfig  *AccountInfo
	buyerRecord *AccountInfo

	systemProgram *AccountInfo
	tokenProgram  *AccountInfo
}

func newEnv(t *testing.T) *env {
	t.Helper()

	programID := types.TokenSaleProgramAddr

	authorityKey := key(1)
	mintKey := key(2)

	mintAuthority := authorityKey
	mintState := &token.Mint{
		MintAuthority: &mintAuthority,
		Decimals:      9,
		IsInitialized: true,
	}

	saleConfigKey, _, err := SaleConfigAddress(programID, authorityKey, mintKey)
	if err != nil {
		t.Fatal(err)
	}

	e := &env{
		t:         t,
		p:         NewProcessor(programID, &testHost{}),
		programID: programID,
		authority: &AccountInfo{Key: authorityKey, Lamports: 10_000_000_000, IsSigner: true, IsWritable: true},
		mint:      &AccountInfo{Key: mintKey, Lamports: 1, Data: mintState.Pack(), Owner: types.TokenProgramAddr, IsWritable: true},
		vault:     &AccountInfo{Key: key(3), Lamports: 1, IsWritable: true},
		buyer:     &AccountInfo{Key: key(4), Lamports: 10_000_000_000, IsSigner: true, IsWritable: true},

		saleConfig: &AccountInfo{Key: saleConfigKey, IsWritable: true},

		systemProgram: &AccountInfo{Key: types.SystemProgramAddr, Executable: true},
		tokenProgram:  &AccountInfo{Key: types.TokenProgramAddr, Executable: true},
	}

	recordKey, _, err := BuyerRecordAddress(programID, saleConfigKey, e.buyer.Key)
	if err != nil {
		t.Fatal(err)
	}
	e.buyerRecord = &AccountInfo{Key: recordKey, IsWritable: true}

	return e
}

// openSale runs OpenSale with the fixture accounts, failing the test on error.
func (e *env) openSale(price, limit uint64, root types.Hash) {
	e.t.Helper()
	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.vault, e.authority, e.systemProgram},
		EncodeInstruction(&OpenSale{Price: price, PurchaseLimit: limit, WhitelistRoot: root}),
	)
	if err != nil {
		e.t.Fatalf("open sale: %v", err)
	}
}

// registerBuyer runs RegisterBuyer with the fixture accounts.
func (e *env) registerBuyer() {
	e.t.Helper()
	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.buyerRecord, e.buyer, e.systemProgram},
		EncodeInstruction(&RegisterBuyer{}),
	)
	if err != nil {
		e.t.Fatalf("register buyer: %v", err)
	}
}

// toggleRunning runs ToggleRunning with the fixture accounts.
func (e *env) toggleRunning() {
	e.t.Helper()
	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.authority},
		EncodeInstruction(&ToggleRunning{}),
	)
	if err != nil {
		e.t.Fatalf("toggle running: %v", err)
	}
}

// config decodes the fixture's current SaleConfig.
func (e *env) config() *SaleConfig {
	e.t.Helper()
	config, err := DecodeSaleConfig(e.saleConfig.Data)
	if err != nil {
		e.t.Fatal(err)
	}
	return config
}

// record decodes the fixture's current BuyerRecord.
func (e *env) record() *BuyerRecord {
	e.t.Helper()
	record, err := DecodeBuyerRecord(e.buyerRecord.Data)
	if err != nil {
		e.t.Fatal(err)
	}
	return record
}

// wantCode asserts err carries the given stable code.
func wantCode(t *testing.T, err error, code Code) {
	t.Helper()
	got, ok := AsCode(err)
	if !ok {
		t.Fatalf("want code %d (%s), got %v", uint32(code), code, err)
	}
	if got != code {
		t.Fatalf("want code %d (%s), got %d (%s)", uint32(code), code, uint32(got), got)
	}
}
