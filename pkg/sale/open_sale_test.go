package sale

import (
	"errors"
	"testing"

	"github.com/fortiblox/x1-tokensale/pkg/merkle"
)

// TestOpenSale tests the happy path and the resulting record contents.
func TestOpenSale(t *testing.T) {
	e := newEnv(t)
	root := merkle.EmptyRoot()

	e.openSale(100_000_000_000, 100, root)

	config := e.config()
	if !config.Initialized() {
		t.Fatal("sale config not initialized")
	}
	if config.SaleAuthority != e.authority.Key {
		t.Errorf("authority mismatch")
	}
	if config.Mint != e.mint.Key || config.Vault != e.vault.Key {
		t.Errorf("mint/vault mismatch")
	}
	if config.Price != 100_000_000_000 {
		t.Errorf("price = %d", config.Price)
	}
	if config.DefaultPurchaseLimit != 100 {
		t.Errorf("default limit = %d", config.DefaultPurchaseLimit)
	}
	if config.WhitelistRoot != root {
		t.Errorf("root mismatch")
	}
	if config.IsRunning {
		t.Errorf("fresh sale must start paused")
	}
	if e.saleConfig.Owner != e.programID {
		t.Errorf("record owner = %s", e.saleConfig.Owner)
	}
	if e.saleConfig.Lamports == 0 {
		t.Errorf("record not funded")
	}
}

// TestOpenSaleAlreadyInitialized tests rejection of a second open.
func TestOpenSaleAlreadyInitialized(t *testing.T) {
	e := newEnv(t)
	e.openSale(1, 1, merkle.EmptyRoot())

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.vault, e.authority, e.systemProgram},
		EncodeInstruction(&OpenSale{Price: 1, PurchaseLimit: 1}),
	)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("want ErrAlreadyInitialized, got %v", err)
	}
}

// TestOpenSaleWrongAddress tests the derived-address check.
func TestOpenSaleWrongAddress(t *testing.T) {
	e := newEnv(t)
	e.saleConfig.Key = key(0x77)

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.vault, e.authority, e.systemProgram},
		EncodeInstruction(&OpenSale{}),
	)
	wantCode(t, err, CodeUnexpectedPDASeeds)
}

// TestOpenSaleMintAuthorityMismatch tests that a foreign mint is rejected.
func TestOpenSaleMintAuthorityMismatch(t *testing.T) {
	e := newEnv(t)

	// Rewrite the mint authority to someone else.
	other := key(0x66)
	copy(e.mint.Data[4:36], other[:])

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.vault, e.authority, e.systemProgram},
		EncodeInstruction(&OpenSale{}),
	)
	wantCode(t, err, CodeMintAndSaleAuthorityMismatch)
}

// TestOpenSaleMissingSigner tests the signer requirement.
func TestOpenSaleMissingSigner(t *testing.T) {
	e := newEnv(t)
	e.authority.IsSigner = false

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.vault, e.authority, e.systemProgram},
		EncodeInstruction(&OpenSale{}),
	)
	wantCode(t, err, CodeNeedSigner)
}

// TestOpenSaleWrongSystemProgram tests the pinned program slot.
func TestOpenSaleWrongSystemProgram(t *testing.T) {
	e := newEnv(t)
	bogus := &AccountInfo{Key: key(0x55), Executable: true}

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.vault, e.authority, bogus},
		EncodeInstruction(&OpenSale{}),
	)
	if !errors.Is(err, ErrIncorrectProgramID) {
		t.Errorf("want ErrIncorrectProgramID, got %v", err)
	}
}

// TestOpenSaleExecutableVault tests the non-executable constraint.
func TestOpenSaleExecutableVault(t *testing.T) {
	e := newEnv(t)
	e.vault.Executable = true

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.vault, e.authority, e.systemProgram},
		EncodeInstruction(&OpenSale{}),
	)
	wantCode(t, err, CodeMustBeNonExecutable)
}

// TestOpenSaleNotEnoughAccounts tests the account count check.
func TestOpenSaleNotEnoughAccounts(t *testing.T) {
	e := newEnv(t)

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint},
		EncodeInstruction(&OpenSale{}),
	)
	if !errors.Is(err, ErrNotEnoughAccounts) {
		t.Errorf("want ErrNotEnoughAccounts, got %v", err)
	}
}
