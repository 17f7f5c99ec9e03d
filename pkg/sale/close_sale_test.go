package sale

import (
	"testing"

	"github.com/fortiblox/x1-tokensale/pkg/merkle"
)

// TestCloseSale tests the sweep, the storage zeroing, and the marker reset.
func TestCloseSale(t *testing.T) {
	e := newEnv(t)
	e.openSale(1, 1, merkle.EmptyRoot())

	recordBalance := e.saleConfig.Lamports
	authorityBefore := e.authority.Lamports

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.authority},
		EncodeInstruction(&CloseSale{}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if e.authority.Lamports != authorityBefore+recordBalance {
		t.Errorf("authority balance = %d, want %d", e.authority.Lamports, authorityBefore+recordBalance)
	}
	if e.saleConfig.Lamports != 0 {
		t.Errorf("record balance = %d after close", e.saleConfig.Lamports)
	}
	for _, b := range e.saleConfig.Data {
		if b != 0 {
			t.Fatal("record storage not zeroed")
		}
	}

	config, decodeErr := DecodeSaleConfig(e.saleConfig.Data)
	if decodeErr != nil {
		t.Fatal(decodeErr)
	}
	if config.Initialized() {
		t.Error("closed record still reads as initialized")
	}
}

// TestCloseSaleWrongAuthority tests that a foreign signer cannot close.
func TestCloseSaleWrongAuthority(t *testing.T) {
	e := newEnv(t)
	e.openSale(1, 1, merkle.EmptyRoot())

	intruder := &AccountInfo{Key: key(0x44), IsSigner: true, IsWritable: true}
	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, intruder},
		EncodeInstruction(&CloseSale{}),
	)
	wantCode(t, err, CodeAccountsAndTokenBaseMismatch)

	if !e.config().Initialized() {
		t.Error("failed close destroyed the record")
	}
}

// TestCloseSaleUninitialized tests closing before opening.
func TestCloseSaleUninitialized(t *testing.T) {
	e := newEnv(t)
	e.saleConfig.Data = make([]byte, SaleConfigLen)
	e.saleConfig.Owner = e.programID

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.authority},
		EncodeInstruction(&CloseSale{}),
	)
	wantCode(t, err, CodeAccountUninitialized)
}

// TestCloseSaleDerivesFromStoredFields tests that the address check binds
// to the stored authority and mint, not the supplied accounts.
func TestCloseSaleDerivesFromStoredFields(t *testing.T) {
	e := newEnv(t)
	e.openSale(1, 1, merkle.EmptyRoot())

	// Corrupt the stored mint so the stored pair no longer derives the
	// record's own address.
	config := e.config()
	config.Mint = key(0x77)
	copy(e.saleConfig.Data, config.Serialize())

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.mint, e.authority},
		EncodeInstruction(&CloseSale{}),
	)
	wantCode(t, err, CodeUnexpectedPDASeeds)
}
