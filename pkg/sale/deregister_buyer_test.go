package sale

import (
	"testing"

	"github.com/fortiblox/x1-tokensale/pkg/merkle"
)

// TestDeregisterBuyer tests the sweep and storage zeroing.
func TestDeregisterBuyer(t *testing.T) {
	e := newEnv(t)
	e.openSale(1, 100, merkle.EmptyRoot())
	e.registerBuyer()

	recordBalance := e.buyerRecord.Lamports
	buyerBefore := e.buyer.Lamports

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.buyerRecord, e.buyer},
		EncodeInstruction(&DeregisterBuyer{}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if e.buyer.Lamports != buyerBefore+recordBalance {
		t.Errorf("buyer balance = %d, want %d", e.buyer.Lamports, buyerBefore+recordBalance)
	}
	if e.buyerRecord.Lamports != 0 {
		t.Errorf("record balance = %d after deregister", e.buyerRecord.Lamports)
	}

	record, decodeErr := DecodeBuyerRecord(e.buyerRecord.Data)
	if decodeErr != nil {
		t.Fatal(decodeErr)
	}
	if record.Initialized() {
		t.Error("deregistered record still reads as initialized")
	}
}

// TestDeregisterBuyerUnregistered tests deregistering before registering.
func TestDeregisterBuyerUnregistered(t *testing.T) {
	e := newEnv(t)
	e.openSale(1, 100, merkle.EmptyRoot())
	e.buyerRecord.Data = make([]byte, BuyerRecordLen)
	e.buyerRecord.Owner = e.programID

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.buyerRecord, e.buyer},
		EncodeInstruction(&DeregisterBuyer{}),
	)
	wantCode(t, err, CodeAccountUninitialized)
}

// TestDeregisterBuyerMissingSigner tests the buyer signer requirement.
func TestDeregisterBuyerMissingSigner(t *testing.T) {
	e := newEnv(t)
	e.openSale(1, 100, merkle.EmptyRoot())
	e.registerBuyer()
	e.buyer.IsSigner = false

	err := e.p.Process(
		[]*AccountInfo{e.saleConfig, e.buyerRecord, e.buyer},
		EncodeInstruction(&DeregisterBuyer{}),
	)
	wantCode(t, err, CodeNeedSigner)
}
