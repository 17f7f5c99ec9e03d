package sale

import (
	"errors"
	"testing"

	"github.com/fortiblox/x1-tokensale/internal/types"
	"github.com/fortiblox/x1-tokensale/pkg/merkle"
	"github.com/fortiblox/x1-tokensale/pkg/token"
)

// buyFixture extends the base fixture with a whitelist containing the buyer
// and an initialized buyer token account.
type buyFixture struct {
	*env
	tree       *merkle.Tree
	proof      merkle.Proof
	buyerToken *AccountInfo
}

func newBuyFixture(t *testing.T, price uint64) *buyFixture {
	t.Helper()
	e := newEnv(t)

	members := []types.Pubkey{e.buyer.Key, key(0x21), key(0x22), key(0x23)}
	tree := merkle.NewTreeFromPubkeys(members)
	proof, err := tree.ProvePubkey(e.buyer.Key)
	if err != nil {
		t.Fatal(err)
	}

	e.openSale(price, 100, tree.Root())
	e.registerBuyer()
	e.toggleRunning()

	tokenState := &token.TokenAccount{
		Mint:  e.mint.Key,
		Owner: e.buyer.Key,
		State: token.StateInitialized,
	}
	buyerToken := &AccountInfo{
		Key:        key(5),
		Lamports:   1,
		Data:       tokenState.Pack(),
		Owner:      types.TokenProgramAddr,
		IsWritable: true,
	}

	return &buyFixture{env: e, tree: tree, proof: proof, buyerToken: buyerToken}
}

func (f *buyFixture) buy(amount uint64, proof merkle.Proof) error {
	return f.p.Process(
		[]*AccountInfo{
			f.saleConfig, f.mint, f.vault, f.authority,
			f.buyerToken, f.buyerRecord, f.buyer, f.tokenProgram,
		},
		EncodeInstruction(&BuyToken{Amount: amount, Proof: proof}),
	)
}

// TestBuyToken tests the full purchase: payment, minting, and the payout
// reference update.
func TestBuyToken(t *testing.T) {
	f := newBuyFixture(t, 1_000)

	buyerBefore := f.buyer.Lamports
	vaultBefore := f.vault.Lamports

	if err := f.buy(42, f.proof); err != nil {
		t.Fatal(err)
	}

	if f.buyer.Lamports != buyerBefore-1_000 {
		t.Errorf("buyer balance = %d, want %d", f.buyer.Lamports, buyerBefore-1_000)
	}
	if f.vault.Lamports != vaultBefore+1_000 {
		t.Errorf("vault balance = %d, want %d", f.vault.Lamports, vaultBefore+1_000)
	}

	tokenState, err := token.UnpackTokenAccount(f.buyerToken.Data)
	if err != nil {
		t.Fatal(err)
	}
	if tokenState.Amount != 42 {
		t.Errorf("token amount = %d, want 42", tokenState.Amount)
	}

	mint, err := token.UnpackMint(f.mint.Data)
	if err != nil {
		t.Fatal(err)
	}
	if mint.Supply != 42 {
		t.Errorf("supply = %d, want 42", mint.Supply)
	}

	if f.record().TokenAccount != f.buyerToken.Key {
		t.Error("payout reference not updated")
	}
}

// TestBuyTokenNotWhitelisted tests the gate against a non-member.
func TestBuyTokenNotWhitelisted(t *testing.T) {
	f := newBuyFixture(t, 1_000)

	// A proof generated for a different member does not verify for the buyer.
	otherProof, err := f.tree.ProvePubkey(key(0x21))
	if err != nil {
		t.Fatal(err)
	}

	balanceBefore := f.buyer.Lamports
	err = f.buy(1, otherProof)
	wantCode(t, err, CodeNotWhitelisted)

	if f.buyer.Lamports != balanceBefore {
		t.Error("rejected purchase moved funds")
	}
}

// TestBuyTokenEmptyProofAgainstRealTree tests fail-closed on a missing proof.
func TestBuyTokenEmptyProofAgainstRealTree(t *testing.T) {
	f := newBuyFixture(t, 1_000)
	err := f.buy(1, nil)
	wantCode(t, err, CodeNotWhitelisted)
}

// TestBuyTokenPaused tests that a paused sale rejects purchases.
func TestBuyTokenPaused(t *testing.T) {
	f := newBuyFixture(t, 1_000)
	f.toggleRunning() // back to paused

	if err := f.buy(1, f.proof); !errors.Is(err, ErrSaleNotRunning) {
		t.Errorf("want ErrSaleNotRunning, got %v", err)
	}
}

// TestBuyTokenWrongVault tests the stored-vault consistency check.
func TestBuyTokenWrongVault(t *testing.T) {
	f := newBuyFixture(t, 1_000)
	f.vault = &AccountInfo{Key: key(0x31), IsWritable: true}

	err := f.buy(1, f.proof)
	wantCode(t, err, CodeAccountsAndTokenBaseMismatch)
}

// TestBuyTokenWrongTokenProgram tests the pinned token program slot.
func TestBuyTokenWrongTokenProgram(t *testing.T) {
	f := newBuyFixture(t, 1_000)
	f.tokenProgram = &AccountInfo{Key: key(0x32), Executable: true}

	err := f.buy(1, f.proof)
	wantCode(t, err, CodeInvalidTokenProgramID)
}

// TestBuyTokenForeignTokenAccount tests the token account ownership check.
func TestBuyTokenForeignTokenAccount(t *testing.T) {
	f := newBuyFixture(t, 1_000)

	tokenState := &token.TokenAccount{
		Mint:  f.mint.Key,
		Owner: key(0x33), // not the buyer
		State: token.StateInitialized,
	}
	f.buyerToken.Data = tokenState.Pack()

	if err := f.buy(1, f.proof); !errors.Is(err, token.ErrOwnerMismatch) {
		t.Errorf("want ErrOwnerMismatch, got %v", err)
	}
}

// TestBuyTokenInsufficientFunds tests that a broke buyer cannot pay.
func TestBuyTokenInsufficientFunds(t *testing.T) {
	f := newBuyFixture(t, 1_000)
	f.buyer.Lamports = 10

	if err := f.buy(1, f.proof); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("want ErrInsufficientFunds, got %v", err)
	}
}
