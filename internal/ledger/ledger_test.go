package ledger_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/ledger"
)

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_UserPath(t *testing.T) {
	userID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := ledger.NewUserAccountKey(userID, ledger.AssetSats)

	path := key.AccountPath()
	expected := "user:550e8400-e29b-41d4-a716-446655440000:cash:SATS"
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_PoolPath(t *testing.T) {
	key := ledger.NewMarketPoolKey(42, ledger.AssetSats)

	if key.AccountPath() != "system:pool:42:SATS" {
		t.Errorf("got %q, want %q", key.AccountPath(), "system:pool:42:SATS")
	}
	if key.MarketID() != 42 {
		t.Errorf("MarketID: got %d, want 42", key.MarketID())
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	key := ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, ledger.AssetSats)

	if key.AccountPath() != "external:deposits:SATS" {
		t.Errorf("got %q, want %q", key.AccountPath(), "external:deposits:SATS")
	}
}

func TestGetAssetID_Known(t *testing.T) {
	id, ok := ledger.GetAssetID("SATS")
	if !ok {
		t.Fatal("SATS should be a known asset")
	}
	if id != ledger.AssetSats {
		t.Errorf("got %d, want %d", id, ledger.AssetSats)
	}
}

func TestGetAssetID_Unknown(t *testing.T) {
	if _, ok := ledger.GetAssetID("DOGE"); ok {
		t.Error("DOGE should not be a known asset")
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()

	if bal := bt.GetUserBalance(uuid.New(), ledger.AssetSats); bal != 0 {
		t.Errorf("initial balance should be 0, got %d", bal)
	}
}

func TestBalanceTracker_ApplyBatchMovesFunds(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	userID := uuid.New()

	batch, err := jg.GenerateDeposit(userID, uuid.New(), 5_000, ledger.AssetSats, 1)
	if err != nil {
		t.Fatalf("generate deposit: %v", err)
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if bal := bt.GetUserBalance(userID, ledger.AssetSats); bal != 5_000 {
		t.Errorf("user balance: got %d, want 5000", bal)
	}
	ext := bt.GetBalance(ledger.NewExternalAccountKey(ledger.SubTypeExternalDeposits, ledger.AssetSats))
	if ext != -5_000 {
		t.Errorf("external boundary: got %d, want -5000", ext)
	}
}

func TestBatch_Validate(t *testing.T) {
	empty := &ledger.Batch{BatchID: uuid.New()}
	if err := empty.Validate(); err == nil {
		t.Error("empty batch should fail validation")
	}

	user := ledger.NewUserAccountKey(uuid.New(), ledger.AssetSats)
	batchID := uuid.New()
	selfTransfer := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  user,
			CreditAccount: user,
			Amount:        10,
		}},
	}
	if err := selfTransfer.Validate(); err == nil {
		t.Error("self-transfer should fail validation")
	}

	negative := &ledger.Batch{
		BatchID: batchID,
		Journals: []ledger.Journal{{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			DebitAccount:  user,
			CreditAccount: ledger.NewMarketPoolKey(1, ledger.AssetSats),
			Amount:        -10,
		}},
	}
	if err := negative.Validate(); err == nil {
		t.Error("non-positive amount should fail validation")
	}
}

// ============================================================================
// Test: JournalGenerator
// ============================================================================

func TestGenerator_WithdrawalPreCheck(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	userID := uuid.New()

	_, err := jg.GenerateWithdrawal(userID, uuid.New(), 100, ledger.AssetSats, 1)
	if err == nil {
		t.Fatal("withdrawal from empty account should be refused")
	}
	if !strings.Contains(err.Error(), "insufficient") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGenerator_BuyRoutesFeesDirectly(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	buyer := uuid.New()
	teamRecipient := uuid.New()

	seedAccount(t, bt, jg, buyer, 100_000)

	fees := []ledger.FeeLeg{
		{Bucket: ledger.SubTypeFeeDrip, Amount: 10},
		{Bucket: ledger.SubTypeFeeBrc, Amount: 6},
		{Recipient: teamRecipient, Bucket: ledger.SubTypeFeeTeam, Amount: 5},
		{Bucket: ledger.SubTypeFeeLP, Amount: 11},
	}
	batch, err := jg.GenerateBuy(buyer, 7, "buy-1", 1_001, fees, ledger.AssetSats, 2)
	if err != nil {
		t.Fatalf("generate buy: %v", err)
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if pool := bt.GetPoolBalance(7, ledger.AssetSats); pool != 1_001 {
		t.Errorf("pool should receive only the base cost, got %d", pool)
	}
	drip := bt.GetBalance(ledger.NewSystemAccountKey(ledger.SubTypeFeeDrip, ledger.AssetSats))
	if drip != 10 {
		t.Errorf("drip bucket: got %d, want 10", drip)
	}
	if bal := bt.GetUserBalance(teamRecipient, ledger.AssetSats); bal != 5 {
		t.Errorf("team recipient should be paid directly, got %d", bal)
	}
	if bal := bt.GetUserBalance(buyer, ledger.AssetSats); bal != 100_000-1_033 {
		t.Errorf("buyer: got %d, want %d", bal, 100_000-1_033)
	}
}

func TestGenerator_BuySkipsZeroFeeLegs(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	buyer := uuid.New()
	seedAccount(t, bt, jg, buyer, 10_000)

	fees := []ledger.FeeLeg{
		{Bucket: ledger.SubTypeFeeDrip, Amount: 0},
		{Bucket: ledger.SubTypeFeeLP, Amount: 0},
	}
	batch, err := jg.GenerateBuy(buyer, 1, "buy-2", 500, fees, ledger.AssetSats, 2)
	if err != nil {
		t.Fatalf("generate buy: %v", err)
	}
	if len(batch.Journals) != 1 {
		t.Errorf("zero fee legs should be dropped, got %d journals", len(batch.Journals))
	}
	if err := batch.Validate(); err != nil {
		t.Errorf("batch should validate: %v", err)
	}
}

func TestGenerator_RedemptionOverdrawRefused(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)

	if _, err := jg.GenerateRedemption(uuid.New(), 3, "redeem-1", 100, ledger.AssetSats, 1); err == nil {
		t.Error("redemption from an empty vault should be refused")
	}
}

func TestGenerator_SequenceAdvancesPerBatch(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(10, bt)
	userID := uuid.New()

	b1, err := jg.GenerateDeposit(userID, uuid.New(), 100, ledger.AssetSats, 1)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := jg.GenerateDeposit(userID, uuid.New(), 100, ledger.AssetSats, 2)
	if err != nil {
		t.Fatal(err)
	}

	if b1.Sequence != 10 || b2.Sequence != 11 {
		t.Errorf("sequences: got %d,%d want 10,11", b1.Sequence, b2.Sequence)
	}
	if jg.Sequence() != 12 {
		t.Errorf("next sequence: got %d, want 12", jg.Sequence())
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_GlobalZeroSum(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	jg := ledger.NewJournalGenerator(1, bt)
	v := ledger.NewInvariantValidator(bt)
	admin := uuid.New()
	buyer := uuid.New()

	seedAccount(t, bt, jg, admin, 50_000)
	seedAccount(t, bt, jg, buyer, 50_000)

	apply := func(b *ledger.Batch, err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		if err := bt.ApplyBatch(b); err != nil {
			t.Fatal(err)
		}
	}

	apply(jg.GenerateSeedLiquidity(admin, 1, "seed-1", 10_000, ledger.AssetSats, 3))
	apply(jg.GenerateBuy(buyer, 1, "buy-1", 6_000, []ledger.FeeLeg{
		{Bucket: ledger.SubTypeFeeLP, Amount: 60},
	}, ledger.AssetSats, 4))
	apply(jg.GenerateRedemption(buyer, 1, "redeem-1", 16_000, ledger.AssetSats, 5))

	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("ledger should stay zero-sum: %v", err)
	}
	if err := v.ValidatePoolNonNegative(1, ledger.AssetSats); err != nil {
		t.Errorf("pool: %v", err)
	}
	if err := v.ValidateUserCashNonNegative(buyer, ledger.AssetSats); err != nil {
		t.Errorf("buyer: %v", err)
	}
}

func seedAccount(t *testing.T, bt *ledger.BalanceTracker, jg *ledger.JournalGenerator, userID uuid.UUID, amount int64) {
	t.Helper()
	batch, err := jg.GenerateDeposit(userID, uuid.New(), amount, ledger.AssetSats, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := bt.ApplyBatch(batch); err != nil {
		t.Fatal(err)
	}
}
