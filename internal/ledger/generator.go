package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches from market commands.
// Every generator method runs its balance pre-checks before emitting a
// batch, so a returned batch is always safe to apply.
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// Sequence returns the next sequence number the generator will assign.
func (jg *JournalGenerator) Sequence() int64 {
	return jg.sequence
}

// SetSequence resets the counter (used during recovery).
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

func (jg *JournalGenerator) newBatch(eventRef string, timestamp int64) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 4),
	}
}

func (jg *JournalGenerator) addJournal(b *Batch, debit, credit AccountKey, amount int64, jt JournalType) {
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		AssetID:       debit.AssetID,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

// GenerateDeposit credits a user's cash from the external boundary.
// Moves funds: external:deposits → user:cash
func (jg *JournalGenerator) GenerateDeposit(
	userID uuid.UUID,
	depositID uuid.UUID,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	batch := jg.newBatch(depositID.String(), timestamp)
	jg.addJournal(batch,
		NewUserAccountKey(userID, assetID),
		NewExternalAccountKey(SubTypeExternalDeposits, assetID),
		amount, JournalTypeDeposit)
	jg.sequence++
	return batch, nil
}

// GenerateWithdrawal debits a user's cash to the external boundary.
// Pre-check: the user must hold the full amount.
func (jg *JournalGenerator) GenerateWithdrawal(
	userID uuid.UUID,
	withdrawalID uuid.UUID,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("withdrawal amount must be positive: %d", amount)
	}
	if err := jg.balanceTracker.ValidateSufficient(userID, assetID, amount); err != nil {
		return nil, fmt.Errorf("withdrawal pre-check failed: %w", err)
	}

	batch := jg.newBatch(withdrawalID.String(), timestamp)
	jg.addJournal(batch,
		NewExternalAccountKey(SubTypeExternalWithdrawals, assetID),
		NewUserAccountKey(userID, assetID),
		amount, JournalTypeWithdrawal)
	jg.sequence++
	return batch, nil
}

// GenerateSeedLiquidity funds a market vault from the admin's cash,
// both at creation and for later top-ups.
// Pre-check: the admin must hold the full seed.
func (jg *JournalGenerator) GenerateSeedLiquidity(
	adminID uuid.UUID,
	marketID uint64,
	eventRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficient(adminID, assetID, amount); err != nil {
		return nil, fmt.Errorf("seed pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.addJournal(batch,
		NewMarketPoolKey(marketID, assetID),
		NewUserAccountKey(adminID, assetID),
		amount, JournalTypeSeedLiquidity)
	jg.sequence++
	return batch, nil
}

// FeeLeg is one fee payout destination. A zero Recipient routes the
// amount to the matching system bucket instead of a user account.
type FeeLeg struct {
	Recipient uuid.UUID
	Bucket    AccountSubType
	Amount    int64
}

func (l FeeLeg) account(assetID AssetID) AccountKey {
	if l.Recipient == (uuid.UUID{}) {
		return NewSystemAccountKey(l.Bucket, assetID)
	}
	return NewUserAccountKey(l.Recipient, assetID)
}

// GenerateBuy settles a share purchase: the base cost moves into the
// market vault and each fee leg moves straight to its recipient. The
// vault only ever receives the base cost.
// Pre-check: the buyer must hold cost plus all fee legs.
func (jg *JournalGenerator) GenerateBuy(
	buyerID uuid.UUID,
	marketID uint64,
	eventRef string,
	cost int64,
	fees []FeeLeg,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	total := cost
	for _, leg := range fees {
		if leg.Amount < 0 {
			return nil, fmt.Errorf("negative fee leg: %d", leg.Amount)
		}
		total += leg.Amount
	}
	if err := jg.balanceTracker.ValidateSufficient(buyerID, assetID, total); err != nil {
		return nil, fmt.Errorf("buy pre-check failed: %w", err)
	}

	buyer := NewUserAccountKey(buyerID, assetID)
	batch := jg.newBatch(eventRef, timestamp)
	jg.addJournal(batch, NewMarketPoolKey(marketID, assetID), buyer, cost, JournalTypeTradeCost)
	for _, leg := range fees {
		if leg.Amount == 0 {
			continue
		}
		jg.addJournal(batch, leg.account(assetID), buyer, leg.Amount, JournalTypeTradeFee)
	}
	jg.sequence++
	return batch, nil
}

// GenerateRedemption pays a winner out of the market vault.
// Pre-check: the vault must hold the payout, which the cost curve
// guarantees but the ledger still refuses to assume.
func (jg *JournalGenerator) GenerateRedemption(
	userID uuid.UUID,
	marketID uint64,
	eventRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	pool := NewMarketPoolKey(marketID, assetID)
	if jg.balanceTracker.GetBalance(pool) < amount {
		return nil, fmt.Errorf("pool %d cannot cover payout %d", marketID, amount)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.addJournal(batch, NewUserAccountKey(userID, assetID), pool, amount, JournalTypeRedemption)
	jg.sequence++
	return batch, nil
}

// GenerateSurplusSweep drains a settled market vault to the admin.
func (jg *JournalGenerator) GenerateSurplusSweep(
	adminID uuid.UUID,
	marketID uint64,
	eventRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	pool := NewMarketPoolKey(marketID, assetID)
	if jg.balanceTracker.GetBalance(pool) < amount {
		return nil, fmt.Errorf("pool %d cannot cover sweep %d", marketID, amount)
	}

	batch := jg.newBatch(eventRef, timestamp)
	jg.addJournal(batch, NewUserAccountKey(adminID, assetID), pool, amount, JournalTypeSurplusSweep)
	jg.sequence++
	return batch, nil
}
