package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/event"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/ledger"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/market"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/observability"
)

// ErrDuplicateRequest is returned when a request's idempotency key has
// already been processed. The original outcome stands; the caller
// should treat this as success of the earlier request.
var ErrDuplicateRequest = errors.New("duplicate request")

// Output is one processed command's worth of durable state: the event
// envelope for the log, the ledger batch it produced (nil for
// state-only commands), and the canonical digest bytes.
type Output struct {
	Envelope   *event.Envelope
	Batch      *ledger.Batch
	StateDelta []byte
}

// Engine is the deterministic command processor. All market state, the
// settlement ledger, the hash chain, and the sequence live behind one
// mutex: commands are applied strictly one at a time, so replaying the
// event log always reproduces the same state hashes.
//
// The engine never reads the wall clock. Timestamps arrive on each
// command as versioned inputs and are validated for monotonicity.
type Engine struct {
	mu sync.Mutex

	sequence       int64
	hasher         *StateHasher
	registry       *market.Registry
	admin          *market.Admin
	balanceTracker *ledger.BalanceTracker
	journalGen     *ledger.JournalGenerator
	validator      *ledger.InvariantValidator
	idempotency    *IdempotencyChecker
	clock          *TimestampValidator
	metrics        *observability.Metrics
	log            zerolog.Logger

	persistChan    chan<- Output
	projectionChan chan<- Output
}

// Config carries the engine's construction parameters.
type Config struct {
	StartSequence  int64
	AdminID        uuid.UUID
	Policy         market.RedemptionPolicy
	PersistChan    chan<- Output
	ProjectionChan chan<- Output
	DBChecker      DBIdempotencyChecker
	Metrics        *observability.Metrics
	Logger         zerolog.Logger

	// IdempotencyCapacity bounds the dedup LRU; 0 selects the default.
	IdempotencyCapacity int
}

const defaultIdempotencyCapacity = 1_000_000

func NewEngine(cfg Config) *Engine {
	balanceTracker := ledger.NewBalanceTracker()
	capacity := cfg.IdempotencyCapacity
	if capacity == 0 {
		capacity = defaultIdempotencyCapacity
	}

	return &Engine{
		sequence:       cfg.StartSequence,
		hasher:         NewStateHasher(),
		registry:       market.NewRegistry(cfg.Policy),
		admin:          market.NewAdmin(cfg.AdminID),
		balanceTracker: balanceTracker,
		journalGen:     ledger.NewJournalGenerator(cfg.StartSequence, balanceTracker),
		validator:      ledger.NewInvariantValidator(balanceTracker),
		idempotency:    NewIdempotencyChecker(capacity, cfg.DBChecker),
		clock:          NewTimestampValidator(),
		metrics:        cfg.Metrics,
		log:            cfg.Logger,
		persistChan:    cfg.PersistChan,
		projectionChan: cfg.ProjectionChan,
	}
}

// ============================================================================
// Funds
// ============================================================================

// Deposit credits settlement units to an account from the external
// boundary.
func (e *Engine) Deposit(requestID, account uuid.UUID, amount int64, ts time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	const cmd = "deposit"
	if err := e.begin(cmd, requestID, nil, ts); err != nil {
		return err
	}
	if amount <= 0 {
		return e.reject(cmd, market.ErrZeroAmount)
	}

	batch, err := e.journalGen.GenerateDeposit(account, requestID, amount, ledger.AssetSats, ts.UnixMicro())
	if err != nil {
		return e.reject(cmd, err)
	}

	e.commit(cmd, &event.DepositCredited{
		RequestID: requestID,
		AccountID: account,
		Amount:    amount,
		Timestamp: ts,
	}, batch, ts)
	return nil
}

// Withdraw debits settlement units from an account to the external
// boundary. Share positions stay put; only cash leaves.
func (e *Engine) Withdraw(requestID, account uuid.UUID, amount int64, ts time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	const cmd = "withdraw"
	if err := e.begin(cmd, requestID, nil, ts); err != nil {
		return err
	}
	if amount <= 0 {
		return e.reject(cmd, market.ErrZeroAmount)
	}
	if e.balanceTracker.GetUserBalance(account, ledger.AssetSats) < amount {
		return e.reject(cmd, market.ErrInsufficientFunds)
	}

	batch, err := e.journalGen.GenerateWithdrawal(account, requestID, amount, ledger.AssetSats, ts.UnixMicro())
	if err != nil {
		return e.reject(cmd, err)
	}

	e.commit(cmd, &event.WithdrawalDebited{
		RequestID: requestID,
		AccountID: account,
		Amount:    amount,
		Timestamp: ts,
	}, batch, ts)
	return nil
}

// ============================================================================
// Market lifecycle
// ============================================================================

// CreateMarket opens a new market seeded from the admin's cash.
func (e *Engine) CreateMarket(requestID, caller uuid.UUID, marketID uint64, seed int64, ts time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	const cmd = "create_market"
	if err := e.begin(cmd, requestID, &marketID, ts); err != nil {
		return err
	}
	if err := e.admin.Require(caller); err != nil {
		return e.reject(cmd, err)
	}
	if e.registry.Get(marketID) != nil {
		return e.reject(cmd, market.ErrMarketExists)
	}
	if seed <= 0 {
		return e.reject(cmd, market.ErrZeroLiquidity)
	}
	if e.balanceTracker.GetUserBalance(caller, ledger.AssetSats) < seed {
		return e.reject(cmd, market.ErrInsufficientFunds)
	}

	m, err := e.registry.Create(marketID, seed)
	if err != nil {
		return e.reject(cmd, err)
	}
	batch, err := e.journalGen.GenerateSeedLiquidity(caller, marketID, requestID.String(), seed, ledger.AssetSats, ts.UnixMicro())
	if err != nil {
		panic(fmt.Sprintf("FATAL: seed batch after pre-check: %v", err))
	}

	if e.metrics != nil {
		e.metrics.MarketsOpen.Inc()
	}
	e.commit(cmd, &event.MarketCreated{
		RequestID: requestID,
		Market:    marketID,
		Seed:      seed,
		Liquidity: m.B,
		Timestamp: ts,
	}, batch, ts)
	return nil
}

// AddLiquidity deepens a market's book from the admin's cash.
func (e *Engine) AddLiquidity(requestID, caller uuid.UUID, marketID uint64, amount int64, ts time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	const cmd = "add_liquidity"
	if err := e.begin(cmd, requestID, &marketID, ts); err != nil {
		return err
	}
	if err := e.admin.Require(caller); err != nil {
		return e.reject(cmd, err)
	}

	m := e.registry.Get(marketID)
	switch {
	case m == nil:
		return e.reject(cmd, market.ErrNotInitialized)
	case m.Status == market.StatusResolved:
		return e.reject(cmd, market.ErrTradingClosed)
	case amount <= 0:
		return e.reject(cmd, market.ErrZeroLiquidity)
	}
	if e.balanceTracker.GetUserBalance(caller, ledger.AssetSats) < amount {
		return e.reject(cmd, market.ErrInsufficientFunds)
	}

	if err := e.registry.AddLiquidity(marketID, amount); err != nil {
		return e.reject(cmd, err)
	}
	batch, err := e.journalGen.GenerateSeedLiquidity(caller, marketID, requestID.String(), amount, ledger.AssetSats, ts.UnixMicro())
	if err != nil {
		panic(fmt.Sprintf("FATAL: liquidity batch after pre-check: %v", err))
	}

	e.commit(cmd, &event.LiquidityAdded{
		RequestID: requestID,
		Market:    marketID,
		Amount:    amount,
		Liquidity: m.B,
		Timestamp: ts,
	}, batch, ts)
	return nil
}

// Pause suspends trading on a market.
func (e *Engine) Pause(requestID, caller uuid.UUID, marketID uint64, ts time.Time) error {
	return e.lifecycle("pause", requestID, caller, marketID, ts, e.registry.Pause, func() event.Event {
		return &event.MarketPaused{RequestID: requestID, Market: marketID, Timestamp: ts}
	})
}

// Unpause resumes trading on a market.
func (e *Engine) Unpause(requestID, caller uuid.UUID, marketID uint64, ts time.Time) error {
	return e.lifecycle("unpause", requestID, caller, marketID, ts, e.registry.Unpause, func() event.Event {
		return &event.MarketUnpaused{RequestID: requestID, Market: marketID, Timestamp: ts}
	})
}

// SetMaxTrade updates a market's per-trade size limit; 0 removes it.
func (e *Engine) SetMaxTrade(requestID, caller uuid.UUID, marketID uint64, maxTrade int64, ts time.Time) error {
	return e.lifecycle("set_max_trade", requestID, caller, marketID, ts,
		func(id uint64) error { return e.registry.SetMaxTrade(id, maxTrade) },
		func() event.Event {
			return &event.MaxTradeUpdated{RequestID: requestID, Market: marketID, MaxTrade: maxTrade, Timestamp: ts}
		})
}

// lifecycle is the shared path for admin state toggles that move no funds.
func (e *Engine) lifecycle(cmd string, requestID, caller uuid.UUID, marketID uint64, ts time.Time, apply func(uint64) error, evt func() event.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.begin(cmd, requestID, &marketID, ts); err != nil {
		return err
	}
	if err := e.admin.Require(caller); err != nil {
		return e.reject(cmd, err)
	}
	if err := apply(marketID); err != nil {
		return e.reject(cmd, err)
	}

	e.commit(cmd, evt(), nil, ts)
	return nil
}

// ============================================================================
// Trading
// ============================================================================

// QuoteBuy prices a purchase without touching state.
func (e *Engine) QuoteBuy(marketID uint64, side market.Side, amount int64) (market.FeeBreakdown, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.QuoteBuy(marketID, side, amount)
}

// Buy executes a purchase under the account's existing spend cap.
func (e *Engine) Buy(requestID, account uuid.UUID, marketID uint64, side market.Side, amount int64, ts time.Time) (market.FeeBreakdown, error) {
	return e.buy("buy", requestID, account, marketID, side, amount, ts, market.TradeCheck{Amount: amount})
}

// BuyAuto executes a purchase, first raising the account's spend cap to
// targetCap and enforcing the maxCost slippage bound.
func (e *Engine) BuyAuto(requestID, account uuid.UUID, marketID uint64, side market.Side, amount int64, targetCap, maxCost int64, ts time.Time) (market.FeeBreakdown, error) {
	return e.buy("buy_auto", requestID, account, marketID, side, amount, ts, market.TradeCheck{
		Amount:    amount,
		MaxCost:   maxCost,
		Auto:      true,
		TargetCap: targetCap,
	})
}

func (e *Engine) buy(cmd string, requestID, account uuid.UUID, marketID uint64, side market.Side, amount int64, ts time.Time, chk market.TradeCheck) (market.FeeBreakdown, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.begin(cmd, requestID, &marketID, ts); err != nil {
		return market.FeeBreakdown{}, err
	}

	// Every precondition is checked before the first write: the guard
	// runs in contract order, then funds. A rejected buy leaves no
	// trace. The quote is priced first only when the trade is well
	// formed, so status errors outrank zero-amount.
	m := e.registry.Get(marketID)

	var quote market.FeeBreakdown
	if m != nil && amount > 0 {
		q, err := e.registry.QuoteBuy(marketID, side, amount)
		if err != nil {
			return market.FeeBreakdown{}, e.reject(cmd, err)
		}
		quote = q
	}
	chk.Total = quote.Total

	cap, err := market.ValidateTrade(m, account, chk)
	if err != nil {
		return market.FeeBreakdown{}, e.reject(cmd, err)
	}
	if e.balanceTracker.GetUserBalance(account, ledger.AssetSats) < quote.Total {
		return market.FeeBreakdown{}, e.reject(cmd, market.ErrInsufficientFunds)
	}

	committed, err := e.registry.BuyAuto(marketID, side, amount, account, cap, chk.MaxCost)
	if err != nil {
		panic(fmt.Sprintf("FATAL: buy commit after validation: %v", err))
	}
	if committed != quote {
		panic(fmt.Sprintf("FATAL: committed buy %+v diverged from quote %+v", committed, quote))
	}

	fees := e.registry.Fees()
	batch, err := e.journalGen.GenerateBuy(account, marketID, requestID.String(), quote.Cost, []ledger.FeeLeg{
		{Recipient: fees.Recipients.Drip, Bucket: ledger.SubTypeFeeDrip, Amount: quote.Drip},
		{Recipient: fees.Recipients.Brc, Bucket: ledger.SubTypeFeeBrc, Amount: quote.Brc},
		{Recipient: fees.Recipients.Team, Bucket: ledger.SubTypeFeeTeam, Amount: quote.Team},
		{Recipient: fees.Recipients.LP, Bucket: ledger.SubTypeFeeLP, Amount: quote.FeeLP},
	}, ledger.AssetSats, ts.UnixMicro())
	if err != nil {
		panic(fmt.Sprintf("FATAL: buy batch after pre-check: %v", err))
	}

	if e.metrics != nil {
		e.metrics.TradesExecuted.WithLabelValues(side.String()).Inc()
		e.metrics.TradeVolume.WithLabelValues(side.String()).Add(float64(quote.Cost))
		e.metrics.FeesCollected.WithLabelValues("protocol").Add(float64(quote.FeeProtocol))
		e.metrics.FeesCollected.WithLabelValues("lp").Add(float64(quote.FeeLP))
	}
	e.commit(cmd, &event.SharesPurchased{
		RequestID: requestID,
		Market:    marketID,
		AccountID: account,
		Side:      side.String(),
		Amount:    amount,
		Cost:      quote.Cost,
		FeeTotal:  quote.FeeProtocol + quote.FeeLP,
		Total:     quote.Total,
		SpendCap:  cap,
		Timestamp: ts,
	}, batch, ts)
	return quote, nil
}

// ============================================================================
// Settlement
// ============================================================================

// Resolve finalizes a market's outcome. Terminal.
func (e *Engine) Resolve(requestID, caller uuid.UUID, marketID uint64, outcome market.Outcome, ts time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	const cmd = "resolve"
	if err := e.begin(cmd, requestID, &marketID, ts); err != nil {
		return err
	}
	if err := e.admin.Require(caller); err != nil {
		return e.reject(cmd, err)
	}
	if err := e.registry.Resolve(marketID, outcome); err != nil {
		return e.reject(cmd, err)
	}

	if e.metrics != nil {
		e.metrics.MarketsOpen.Dec()
		e.metrics.MarketsResolved.Inc()
	}
	e.commit(cmd, &event.MarketResolved{
		RequestID: requestID,
		Market:    marketID,
		Outcome:   outcome.String(),
		Pool:      e.registry.Get(marketID).Pool,
		Timestamp: ts,
	}, nil, ts)
	return nil
}

// Redeem pays out the caller's winning shares from the market vault.
func (e *Engine) Redeem(requestID, account uuid.UUID, marketID uint64, ts time.Time) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const cmd = "redeem"
	if err := e.begin(cmd, requestID, &marketID, ts); err != nil {
		return 0, err
	}

	m := e.registry.Get(marketID)
	var shares int64
	if m != nil && m.Status == market.StatusResolved {
		shares = m.Balance(account, m.Outcome.Winner())
	}

	payout, err := e.registry.Redeem(marketID, account)
	if err != nil {
		return 0, e.reject(cmd, err)
	}

	// The vault mirrors the pool by construction; a shortfall here is
	// corrupted state, not a user error.
	batch, err := e.journalGen.GenerateRedemption(account, marketID, requestID.String(), payout, ledger.AssetSats, ts.UnixMicro())
	if err != nil {
		panic(fmt.Sprintf("FATAL: redemption batch: %v", err))
	}

	if e.metrics != nil {
		e.metrics.RedemptionsPaid.Inc()
		e.metrics.RedemptionVolume.Add(float64(payout))
	}
	e.commit(cmd, &event.SharesRedeemed{
		RequestID: requestID,
		Market:    marketID,
		AccountID: account,
		Shares:    shares,
		Payout:    payout,
		Timestamp: ts,
	}, batch, ts)
	return payout, nil
}

// WithdrawSurplus sweeps a settled market's leftover pool to the admin.
func (e *Engine) WithdrawSurplus(requestID, caller uuid.UUID, marketID uint64, ts time.Time) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const cmd = "withdraw_surplus"
	if err := e.begin(cmd, requestID, &marketID, ts); err != nil {
		return 0, err
	}
	if err := e.admin.Require(caller); err != nil {
		return 0, e.reject(cmd, err)
	}

	surplus, err := e.registry.WithdrawSurplus(marketID)
	if err != nil {
		return 0, e.reject(cmd, err)
	}
	batch, err := e.journalGen.GenerateSurplusSweep(caller, marketID, requestID.String(), surplus, ledger.AssetSats, ts.UnixMicro())
	if err != nil {
		panic(fmt.Sprintf("FATAL: surplus batch: %v", err))
	}

	e.commit(cmd, &event.SurplusWithdrawn{
		RequestID: requestID,
		Market:    marketID,
		Amount:    surplus,
		Timestamp: ts,
	}, batch, ts)
	return surplus, nil
}

// ============================================================================
// Fee governance
// ============================================================================

// SetFees updates the protocol and LP fee rates.
func (e *Engine) SetFees(requestID, caller uuid.UUID, protocolBps, lpBps int64, ts time.Time) error {
	return e.governance("set_fees", requestID, caller, ts,
		func() error { return e.registry.Fees().SetFees(protocolBps, lpBps) },
		func() event.Event {
			return &event.FeesUpdated{RequestID: requestID, ProtocolBps: protocolBps, LPBps: lpBps, Timestamp: ts}
		})
}

// SetSplit updates the three-way protocol fee split.
func (e *Engine) SetSplit(requestID, caller uuid.UUID, dripPct, brcPct, teamPct int64, ts time.Time) error {
	return e.governance("set_split", requestID, caller, ts,
		func() error { return e.registry.Fees().SetSplit(dripPct, brcPct, teamPct) },
		func() event.Event {
			return &event.SplitUpdated{RequestID: requestID, DripPct: dripPct, BrcPct: brcPct, TeamPct: teamPct, Timestamp: ts}
		})
}

// SetRecipients updates the fee payout destinations.
func (e *Engine) SetRecipients(requestID, caller uuid.UUID, r market.FeeRecipients, ts time.Time) error {
	return e.governance("set_recipients", requestID, caller, ts,
		func() error { return e.registry.Fees().SetRecipients(r) },
		func() event.Event {
			return &event.RecipientsUpdated{
				RequestID: requestID,
				Drip:      r.Drip, Brc: r.Brc, Team: r.Team, LP: r.LP,
				Timestamp: ts,
			}
		})
}

// LockFees latches the fee schedule immutable. One-way.
func (e *Engine) LockFees(requestID, caller uuid.UUID, ts time.Time) error {
	return e.governance("lock_fees", requestID, caller, ts,
		func() error { e.registry.Fees().Lock(); return nil },
		func() event.Event {
			return &event.FeeConfigLocked{RequestID: requestID, Timestamp: ts}
		})
}

func (e *Engine) governance(cmd string, requestID, caller uuid.UUID, ts time.Time, apply func() error, evt func() event.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.begin(cmd, requestID, nil, ts); err != nil {
		return err
	}
	if err := e.admin.Require(caller); err != nil {
		return e.reject(cmd, err)
	}
	if err := apply(); err != nil {
		return e.reject(cmd, err)
	}

	e.commit(cmd, evt(), nil, ts)
	return nil
}

// ============================================================================
// Queries
// ============================================================================

// Snapshot is a read-only copy of one market's public state.
type Snapshot struct {
	ID        uint64 `json:"id"`
	Pool      int64  `json:"pool"`
	Liquidity int64  `json:"liquidity"`
	YesSupply int64  `json:"yes_supply"`
	NoSupply  int64  `json:"no_supply"`
	Status    string `json:"status"`
	Outcome   string `json:"outcome"`
	MaxTrade  int64  `json:"max_trade"`
	Unit      int64  `json:"unit"`
}

// GetSnapshot returns a market's public state.
func (e *Engine) GetSnapshot(marketID uint64) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.registry.Get(marketID)
	if m == nil {
		return Snapshot{}, market.ErrNotInitialized
	}
	return Snapshot{
		ID:        m.ID,
		Pool:      m.Pool,
		Liquidity: m.B,
		YesSupply: m.YesSupply,
		NoSupply:  m.NoSupply,
		Status:    m.Status.String(),
		Outcome:   m.Outcome.String(),
		MaxTrade:  m.MaxTrade,
		Unit:      market.Unit,
	}, nil
}

// MarketIDs returns every known market id, sorted.
func (e *Engine) MarketIDs() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := e.registry.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Position is an account's standing in one market.
type Position struct {
	MarketID uint64 `json:"market_id"`
	Yes      int64  `json:"yes"`
	No       int64  `json:"no"`
	Spent    int64  `json:"spent"`
	SpendCap int64  `json:"spend_cap"`
}

// GetPosition returns an account's share balances and spend state.
func (e *Engine) GetPosition(marketID uint64, account uuid.UUID) (Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.registry.Get(marketID)
	if m == nil {
		return Position{}, market.ErrNotInitialized
	}
	return Position{
		MarketID: marketID,
		Yes:      m.Balance(account, market.SideYes),
		No:       m.Balance(account, market.SideNo),
		Spent:    m.Spent(account),
		SpendCap: m.Cap(account),
	}, nil
}

// GetBalance returns an account's cash balance in settlement units.
func (e *Engine) GetBalance(account uuid.UUID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balanceTracker.GetUserBalance(account, ledger.AssetSats)
}

// FeeConfig returns a copy of the current fee schedule.
func (e *Engine) FeeConfig() market.FeeConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.registry.Fees()
}

// Sequence returns the next sequence the engine will assign.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// StateHash returns the current chain tip.
func (e *Engine) StateHash() [32]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasher.GetPrevHash()
}

// ============================================================================
// Pipeline
// ============================================================================

// begin runs the shared front half of every command: dedup and
// timestamp validation. Callers hold the lock.
func (e *Engine) begin(cmd string, requestID uuid.UUID, marketID *uint64, ts time.Time) error {
	key := requestID.String()
	if e.idempotency.IsDuplicate(cmd, key) {
		if e.metrics != nil {
			e.metrics.CoreCommandsRejected.WithLabelValues(cmd, "duplicate").Inc()
		}
		return ErrDuplicateRequest
	}
	if err := e.clock.Validate(partition(marketID), ts); err != nil {
		if e.metrics != nil {
			e.metrics.CoreCommandsRejected.WithLabelValues(cmd, "timestamp").Inc()
		}
		return err
	}
	return nil
}

// reject records a domain refusal and passes the error through.
func (e *Engine) reject(cmd string, err error) error {
	if e.metrics != nil {
		e.metrics.CoreCommandsRejected.WithLabelValues(cmd, rejectReason(err)).Inc()
	}
	return err
}

// commit runs the shared back half: apply the batch, hash, build the
// envelope, emit, and mark the request processed. Callers hold the
// lock and have already mutated market state successfully, so commit
// cannot fail; invariant breaches panic.
func (e *Engine) commit(cmd string, evt event.Event, batch *ledger.Batch, ts time.Time) {
	start := time.Now()

	if batch != nil {
		if err := e.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
		if err := e.balanceTracker.ApplyBatch(batch); err != nil {
			panic(fmt.Sprintf("FATAL: apply batch: %v", err))
		}
		if e.metrics != nil {
			for _, j := range batch.Journals {
				e.metrics.CoreJournals.WithLabelValues(journalTypeName(j.JournalType)).Inc()
			}
		}
	}

	if mid := evt.MarketID(); mid != nil {
		if err := e.validator.ValidatePoolNonNegative(*mid, ledger.AssetSats); err != nil {
			panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
		}
		if m := e.registry.Get(*mid); m != nil {
			if vault := e.balanceTracker.GetPoolBalance(*mid, ledger.AssetSats); vault != m.Pool {
				panic(fmt.Sprintf("FATAL: pool %d drifted from vault: pool=%d vault=%d", *mid, m.Pool, vault))
			}
			if e.metrics != nil {
				e.metrics.PoolBalance.WithLabelValues(strconv.FormatUint(*mid, 10)).Set(float64(m.Pool))
			}
		}
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: marshal %s payload: %v", cmd, err))
	}

	stateDigest := e.computeStateDigest(batch)
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)

	envelope := &event.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: evt.IdempotencyKey(),
		EventType:      evt.EventType(),
		MarketID:       evt.MarketID(),
		Timestamp:      ts,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}
	output := Output{Envelope: envelope, Batch: batch, StateDelta: stateDigest}
	e.sequence++

	// Persistence: blocking send. The engine stalls until the
	// persistence worker drains, so no event is ever lost.
	if e.persistChan != nil {
		e.persistChan <- output
	}

	// Projections: non-blocking send, drop on full. Projections can
	// rebuild from the event log if they fall behind.
	if e.projectionChan != nil {
		select {
		case e.projectionChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.Inc()
			}
		}
	}

	e.idempotency.MarkProcessed(cmd, evt.IdempotencyKey())

	if e.metrics != nil {
		e.metrics.CoreCommandsApplied.WithLabelValues(cmd).Inc()
		e.metrics.CoreCommandDuration.WithLabelValues(cmd).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(e.sequence))
		e.metrics.DedupLRUSize.Set(float64(e.idempotency.lru.Size()))
	}
	e.log.Debug().
		Str("command", cmd).
		Int64("sequence", envelope.Sequence).
		Str("event_type", envelope.EventType.String()).
		Msg("command applied")
}

// computeStateDigest creates canonical bytes for the state hash from
// the accounts the batch touched.
func (e *Engine) computeStateDigest(batch *ledger.Batch) []byte {
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	// Sort by AccountPath (deterministic string ordering)
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)
	for _, key := range accounts {
		balance := e.balanceTracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, balance)
	}

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

func partition(marketID *uint64) string {
	if marketID != nil {
		return fmt.Sprintf("market:%d", *marketID)
	}
	return "global"
}

func rejectReason(err error) string {
	var merr *market.Error
	if errors.As(err, &merr) {
		return fmt.Sprintf("u%d", merr.Code)
	}
	return "error"
}

func journalTypeName(jt ledger.JournalType) string {
	switch jt {
	case ledger.JournalTypeDeposit:
		return "deposit"
	case ledger.JournalTypeWithdrawal:
		return "withdrawal"
	case ledger.JournalTypeSeedLiquidity:
		return "seed_liquidity"
	case ledger.JournalTypeTradeCost:
		return "trade_cost"
	case ledger.JournalTypeTradeFee:
		return "trade_fee"
	case ledger.JournalTypeRedemption:
		return "redemption"
	case ledger.JournalTypeSurplusSweep:
		return "surplus_sweep"
	default:
		return "adjustment"
	}
}
