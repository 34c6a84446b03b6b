package market

import (
	"sort"

	"github.com/google/uuid"
)

// HoldingState is one account's serializable position in a market.
type HoldingState struct {
	Account  uuid.UUID `json:"account"`
	Yes      int64     `json:"yes"`
	No       int64     `json:"no"`
	SpendCap int64     `json:"spend_cap"`
	Spent    int64     `json:"spent"`
}

// MarketState is a serializable copy of one market aggregate.
type MarketState struct {
	ID        uint64         `json:"id"`
	Pool      int64          `json:"pool"`
	B         int64          `json:"b"`
	YesSupply int64          `json:"yes_supply"`
	NoSupply  int64          `json:"no_supply"`
	Status    uint8          `json:"status"`
	Outcome   uint8          `json:"outcome"`
	MaxTrade  int64          `json:"max_trade"`
	Holdings  []HoldingState `json:"holdings"`
}

// FeeConfigState is a serializable copy of the global fee schedule.
type FeeConfigState struct {
	ProtocolBps int64     `json:"protocol_bps"`
	LPBps       int64     `json:"lp_bps"`
	DripPct     int64     `json:"drip_pct"`
	BrcPct      int64     `json:"brc_pct"`
	TeamPct     int64     `json:"team_pct"`
	Drip        uuid.UUID `json:"drip_recipient"`
	Brc         uuid.UUID `json:"brc_recipient"`
	Team        uuid.UUID `json:"team_recipient"`
	LP          uuid.UUID `json:"lp_recipient"`
	Locked      bool      `json:"locked"`
}

// RegistryState is the full serializable registry: every market plus
// the fee schedule. The policy is configuration, not state, so it is
// not captured here.
type RegistryState struct {
	Markets []MarketState  `json:"markets"`
	Fees    FeeConfigState `json:"fees"`
}

// ExportState copies the registry into a serializable form. Markets and
// holdings are sorted so the output is deterministic.
func (r *Registry) ExportState() RegistryState {
	st := RegistryState{
		Markets: make([]MarketState, 0, len(r.markets)),
		Fees: FeeConfigState{
			ProtocolBps: r.fees.ProtocolBps,
			LPBps:       r.fees.LPBps,
			DripPct:     r.fees.DripPct,
			BrcPct:      r.fees.BrcPct,
			TeamPct:     r.fees.TeamPct,
			Drip:        r.fees.Recipients.Drip,
			Brc:         r.fees.Recipients.Brc,
			Team:        r.fees.Recipients.Team,
			LP:          r.fees.Recipients.LP,
			Locked:      r.fees.Locked,
		},
	}

	for _, m := range r.markets {
		st.Markets = append(st.Markets, m.exportState())
	}
	sort.Slice(st.Markets, func(i, j int) bool {
		return st.Markets[i].ID < st.Markets[j].ID
	})
	return st
}

// RestoreState replaces the registry contents with a previously
// exported state. Used only during recovery, before any command runs.
func (r *Registry) RestoreState(st RegistryState) {
	r.markets = make(map[uint64]*Market, len(st.Markets))
	for _, ms := range st.Markets {
		r.markets[ms.ID] = restoreMarket(ms)
	}

	r.fees = &FeeConfig{
		ProtocolBps: st.Fees.ProtocolBps,
		LPBps:       st.Fees.LPBps,
		DripPct:     st.Fees.DripPct,
		BrcPct:      st.Fees.BrcPct,
		TeamPct:     st.Fees.TeamPct,
		Recipients: FeeRecipients{
			Drip: st.Fees.Drip,
			Brc:  st.Fees.Brc,
			Team: st.Fees.Team,
			LP:   st.Fees.LP,
		},
		Locked: st.Fees.Locked,
	}
}

func (m *Market) exportState() MarketState {
	ms := MarketState{
		ID:        m.ID,
		Pool:      m.Pool,
		B:         m.B,
		YesSupply: m.YesSupply,
		NoSupply:  m.NoSupply,
		Status:    uint8(m.Status),
		Outcome:   uint8(m.Outcome),
		MaxTrade:  m.MaxTrade,
	}

	// Collect every account that appears in any per-account map.
	accounts := make(map[uuid.UUID]struct{})
	for a := range m.yesBalances {
		accounts[a] = struct{}{}
	}
	for a := range m.noBalances {
		accounts[a] = struct{}{}
	}
	for a := range m.spendCap {
		accounts[a] = struct{}{}
	}
	for a := range m.spent {
		accounts[a] = struct{}{}
	}

	for a := range accounts {
		ms.Holdings = append(ms.Holdings, HoldingState{
			Account:  a,
			Yes:      m.yesBalances[a],
			No:       m.noBalances[a],
			SpendCap: m.spendCap[a],
			Spent:    m.spent[a],
		})
	}
	sort.Slice(ms.Holdings, func(i, j int) bool {
		return ms.Holdings[i].Account.String() < ms.Holdings[j].Account.String()
	})
	return ms
}

func restoreMarket(ms MarketState) *Market {
	m := &Market{
		ID:          ms.ID,
		Pool:        ms.Pool,
		B:           ms.B,
		YesSupply:   ms.YesSupply,
		NoSupply:    ms.NoSupply,
		Status:      Status(ms.Status),
		Outcome:     Outcome(ms.Outcome),
		MaxTrade:    ms.MaxTrade,
		yesBalances: make(map[uuid.UUID]int64, len(ms.Holdings)),
		noBalances:  make(map[uuid.UUID]int64, len(ms.Holdings)),
		spendCap:    make(map[uuid.UUID]int64, len(ms.Holdings)),
		spent:       make(map[uuid.UUID]int64, len(ms.Holdings)),
	}
	for _, h := range ms.Holdings {
		if h.Yes != 0 {
			m.yesBalances[h.Account] = h.Yes
		}
		if h.No != 0 {
			m.noBalances[h.Account] = h.No
		}
		if h.SpendCap != 0 {
			m.spendCap[h.Account] = h.SpendCap
		}
		if h.Spent != 0 {
			m.spent[h.Account] = h.Spent
		}
	}
	return m
}
