// Package portfolio holds the cash/share state of a single backtest, the
// rebalancer that mutates it, and the tracker that records its history.
//
// A Portfolio is owned by exactly one simulation loop; nothing here locks.
package portfolio

// Portfolio is a two-asset book: cash and a (fractional) share count.
type Portfolio struct {
	Cash   float64 `json:"cash"`
	Shares float64 `json:"shares"`
}

// New splits initialCash between cash and shares at price.
// allocation is the fraction of value placed in shares (0.5 = 50/50).
func New(initialCash, allocation, price float64) *Portfolio {
	equity := initialCash * allocation
	return &Portfolio{
		Cash:   initialCash - equity,
		Shares: equity / price,
	}
}

// Value returns cash plus the market value of the shares at price.
func (p *Portfolio) Value(price float64) float64 {
	return p.Cash + p.Shares*price
}

// EquityWeight returns the fraction of total value held in shares.
// Returns 0 for an empty book.
func (p *Portfolio) EquityWeight(price float64) float64 {
	total := p.Value(price)
	if total == 0 {
		return 0
	}
	return p.Shares * price / total
}

// RebalanceTo moves value between cash and shares so that shares hold
// target of the total at price. Total value is unchanged. price must be > 0.
func (p *Portfolio) RebalanceTo(target, price float64) {
	total := p.Value(price)
	equity := total * target
	p.Shares = equity / price
	p.Cash = total - equity
}
