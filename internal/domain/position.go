package domain

import "time"

// OptionKind distinguishes option legs from stock legs.
type OptionKind int

const (
	KindCall OptionKind = iota
	KindPut
	KindEquity
)

func (k OptionKind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindPut:
		return "put"
	default:
		return "equity"
	}
}

func (k OptionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Side is the direction of a single leg.
type Side int

const (
	SideLong Side = iota
	SideShort
)

func (s Side) String() string {
	if s == SideShort {
		return "short"
	}
	return "long"
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Leg is one component of a spread. Equity legs carry no strike or expiry.
type Leg struct {
	Strike float64    `json:"strike" yaml:"strike"`
	Expiry time.Time  `json:"expiry" yaml:"expiry"`
	Kind   OptionKind `json:"kind" yaml:"kind"`
	Side   Side       `json:"side" yaml:"side"`
}

// Greeks are position totals, already summed across legs for the current
// quantity. They are never per-unit values.
type Greeks struct {
	Delta float64 `json:"delta" yaml:"delta"`
	Gamma float64 `json:"gamma" yaml:"gamma"`
	Vega  float64 `json:"vega" yaml:"vega"`
	Theta float64 `json:"theta" yaml:"theta"`
}

// SpreadPosition is a multi-leg option (or equity) position treated as one
// investable unit.
//
// Quantity is a signed count of spread units: negative means the structure
// as a whole is short. NetCost is per spread unit and signed: positive is a
// debit paid, negative a credit received. MaxLossPerContract and
// CollateralPerContract are optional broker-supplied overrides; zero means
// absent.
type SpreadPosition struct {
	ID         string   `json:"id" yaml:"id"`
	Underlying string   `json:"underlying" yaml:"underlying"`
	Ticker     string   `json:"ticker" yaml:"ticker"`
	Strategy   Strategy `json:"strategy" yaml:"strategy"`
	Legs       []Leg    `json:"legs" yaml:"legs"`
	Quantity   int      `json:"quantity" yaml:"quantity"`
	NetCost    float64  `json:"net_cost" yaml:"net_cost"`

	CurrentValue float64 `json:"current_value" yaml:"current_value"`
	Greeks       Greeks  `json:"greeks" yaml:"greeks"`

	CostBasis             float64 `json:"cost_basis,omitempty" yaml:"cost_basis"`
	UnderlyingPrice       float64 `json:"underlying_price,omitempty" yaml:"underlying_price"`
	MaxLossPerContract    float64 `json:"max_loss_per_contract,omitempty" yaml:"max_loss_per_contract"`
	CollateralPerContract float64 `json:"collateral_per_contract,omitempty" yaml:"collateral_per_contract"`
}

// Symbol returns the identifier used to key weights, holdings, and trades:
// the display ticker when set, else the position ID, else the underlying.
func (p SpreadPosition) Symbol() string {
	if p.Ticker != "" {
		return p.Ticker
	}
	if p.ID != "" {
		return p.ID
	}
	return p.Underlying
}

// AbsQuantity returns the unsigned spread unit count.
func (p SpreadPosition) AbsQuantity() int {
	if p.Quantity < 0 {
		return -p.Quantity
	}
	return p.Quantity
}

// IsLong reports whether the structure as a whole is held long.
func (p SpreadPosition) IsLong() bool {
	return p.Quantity > 0
}

// HasOptionLegs reports whether any leg is a call or put.
func (p SpreadPosition) HasOptionLegs() bool {
	for _, leg := range p.Legs {
		if leg.Kind == KindCall || leg.Kind == KindPut {
			return true
		}
	}
	return false
}

// StrikeRange returns the lowest and highest strikes across option legs.
// ok is false when no leg carries a positive strike.
func (p SpreadPosition) StrikeRange() (lo, hi float64, ok bool) {
	for _, leg := range p.Legs {
		if leg.Kind == KindEquity || leg.Strike <= 0 {
			continue
		}
		if !ok {
			lo, hi, ok = leg.Strike, leg.Strike, true
			continue
		}
		if leg.Strike < lo {
			lo = leg.Strike
		}
		if leg.Strike > hi {
			hi = leg.Strike
		}
	}
	return lo, hi, ok
}

// MaxStrike returns the highest strike among legs of the given kind, or 0.
func (p SpreadPosition) MaxStrike(kind OptionKind) float64 {
	var hi float64
	for _, leg := range p.Legs {
		if leg.Kind == kind && leg.Strike > hi {
			hi = leg.Strike
		}
	}
	return hi
}

// HasLegKind reports whether any leg is of the given kind.
func (p SpreadPosition) HasLegKind(kind OptionKind) bool {
	for _, leg := range p.Legs {
		if leg.Kind == kind {
			return true
		}
	}
	return false
}

// IsCreditStructure classifies the position for collateral purposes. The
// strategy tag decides when it can; Vertical, Single, and Other fall back to
// the sign of the net cost (negative = credit received).
func (p SpreadPosition) IsCreditStructure() bool {
	if p.Strategy.IsCredit() {
		return true
	}
	if p.Strategy.IsDebit() {
		return false
	}
	return p.NetCost < 0
}
