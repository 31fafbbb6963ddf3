package domain

import "strings"

// Strategy tags the structural type of a spread. Dispatch on the tag is
// exhaustive; free-text strategy names from upstream feeds are normalized
// through ParseStrategy and anything unrecognized lands on StrategyOther.
type Strategy int

const (
	StrategyOther Strategy = iota
	StrategyDebitCall
	StrategyDebitPut
	StrategyCreditCall
	StrategyCreditPut
	StrategyIronCondor
	StrategyVertical
	StrategySingle
)

func (s Strategy) String() string {
	switch s {
	case StrategyDebitCall:
		return "debit_call"
	case StrategyDebitPut:
		return "debit_put"
	case StrategyCreditCall:
		return "credit_call"
	case StrategyCreditPut:
		return "credit_put"
	case StrategyIronCondor:
		return "iron_condor"
	case StrategyVertical:
		return "vertical"
	case StrategySingle:
		return "single"
	default:
		return "other"
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	*s = ParseStrategy(string(text))
	return nil
}

// ParseStrategy is total: unrecognized names map to StrategyOther instead of
// failing, so a new upstream label can never break the pipeline.
func ParseStrategy(s string) Strategy {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	switch normalized {
	case "debit_call", "call_debit_spread", "bull_call_spread":
		return StrategyDebitCall
	case "debit_put", "put_debit_spread", "bear_put_spread":
		return StrategyDebitPut
	case "credit_call", "call_credit_spread", "bear_call_spread":
		return StrategyCreditCall
	case "credit_put", "put_credit_spread", "bull_put_spread":
		return StrategyCreditPut
	case "iron_condor":
		return StrategyIronCondor
	case "vertical", "vertical_spread":
		return StrategyVertical
	case "single", "single_leg", "long_call", "long_put":
		return StrategySingle
	default:
		return StrategyOther
	}
}

// AllStrategies lists every strategy tag in declaration order.
func AllStrategies() []Strategy {
	return []Strategy{
		StrategyOther, StrategyDebitCall, StrategyDebitPut, StrategyCreditCall,
		StrategyCreditPut, StrategyIronCondor, StrategyVertical, StrategySingle,
	}
}

// IsCredit reports whether the tag alone marks the structure as premium
// collecting. Vertical, Single, and Other are ambiguous and need the net
// cost sign to classify (see SpreadPosition.IsCreditStructure).
func (s Strategy) IsCredit() bool {
	switch s {
	case StrategyCreditCall, StrategyCreditPut, StrategyIronCondor:
		return true
	default:
		return false
	}
}

// IsDebit reports whether the tag alone marks the structure as premium
// paying.
func (s Strategy) IsDebit() bool {
	switch s {
	case StrategyDebitCall, StrategyDebitPut:
		return true
	default:
		return false
	}
}
