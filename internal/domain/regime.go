package domain

import (
	"fmt"
	"strings"
)

// Regime classifies the prevailing market state. The pipeline consumes the
// label as an opaque input; detection happens upstream.
type Regime int

const (
	RegimeSuppressed Regime = iota
	RegimeNormal
	RegimeElevated
	RegimeShock
	RegimeRebound
	RegimeChop
)

func (r Regime) String() string {
	switch r {
	case RegimeSuppressed:
		return "suppressed"
	case RegimeNormal:
		return "normal"
	case RegimeElevated:
		return "elevated"
	case RegimeShock:
		return "shock"
	case RegimeRebound:
		return "rebound"
	case RegimeChop:
		return "chop"
	default:
		return "unknown"
	}
}

// MarshalText renders the regime as its lowercase label so JSON artifacts and
// map keys stay human-readable.
func (r Regime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Regime) UnmarshalText(text []byte) error {
	parsed, err := ParseRegime(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRegime maps a label to a Regime. Accepted aliases: "high_vol" for
// elevated and "panic" for shock.
func ParseRegime(s string) (Regime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "suppressed":
		return RegimeSuppressed, nil
	case "normal":
		return RegimeNormal, nil
	case "elevated", "high_vol":
		return RegimeElevated, nil
	case "shock", "panic":
		return RegimeShock, nil
	case "rebound":
		return RegimeRebound, nil
	case "chop", "choppy":
		return RegimeChop, nil
	default:
		return RegimeNormal, fmt.Errorf("unknown regime %q", s)
	}
}

// AllRegimes lists every regime in declaration order, for table validation
// and deterministic iteration.
func AllRegimes() []Regime {
	return []Regime{RegimeSuppressed, RegimeNormal, RegimeElevated, RegimeShock, RegimeRebound, RegimeChop}
}

// RegimeSnapshot is the detector output the pipeline consumes: a discrete
// label plus a continuous scaler in (0, 1].
type RegimeSnapshot struct {
	Regime     Regime  `json:"regime" yaml:"regime"`
	RiskScaler float64 `json:"risk_scaler" yaml:"risk_scaler"`
}

func (s RegimeSnapshot) Validate() error {
	if s.RiskScaler <= 0 || s.RiskScaler > 1 {
		return fmt.Errorf("risk_scaler %.4f outside (0, 1]", s.RiskScaler)
	}
	return nil
}

// RiskProfile selects how aggressively budget caps scale.
type RiskProfile int

const (
	ProfileBalanced RiskProfile = iota
	ProfileConservative
	ProfileAggressive
)

func (p RiskProfile) String() string {
	switch p {
	case ProfileConservative:
		return "conservative"
	case ProfileAggressive:
		return "aggressive"
	default:
		return "balanced"
	}
}

func (p RiskProfile) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *RiskProfile) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskProfile(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func ParseRiskProfile(s string) (RiskProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "conservative":
		return ProfileConservative, nil
	case "balanced", "":
		return ProfileBalanced, nil
	case "aggressive":
		return ProfileAggressive, nil
	default:
		return ProfileBalanced, fmt.Errorf("unknown risk profile %q", s)
	}
}

// Multiplier scales strategy, underlying, and greek caps: aggressive books
// get 1.25x headroom, conservative books 0.75x.
func (p RiskProfile) Multiplier() float64 {
	switch p {
	case ProfileConservative:
		return 0.75
	case ProfileAggressive:
		return 1.25
	default:
		return 1.0
	}
}
