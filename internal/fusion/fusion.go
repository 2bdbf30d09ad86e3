// Package fusion turns per-segment signals into a single edge cost.
//
// The engine combines historical risk, a time-of-day environmental penalty,
// live crowd density, and accumulated user feedback according to the routing
// mode's profile. Cost computation is pure: the engine holds only read-only
// configuration and signal sources, so concurrent route requests can price
// edges without coordination.
package fusion

import (
	"errors"
	"fmt"

	"github.com/saaj376/SafeTrace/internal/network"
)

// ErrUnknownMode is returned for mode names outside the closed set.
var ErrUnknownMode = errors.New("unknown routing mode")

// Mode is a routing preference profile.
type Mode string

const (
	ModeSafe     Mode = "safe"
	ModeBalanced Mode = "balanced"
	ModeStealth  Mode = "stealth"
	ModeEscort   Mode = "escort"
)

// Modes lists every supported mode.
func Modes() []Mode {
	return []Mode{ModeSafe, ModeBalanced, ModeStealth, ModeEscort}
}

// ParseMode resolves a mode name to its enumeration value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSafe, ModeBalanced, ModeStealth, ModeEscort:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Strategy selects the cost formulation. Exactly one is active per engine;
// the two are never mixed within a request.
type Strategy string

const (
	// StrategyAdditive fuses travel time with risk, environment, crowd, and
	// feedback signals. This is the default.
	StrategyAdditive Strategy = "additive"

	// StrategyClass multiplies travel time by a per-mode highway-class
	// factor, ignoring live signals. Intended for deployments where the
	// risk table and crowd tracker are not provisioned.
	StrategyClass Strategy = "class"
)

// Profile carries one mode's weighting configuration.
type Profile struct {
	// RiskSensitivity scales how strongly risk converts into time penalty.
	// Higher means safety outweighs speed.
	RiskSensitivity float64

	// CrowdCoefficient is the cost added per unit of shadow score. Positive
	// penalizes busy segments (stealth), negative rewards them (safety in
	// numbers), zero ignores them.
	CrowdCoefficient float64

	// ClassMultipliers apply under StrategyClass, indexed by
	// network.HighwayClass.Bucket (largest roads first).
	ClassMultipliers [5]float64
}

// Config is the full fusion configuration.
type Config struct {
	Strategy Strategy
	Profiles map[Mode]Profile

	// FeedbackWeight scales the user-feedback cost term. The term is zero
	// for unrated segments and bounded by ±FeedbackWeight/2.
	FeedbackWeight float64
}

// Cost floors per formulation. A shortest-path search requires strictly
// positive weights.
const (
	MinAdditiveCost = 1.0
	MinClassCost    = 0.1
)

// riskTimeScale converts a 0–10 risk score into seconds of penalty before
// mode sensitivity is applied.
const riskTimeScale = 10

// darknessPenaltyValue is added to risk during deep-night hours. Placeholder
// for a future weather feed.
const darknessPenaltyValue = 1.5

// DefaultConfig returns the built-in mode profiles with the additive strategy.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyAdditive,
		FeedbackWeight: 50,
		Profiles: map[Mode]Profile{
			ModeSafe:     {RiskSensitivity: 0.8, CrowdCoefficient: -15, ClassMultipliers: [5]float64{10.0, 5.0, 2.0, 1.2, 0.7}},
			ModeBalanced: {RiskSensitivity: 0.5, CrowdCoefficient: 0, ClassMultipliers: [5]float64{1.0, 1.0, 1.0, 1.0, 1.0}},
			ModeStealth:  {RiskSensitivity: 0.2, CrowdCoefficient: 75, ClassMultipliers: [5]float64{20.0, 10.0, 4.0, 1.5, 0.5}},
			ModeEscort:   {RiskSensitivity: 1.0, CrowdCoefficient: -15, ClassMultipliers: [5]float64{0.5, 0.5, 0.8, 1.5, 3.0}},
		},
	}
}

// RiskSource answers historical risk queries.
type RiskSource interface {
	RiskAt(nodeID int64, hour int) float64
}

// CrowdSource answers shadow-score queries.
type CrowdSource interface {
	Score(segmentID int64) float64
}

// FeedbackSource answers segment feedback queries with neutral defaults for
// unrated segments.
type FeedbackSource interface {
	Signal(segmentID int64) (score, confidence float64)
}

// Engine prices segments for a mode and hour.
type Engine struct {
	cfg      Config
	risk     RiskSource
	crowd    CrowdSource
	feedback FeedbackSource
}

// NewEngine creates a fusion engine over the given signal sources.
func NewEngine(cfg Config, riskSrc RiskSource, crowdSrc CrowdSource, feedbackSrc FeedbackSource) *Engine {
	return &Engine{cfg: cfg, risk: riskSrc, crowd: crowdSrc, feedback: feedbackSrc}
}

// Profile returns the configuration for a mode.
func (e *Engine) Profile(mode Mode) Profile {
	return e.cfg.Profiles[mode]
}

// DarknessPenalty returns the environmental penalty for the given hour:
// elevated during deep night (23:00–04:59), zero otherwise.
func DarknessPenalty(hour int) float64 {
	if hour >= 23 || hour <= 4 {
		return darknessPenaltyValue
	}
	return 0
}

// Cost computes a segment's edge cost for the given mode and hour.
// Always strictly positive.
func (e *Engine) Cost(seg *network.Segment, mode Mode, hour int) float64 {
	p := e.cfg.Profiles[mode]

	if e.cfg.Strategy == StrategyClass {
		w := seg.TravelTime * p.ClassMultipliers[seg.Class.Bucket()]
		if w < MinClassCost {
			return MinClassCost
		}
		return w
	}

	riskScore := e.risk.RiskAt(seg.From, hour)
	environmental := DarknessPenalty(hour)
	crowdScore := e.crowd.Score(seg.ID)
	fbScore, fbConfidence := e.feedback.Signal(seg.ID)

	riskPenalty := (riskScore + environmental) * riskTimeScale * p.RiskSensitivity
	crowdAdjustment := p.CrowdCoefficient * crowdScore
	// Segments rated safer than neutral get cheaper, dangerous ones dearer,
	// scaled by how much evidence backs the rating. Zero for unrated segments.
	feedbackAdjustment := (0.5 - fbScore) * fbConfidence * e.cfg.FeedbackWeight

	w := seg.TravelTime + riskPenalty + crowdAdjustment + feedbackAdjustment
	if w < MinAdditiveCost {
		return MinAdditiveCost
	}
	return w
}
