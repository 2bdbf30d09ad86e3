// Package monitor checks an in-progress route for upcoming hazards and for
// deviation from the planned geometry. Checks are stateless; clients poll
// while traveling and act on the returned alert.
package monitor

import (
	"context"
	"time"

	"github.com/saaj376/SafeTrace/internal/geo"
	"github.com/saaj376/SafeTrace/internal/network"
	"github.com/saaj376/SafeTrace/internal/traces"
)

// AlertType classifies a monitoring alert.
type AlertType string

const (
	AlertHazardAhead AlertType = "HAZARD_AHEAD"
	AlertDeviation   AlertType = "DEVIATION_ALERT"
)

// Alert is the outcome of a status check. ActionRequired is false when the
// traveler is on route with no elevated risk ahead.
type Alert struct {
	ActionRequired bool            `json:"action_required"`
	Type           AlertType       `json:"type,omitempty"`
	NodeID         int64           `json:"node_id,omitempty"`
	Coordinates    *geo.Coordinate `json:"coordinates,omitempty"`
	RiskScore      float64         `json:"risk_score,omitempty"`
	DistanceMeters float64         `json:"distance_meters,omitempty"`
	Message        string          `json:"message,omitempty"`
}

// RiskSource answers historical risk queries for lookahead nodes.
type RiskSource interface {
	RiskAt(nodeID int64, hour int) float64
}

// Service runs hazard and deviation checks against the loaded network.
type Service struct {
	net            *network.Network
	risk           RiskSource
	lookaheadSteps int
	riskThreshold  float64
	maxDeviationM  float64
	now            func() time.Time
}

// Options configures a monitor service.
type Options struct {
	// LookaheadSteps is how many upcoming nodes the hazard check examines.
	LookaheadSteps int
	// RiskThreshold is the risk score at or above which a node is hazardous.
	RiskThreshold float64
	// MaxDeviationMeters is the allowed distance from the planned geometry.
	MaxDeviationMeters float64
}

// NewService creates a monitor over the network and risk store.
func NewService(net *network.Network, risk RiskSource, opts Options) *Service {
	if opts.LookaheadSteps <= 0 {
		opts.LookaheadSteps = 5
	}
	if opts.RiskThreshold <= 0 {
		opts.RiskThreshold = 7.0
	}
	if opts.MaxDeviationMeters <= 0 {
		opts.MaxDeviationMeters = 50
	}
	return &Service{
		net:            net,
		risk:           risk,
		lookaheadSteps: opts.LookaheadSteps,
		riskThreshold:  opts.RiskThreshold,
		maxDeviationM:  opts.MaxDeviationMeters,
		now:            time.Now,
	}
}

// CheckStatus evaluates the hazard check first, then deviation. The hazard
// check short-circuits on the first upcoming node over the threshold, so the
// reported node is the nearest hazardous one, not the worst in the window.
// Without a loaded network the check fails closed and reports no alert.
func (s *Service) CheckStatus(ctx context.Context, current geo.Coordinate, remainingNodes []int64) Alert {
	_, span := traces.StartSpan(ctx, "monitor.CheckStatus")
	defer span.End()

	if s.net == nil {
		return Alert{Message: "monitoring unavailable"}
	}

	if a, ok := s.hazardAhead(remainingNodes); ok {
		span.SetAttributes(traces.AlertType(string(a.Type)), traces.NodeID(a.NodeID))
		return a
	}
	if a, ok := s.deviation(current, remainingNodes); ok {
		span.SetAttributes(traces.AlertType(string(a.Type)), traces.NodeID(a.NodeID))
		return a
	}
	return Alert{Message: "on route"}
}

func (s *Service) hazardAhead(remainingNodes []int64) (Alert, bool) {
	hour := s.now().Hour()
	steps := s.lookaheadSteps
	if steps > len(remainingNodes) {
		steps = len(remainingNodes)
	}
	for _, id := range remainingNodes[:steps] {
		score := s.risk.RiskAt(id, hour)
		if score < s.riskThreshold {
			continue
		}
		a := Alert{
			ActionRequired: true,
			Type:           AlertHazardAhead,
			NodeID:         id,
			RiskScore:      score,
			Message:        "elevated risk on upcoming route node",
		}
		if c, ok := s.net.Coords(id); ok {
			a.Coordinates = &c
		}
		return a, true
	}
	return Alert{}, false
}

func (s *Service) deviation(current geo.Coordinate, remainingNodes []int64) (Alert, bool) {
	if len(remainingNodes) == 0 {
		return Alert{}, false
	}

	minDist := -1.0
	for _, id := range remainingNodes {
		c, ok := s.net.Coords(id)
		if !ok {
			continue
		}
		d := geo.DistanceMeters(current.Lat, current.Lon, c.Lat, c.Lon)
		if d <= s.maxDeviationM {
			// Close enough to one planned point; no need to finish the scan.
			return Alert{}, false
		}
		if minDist < 0 || d < minDist {
			minDist = d
		}
	}
	if minDist < 0 {
		return Alert{}, false
	}
	return Alert{
		ActionRequired: true,
		Type:           AlertDeviation,
		DistanceMeters: minDist,
		Message:        "traveler has strayed from the planned route",
	}, true
}
