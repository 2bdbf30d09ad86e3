package network

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFromFile reads a node-link JSON road network (the format exported by
// OSM preprocessing: nodes with id/x/y, links with source/target/key/
// travel_time/highway) and builds a Network. Segment ids are assigned
// sequentially in file order, so reloading the same file yields the same ids.
func LoadFromFile(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read graph file: %w", err)
	}
	n, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w", path, err)
	}
	return n, nil
}

// Parse builds a Network from node-link JSON bytes.
func Parse(data []byte) (*Network, error) {
	var wrapped struct {
		Graph struct {
			Nodes []struct {
				ID int64   `json:"id"`
				X  float64 `json:"x"` // longitude
				Y  float64 `json:"y"` // latitude
			} `json:"nodes"`
			Links []struct {
				Source     int64       `json:"source"`
				Target     int64       `json:"target"`
				Key        int         `json:"key"`
				TravelTime float64     `json:"travel_time"`
				Highway    interface{} `json:"highway"`
			} `json:"links"`
		} `json:"graph"`
	}

	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse graph JSON: %w", err)
	}

	nodes := make([]Node, 0, len(wrapped.Graph.Nodes))
	for _, n := range wrapped.Graph.Nodes {
		nodes = append(nodes, Node{ID: n.ID, Lat: n.Y, Lon: n.X})
	}

	segments := make([]Segment, 0, len(wrapped.Graph.Links))
	for i, l := range wrapped.Graph.Links {
		tt := l.TravelTime
		if tt <= 0 {
			tt = 60 // data gaps get a one-minute default
		}
		segments = append(segments, Segment{
			ID:         int64(i),
			From:       l.Source,
			To:         l.Target,
			Key:        l.Key,
			TravelTime: tt,
			Class:      parseHighway(l.Highway),
		})
	}

	return New(nodes, segments)
}

// parseHighway normalizes the OSM highway tag, which may be a string or a
// list of strings (the first entry wins).
func parseHighway(v interface{}) HighwayClass {
	switch h := v.(type) {
	case string:
		return normalizeClass(h)
	case []interface{}:
		if len(h) > 0 {
			if s, ok := h[0].(string); ok {
				return normalizeClass(s)
			}
		}
	}
	return ClassResidential
}

func normalizeClass(s string) HighwayClass {
	switch HighwayClass(s) {
	case ClassMotorway, ClassTrunk, ClassPrimary, ClassSecondary,
		ClassTertiary, ClassUnclassified, ClassResidential, ClassService:
		return HighwayClass(s)
	default:
		return ClassResidential
	}
}
