// Package risk provides the hour-indexed historical risk lookup.
//
// Risk values come from a precomputed table keyed by (node, hour-of-day) and
// range 0–10. The table is read-only after load and safe for unlimited
// concurrent readers.
package risk

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

const (
	// FallbackMissing is returned for (node, hour) pairs absent from the
	// table: mildly elevated, reflecting absent data rather than danger.
	FallbackMissing = 1.0

	// FallbackUnavailable is returned for every query when the table failed
	// to load: more conservative, reflecting total uncertainty.
	FallbackUnavailable = 2.0
)

type key struct {
	node int64
	hour int
}

// Store holds the historical risk table.
type Store struct {
	records   map[key]float64
	available bool
}

// NewUnavailable returns a store representing a failed load. Every query
// answers FallbackUnavailable.
func NewUnavailable() *Store {
	return &Store{available: false}
}

// NewFromRecords builds a store from explicit node → per-hour risk entries.
func NewFromRecords(entries map[int64][24]float64) *Store {
	s := &Store{records: make(map[key]float64), available: true}
	for node, hours := range entries {
		for h, v := range hours {
			s.records[key{node, h}] = v
		}
	}
	return s
}

// Load reads the hourly risk CSV (header: node_id,hour,precomputed_risk).
// A missing or unreadable file is an error; the caller should fall back to
// NewUnavailable rather than abort.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open risk data: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse reads risk records from CSV data. Malformed rows are skipped.
func Parse(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	s := &Store{records: make(map[key]float64), available: true}
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not parse risk data: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == "node_id" {
				continue // header
			}
		}
		if len(row) < 3 {
			continue
		}
		node, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		hour, err := strconv.Atoi(row[1])
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		v, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			continue
		}
		s.records[key{node, hour}] = v
	}
	return s, nil
}

// RiskAt returns the historical risk for a node at the given hour (0–23).
// Missing records and unavailable stores answer with the documented fallbacks
// rather than errors.
func (s *Store) RiskAt(nodeID int64, hour int) float64 {
	if s == nil || !s.available {
		return FallbackUnavailable
	}
	if v, ok := s.records[key{nodeID, hour}]; ok {
		return v
	}
	return FallbackMissing
}

// Len returns the number of loaded records.
func (s *Store) Len() int {
	return len(s.records)
}

// Available reports whether the table loaded successfully.
func (s *Store) Available() bool {
	return s != nil && s.available
}
