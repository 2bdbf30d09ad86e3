// Package network holds the immutable road-network model: the directed
// multigraph of intersections and segments, stable segment identifiers, and
// nearest-node coordinate snapping.
//
// The topology is read-only after load; no locking is required for readers.
package network

import (
	"errors"
	"fmt"
	"sort"

	"github.com/saaj376/SafeTrace/internal/geo"
)

// ErrOutOfCoverage is returned when coordinates fall outside the network's
// bounding box (plus tolerance) or the network has no nodes. The same input
// will keep failing; callers should surface it as a client error.
var ErrOutOfCoverage = errors.New("coordinates outside network coverage")

// SnapTolerance is the bounding-box buffer, in degrees, within which
// coordinates are still snapped to the nearest node (~1km).
const SnapTolerance = 0.01

// HighwayClass categorizes a segment's road type.
type HighwayClass string

const (
	ClassMotorway     HighwayClass = "motorway"
	ClassTrunk        HighwayClass = "trunk"
	ClassPrimary      HighwayClass = "primary"
	ClassSecondary    HighwayClass = "secondary"
	ClassTertiary     HighwayClass = "tertiary"
	ClassUnclassified HighwayClass = "unclassified"
	ClassResidential  HighwayClass = "residential"
	ClassService      HighwayClass = "service"
)

// Bucket maps the highway class onto five road-size buckets, largest first:
// 0 motorway/trunk, 1 primary, 2 secondary, 3 tertiary/unclassified,
// 4 residential/service (and anything unrecognized).
func (h HighwayClass) Bucket() int {
	switch h {
	case ClassMotorway, ClassTrunk:
		return 0
	case ClassPrimary:
		return 1
	case ClassSecondary:
		return 2
	case ClassTertiary, ClassUnclassified:
		return 3
	default:
		return 4
	}
}

// Node is a road intersection.
type Node struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Segment is a single directed edge instance. Parallel edges between the same
// node pair are distinguished by Key. Identity is immutable after load; only
// scores derived elsewhere (shadow, feedback) change over time.
type Segment struct {
	ID         int64        `json:"id"`
	From       int64        `json:"from"`
	To         int64        `json:"to"`
	Key        int          `json:"key"`
	TravelTime float64      `json:"travelTime"` // seconds
	Class      HighwayClass `json:"class"`
}

// Bounds is the network's coordinate bounding box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point lies inside the box expanded by tol degrees.
func (b Bounds) Contains(lat, lon, tol float64) bool {
	return lat >= b.MinLat-tol && lat <= b.MaxLat+tol &&
		lon >= b.MinLon-tol && lon <= b.MaxLon+tol
}

// Network is the loaded road graph. Construct with New; read-only afterwards.
type Network struct {
	nodes    map[int64]Node
	nodeIDs  []int64 // sorted, for deterministic scans
	out      map[int64][]*Segment
	segments map[int64]*Segment
	all      []*Segment // ordered by segment id
	bounds   Bounds
}

// New builds a Network from nodes and segments. Segment ids must already be
// assigned (the loader assigns them sequentially in file order); New rejects
// duplicates so ids stay unique for the lifetime of the network.
func New(nodes []Node, segments []Segment) (*Network, error) {
	if len(nodes) == 0 {
		return nil, errors.New("network has no nodes")
	}

	n := &Network{
		nodes:    make(map[int64]Node, len(nodes)),
		out:      make(map[int64][]*Segment),
		segments: make(map[int64]*Segment, len(segments)),
	}

	n.bounds = Bounds{MinLat: nodes[0].Lat, MaxLat: nodes[0].Lat, MinLon: nodes[0].Lon, MaxLon: nodes[0].Lon}
	for _, node := range nodes {
		if !(geo.Coordinate{Lat: node.Lat, Lon: node.Lon}).Valid() {
			return nil, fmt.Errorf("node %d has out-of-range coordinates (%v, %v)", node.ID, node.Lat, node.Lon)
		}
		n.nodes[node.ID] = node
		n.nodeIDs = append(n.nodeIDs, node.ID)
		if node.Lat < n.bounds.MinLat {
			n.bounds.MinLat = node.Lat
		}
		if node.Lat > n.bounds.MaxLat {
			n.bounds.MaxLat = node.Lat
		}
		if node.Lon < n.bounds.MinLon {
			n.bounds.MinLon = node.Lon
		}
		if node.Lon > n.bounds.MaxLon {
			n.bounds.MaxLon = node.Lon
		}
	}
	sort.Slice(n.nodeIDs, func(i, j int) bool { return n.nodeIDs[i] < n.nodeIDs[j] })

	for i := range segments {
		seg := segments[i]
		if _, dup := n.segments[seg.ID]; dup {
			return nil, fmt.Errorf("duplicate segment id %d", seg.ID)
		}
		if _, ok := n.nodes[seg.From]; !ok {
			return nil, fmt.Errorf("segment %d references unknown node %d", seg.ID, seg.From)
		}
		if _, ok := n.nodes[seg.To]; !ok {
			return nil, fmt.Errorf("segment %d references unknown node %d", seg.ID, seg.To)
		}
		if seg.TravelTime < 0 {
			return nil, fmt.Errorf("segment %d has negative travel time", seg.ID)
		}
		sp := &seg
		n.segments[seg.ID] = sp
		n.out[seg.From] = append(n.out[seg.From], sp)
		n.all = append(n.all, sp)
	}

	// Deterministic adjacency order: by destination, then parallel index.
	for _, adj := range n.out {
		sort.Slice(adj, func(i, j int) bool {
			if adj[i].To != adj[j].To {
				return adj[i].To < adj[j].To
			}
			return adj[i].Key < adj[j].Key
		})
	}
	sort.Slice(n.all, func(i, j int) bool { return n.all[i].ID < n.all[j].ID })

	return n, nil
}

// Snap finds the node nearest to the given coordinates. Coordinates beyond the
// bounding box plus SnapTolerance are rejected with ErrOutOfCoverage rather
// than clamped; clamping would silently move the caller's intended origin.
func (n *Network) Snap(lat, lon float64) (int64, error) {
	if n == nil || len(n.nodeIDs) == 0 {
		return 0, ErrOutOfCoverage
	}
	if !n.bounds.Contains(lat, lon, SnapTolerance) {
		return 0, fmt.Errorf("point (%.4f, %.4f): %w", lat, lon, ErrOutOfCoverage)
	}

	best := n.nodeIDs[0]
	bestDist := geo.DistanceMeters(lat, lon, n.nodes[best].Lat, n.nodes[best].Lon)
	for _, id := range n.nodeIDs[1:] {
		node := n.nodes[id]
		if d := geo.DistanceMeters(lat, lon, node.Lat, node.Lon); d < bestDist {
			best = id
			bestDist = d
		}
	}
	return best, nil
}

// Node returns the node with the given id.
func (n *Network) Node(id int64) (Node, bool) {
	node, ok := n.nodes[id]
	return node, ok
}

// Coords returns the coordinates of a node.
func (n *Network) Coords(id int64) (geo.Coordinate, bool) {
	node, ok := n.nodes[id]
	if !ok {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Lat: node.Lat, Lon: node.Lon}, true
}

// Outgoing returns the segments leaving a node, ordered by (destination, key).
// The returned slice is shared; callers must not modify it.
func (n *Network) Outgoing(id int64) []*Segment {
	return n.out[id]
}

// Segment returns the segment with the given stable id.
func (n *Network) Segment(id int64) (*Segment, bool) {
	seg, ok := n.segments[id]
	return seg, ok
}

// SegmentBetween returns the segment from u to v with the lowest parallel-edge
// index. The tie-break is arbitrary but stable, so repeated extractions of the
// same path attribute the same segment ids.
func (n *Network) SegmentBetween(u, v int64) (*Segment, bool) {
	for _, seg := range n.out[u] {
		if seg.To == v {
			return seg, true // adjacency is sorted by (To, Key); first hit is lowest key
		}
	}
	return nil, false
}

// Segments returns all segments ordered by id. The slice is shared; callers
// must not modify it.
func (n *Network) Segments() []*Segment {
	return n.all
}

// Bounds returns the coordinate bounding box of the network.
func (n *Network) Bounds() Bounds {
	return n.bounds
}

// NumNodes returns the node count.
func (n *Network) NumNodes() int {
	return len(n.nodes)
}

// NumSegments returns the segment count.
func (n *Network) NumSegments() int {
	return len(n.all)
}
