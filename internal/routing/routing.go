// Package routing computes safety-aware shortest paths over the road network.
package routing

import (
	"container/heap"
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/saaj376/SafeTrace/internal/fusion"
	"github.com/saaj376/SafeTrace/internal/geo"
	"github.com/saaj376/SafeTrace/internal/network"
	"github.com/saaj376/SafeTrace/internal/traces"
)

// ErrNoPath is returned when the destination is unreachable from the origin.
var ErrNoPath = errors.New("no path between origin and destination")

// Route is a computed path from origin to destination.
type Route struct {
	Mode       fusion.Mode      `json:"mode"`
	NodeIDs    []int64          `json:"node_ids"`
	Waypoints  []geo.Coordinate `json:"waypoints"`
	SegmentIDs []int64          `json:"segment_ids"`
	TotalCost  float64          `json:"total_cost"`
	DistanceKm float64          `json:"distance_km"`
}

// Finder prices edges through the fusion engine and runs shortest-path
// searches over the network.
type Finder struct {
	net    *network.Network
	engine *fusion.Engine
	now    func() time.Time
}

// NewFinder creates a route finder.
func NewFinder(net *network.Network, engine *fusion.Engine) *Finder {
	return &Finder{net: net, engine: engine, now: time.Now}
}

// Route computes the cheapest path for the mode between two coordinates.
// Both endpoints are snapped to the nearest network node; coordinates outside
// the coverage area return network.ErrOutOfCoverage.
func (f *Finder) Route(ctx context.Context, origin, destination geo.Coordinate, mode fusion.Mode) (*Route, error) {
	ctx, span := traces.StartSpan(ctx, "routing.Route", traces.Mode(string(mode)))
	defer span.End()

	src, err := f.net.Snap(origin.Lat, origin.Lon)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "origin outside coverage")
		return nil, err
	}
	dst, err := f.net.Snap(destination.Lat, destination.Lon)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "destination outside coverage")
		return nil, err
	}
	span.SetAttributes(traces.NodeID(src), attribute.Int64("node.dst_id", dst))

	// Price every segment once up front so the search sees a consistent
	// snapshot even while crowd and feedback signals keep moving.
	hour := f.now().Hour()
	weights := make(map[int64]float64, f.net.NumSegments())
	for _, seg := range f.net.Segments() {
		weights[seg.ID] = f.engine.Cost(seg, mode, hour)
	}

	nodes, cost, err := f.shortestPath(ctx, src, dst, weights)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shortest-path search failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("route.nodes", len(nodes)))
	return f.assemble(mode, nodes, cost), nil
}

// shortestPath runs Dijkstra from src to dst over the pre-priced segments.
func (f *Finder) shortestPath(ctx context.Context, src, dst int64, weights map[int64]float64) ([]int64, float64, error) {
	dist := map[int64]float64{src: 0}
	prev := make(map[int64]int64)
	done := make(map[int64]bool)

	pq := &nodeQueue{{node: src, cost: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		cur := heap.Pop(pq).(*nodeItem)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == dst {
			break
		}

		for _, seg := range f.net.Outgoing(cur.node) {
			if done[seg.To] {
				continue
			}
			next := cur.cost + weights[seg.ID]
			if best, seen := dist[seg.To]; !seen || next < best {
				dist[seg.To] = next
				prev[seg.To] = cur.node
				heap.Push(pq, &nodeItem{node: seg.To, cost: next})
			}
		}
	}

	total, reached := dist[dst]
	if !reached || !done[dst] {
		return nil, 0, ErrNoPath
	}

	var nodes []int64
	for at := dst; ; {
		nodes = append(nodes, at)
		if at == src {
			break
		}
		at = prev[at]
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return nodes, total, nil
}

// assemble materializes waypoints, segment ids, and distance for a node path.
func (f *Finder) assemble(mode fusion.Mode, nodes []int64, cost float64) *Route {
	r := &Route{
		Mode:       mode,
		NodeIDs:    nodes,
		Waypoints:  make([]geo.Coordinate, 0, len(nodes)),
		SegmentIDs: make([]int64, 0, len(nodes)-1),
		TotalCost:  cost,
	}
	for _, id := range nodes {
		if c, ok := f.net.Coords(id); ok {
			r.Waypoints = append(r.Waypoints, c)
		}
	}
	for i := 0; i+1 < len(nodes); i++ {
		if seg, ok := f.net.SegmentBetween(nodes[i], nodes[i+1]); ok {
			r.SegmentIDs = append(r.SegmentIDs, seg.ID)
		}
	}
	r.DistanceKm = geo.PathLengthKm(r.Waypoints)
	return r
}

// nodeItem is a priority-queue entry. Ties on cost break toward the lower
// node id so searches are deterministic.
type nodeItem struct {
	node int64
	cost float64
}

type nodeQueue []*nodeItem

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].node < q[j].node
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(*nodeItem)) }

func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
