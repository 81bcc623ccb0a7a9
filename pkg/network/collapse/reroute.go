package collapse

import (
	"github.com/matzehuels/flowtrim/pkg/network"
)

// Mainstems removes short segments that are not confluences by letting
// their single upstream neighbour absorb them. The neighbour is rerouted
// past the removed segment and takes its length.
//
// A segment is removed when it is live, not excluded, has exactly one
// upstream contributor and a positive length below the mainstem threshold
// (Options.MainstemThresh, or Thresh when unset). Chains of short segments
// collapse over several passes.
func (c *Collapser) Mainstems() ([]int64, error) {
	limit := c.opts.mainstemThresh()
	return c.rerouteLoop(StageMainstem, func(idx *network.Index) map[int64][]int64 {
		groups := make(map[int64][]int64)
		for _, s := range c.work.Segments() {
			if s.Removed() {
				continue
			}
			d, ok := c.downstream(s)
			if !ok || !c.removable(d) || idx.NumUpstream(d.COMID) != 1 || !shorter(d, limit) {
				continue
			}
			groups[d.COMID] = []int64{s.COMID}
		}
		return groups
	})
}

// Confluences removes short confluence segments with a positive length.
// Every contributor is rerouted past the confluence and the one with the
// largest original drainage area, then length, then COMID absorbs its
// length.
func (c *Collapser) Confluences() ([]int64, error) {
	return c.rerouteLoop(StageConfluence, func(idx *network.Index) map[int64][]int64 {
		groups := make(map[int64][]int64)
		for _, d := range c.work.Segments() {
			if !c.removable(d) || !shorter(d, c.opts.Thresh) || idx.NumUpstream(d.COMID) < 2 {
				continue
			}
			groups[d.COMID] = idx.Upstream(d.COMID)
		}
		return groups
	})
}

// shorter reports whether d has a positive length below limit. Zero-length
// segments carry nothing to merge and stay in place.
func shorter(d *network.Segment, limit float64) bool {
	return d.LengthKM > 0 && d.LengthKM < limit
}

// rerouteLoop applies the groups returned by collect until it returns
// none. A group maps the segment to remove to the live segments that drain
// into it.
func (c *Collapser) rerouteLoop(stage Stage, collect func(*network.Index) map[int64][]int64) ([]int64, error) {
	var removed []int64
	limit := c.work.Len() + 1
	for pass := 0; ; pass++ {
		if pass == limit {
			return nil, &StuckLoopError{Stage: stage, Iterations: pass}
		}
		groups := deferChained(collect(network.NewIndex(c.work)))
		if len(groups) == 0 {
			break
		}
		removed = append(removed, c.reroute(groups)...)
	}
	c.track(stage, removed)
	return removed, nil
}

// deferChained drops every group whose removed segment is also an upstream
// member of another group. It is handled on a later pass, once its
// neighbour is gone.
func deferChained(groups map[int64][]int64) map[int64][]int64 {
	member := make(map[int64]bool)
	for _, ups := range groups {
		for _, u := range ups {
			member[u] = true
		}
	}
	for d := range groups {
		if member[d] {
			delete(groups, d)
		}
	}
	return groups
}

// reroute points every member of each group past its removed segment and
// credits the removed length to one canonical absorber. It returns the
// removed COMIDs in table order.
func (c *Collapser) reroute(groups map[int64][]int64) []int64 {
	absorber := make(map[int64]*network.Segment, len(groups))
	for d, ups := range groups {
		u, ok := c.pickAbsorber(ups)
		if !ok {
			continue
		}
		absorber[d] = u
	}

	var removed []int64
	for _, d := range c.work.Segments() {
		u, ok := absorber[d.COMID]
		if !ok {
			continue
		}
		u.LengthKM += d.LengthKM
		for _, id := range groups[d.COMID] {
			if s, ok := c.active(id); ok {
				s.ToCOMID = d.ToCOMID
			}
		}
		d.LengthKM = 0
		d.ToCOMID = network.None
		d.JoinedFromCOMID = u.COMID
		removed = append(removed, d.COMID)
	}
	return removed
}
