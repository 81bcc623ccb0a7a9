package collapse

import (
	"slices"

	"github.com/matzehuels/flowtrim/pkg/network"
)

// eligibleFunc selects segments to merge into their downstream neighbour.
// d is the live downstream segment of s.
type eligibleFunc func(s, d *network.Segment, idx *network.Index) bool

// Headwaters merges short headwaters, segments with nothing draining into
// them, into their downstream neighbour. A confluence takes at most one
// headwater: once it has absorbed one, the remaining headwaters that join
// it are left alone so the confluence does not collapse into a head.
func (c *Collapser) Headwaters() ([]int64, error) {
	removed, err := c.reconcile(StageHeadwater, true, func(s, d *network.Segment, idx *network.Index) bool {
		return idx.NumUpstream(s.COMID) == 0 && s.LengthKM < c.opts.Thresh
	})
	if err != nil {
		return nil, err
	}
	c.track(StageHeadwater, removed)
	return removed, nil
}

// MainstemTops merges short segments that sit directly below a confluence
// and directly above a non-confluence stretch into the next segment down.
// It only runs when Options.MainstemThresh is set.
func (c *Collapser) MainstemTops() ([]int64, error) {
	if c.opts.MainstemThresh <= 0 {
		return nil, nil
	}
	removed, err := c.reconcile(StageMainstemTop, false, func(s, d *network.Segment, idx *network.Index) bool {
		return idx.NumUpstream(s.COMID) > 1 &&
			idx.NumUpstream(d.COMID) == 1 &&
			s.LengthKM < c.opts.MainstemThresh
	})
	if err != nil {
		return nil, err
	}
	c.track(StageMainstemTop, removed)
	return removed, nil
}

// reconcile repeatedly merges every eligible segment into its downstream
// neighbour until a pass finds nothing to do.
//
// Each pass works from one index snapshot. A segment whose neighbour is
// merged in the same pass still records the neighbour it saw, and its
// length follows the neighbour's own merge; repair collapses the pointer
// chain later.
func (c *Collapser) reconcile(stage Stage, oneHeadPerConfluence bool, eligible eligibleFunc) ([]int64, error) {
	var removed []int64
	captured := make(map[int64]bool)
	limit := c.work.Len() + 1

	for pass := 0; ; pass++ {
		if pass == limit {
			return nil, &StuckLoopError{Stage: stage, Iterations: pass}
		}

		idx := network.NewIndex(c.work)
		into := make(map[int64]*network.Segment)
		var order []*network.Segment
		for _, s := range c.work.Segments() {
			if !c.removable(s) {
				continue
			}
			d, ok := c.downstream(s)
			if !ok || !eligible(s, d, idx) {
				continue
			}
			into[s.COMID] = d
			order = append(order, s)
		}
		if oneHeadPerConfluence {
			order = c.limitHeadwaters(order, into, idx, captured)
		}
		if len(order) == 0 {
			break
		}

		for _, s := range order {
			c.target(s.COMID, into).LengthKM += s.LengthKM
		}
		for _, s := range order {
			s.JoinedToCOMID = into[s.COMID].COMID
			s.LengthKM = 0
			s.ToCOMID = network.None
			removed = append(removed, s.COMID)
		}
	}
	return removed, nil
}

// target follows same-pass merges from id to the segment that ends up
// holding its length.
func (c *Collapser) target(id int64, into map[int64]*network.Segment) *network.Segment {
	seen := map[int64]bool{id: true}
	d := into[id]
	for {
		next, ok := into[d.COMID]
		if !ok || seen[d.COMID] {
			return d
		}
		seen[d.COMID] = true
		d = next
	}
}

// limitHeadwaters keeps at most one headwater per confluence. Candidates
// are grouped by target; a confluence target already captured in an
// earlier pass drops its group, and a contested target keeps only the
// tie-break winner.
func (c *Collapser) limitHeadwaters(order []*network.Segment, into map[int64]*network.Segment, idx *network.Index, captured map[int64]bool) []*network.Segment {
	groups := make(map[int64][]int64)
	for _, s := range order {
		d := into[s.COMID].COMID
		groups[d] = append(groups[d], s.COMID)
	}

	keep := make(map[int64]bool, len(order))
	for d, ids := range groups {
		if captured[d] {
			continue
		}
		if idx.NumUpstream(d) > 1 {
			captured[d] = true
		}
		w, _ := c.pickAbsorber(ids)
		keep[w.COMID] = true
	}

	return slices.DeleteFunc(order, func(s *network.Segment) bool {
		if keep[s.COMID] {
			return false
		}
		delete(into, s.COMID)
		return true
	})
}
