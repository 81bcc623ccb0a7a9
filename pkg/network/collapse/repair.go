package collapse

import (
	"github.com/matzehuels/flowtrim/pkg/network"
)

// RepairStats reports the work done by [Collapser.Repair].
type RepairStats struct {
	Pointers     int
	Deduplicated int
}

// Repair rewrites every pointer that still names a removed segment so it
// names the surviving segment at the end of the provenance chain:
// toCOMID on live rows, and joined_toCOMID and joined_fromCOMID on removed
// rows. A chain with no survivor becomes Terminal. Afterwards duplicate
// rows are dropped and the metric columns are recomputed.
//
// Each chain is followed with a visited set and at most one hop per row, so
// a provenance cycle is reported as a [StuckLoopError] naming the segment
// where it was found.
func (c *Collapser) Repair() (RepairStats, error) {
	var st RepairStats
	hops := c.work.Len()

	type update struct {
		field *int64
		value int64
	}
	var updates []update
	set := func(field *int64, value int64) {
		if *field != value {
			updates = append(updates, update{field, value})
		}
	}

	for _, s := range c.work.Segments() {
		if !s.Removed() {
			if !s.HasDownstream() || !c.work.Has(s.ToCOMID) {
				continue
			}
			r, err := c.resolve(s.ToCOMID, hops)
			if err != nil {
				return st, err
			}
			if r == s.COMID {
				r = network.None
			}
			set(&s.ToCOMID, r)
			continue
		}
		if s.JoinedToCOMID > 0 {
			r, err := c.resolve(s.JoinedToCOMID, hops)
			if err != nil {
				return st, err
			}
			set(&s.JoinedToCOMID, r)
		}
		if s.JoinedFromCOMID > 0 {
			r, err := c.resolve(s.JoinedFromCOMID, hops)
			if err != nil {
				return st, err
			}
			set(&s.JoinedFromCOMID, r)
		}
	}

	// Resolution reads pre-repair pointers, so writes wait until every
	// chain has been followed.
	for _, u := range updates {
		*u.field = u.value
	}
	st.Pointers = len(updates)
	st.Deduplicated = c.work.Dedupe()
	Annotate(c.work)
	return st, nil
}

// resolve follows provenance from id to a surviving segment.
func (c *Collapser) resolve(id int64, hops int) (int64, error) {
	seen := make(map[int64]bool)
	for n := 0; ; n++ {
		s, ok := c.work.Get(id)
		if !ok || !s.Removed() {
			return id, nil
		}
		if seen[id] || n > hops {
			return 0, &StuckLoopError{Stage: StageRepair, Iterations: n, COMID: id}
		}
		seen[id] = true
		id = s.Next()
		if id <= 0 {
			return network.Terminal, nil
		}
	}
}
