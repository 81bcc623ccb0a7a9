package collapse

import (
	"github.com/matzehuels/flowtrim/pkg/network"
)

// Outlets merges short outlets into their largest upstream contributor
// until none remain. An outlet is a live segment whose toCOMID does not
// name a row of the table. Contributors are the live segments whose toCOMID
// named the outlet in the input table, so a sibling of an absorbed outlet
// never becomes a candidate for the absorber.
//
// The absorbing segment takes the outlet's length and its toCOMID, so it
// becomes the new outlet and is checked again on the next round. An outlet
// with nothing draining into it keeps its length and is marked with
// JoinedFromCOMID = Terminal.
//
// On a table that already carries provenance the stage warns and does
// nothing. It returns the removed COMIDs in removal order, or a
// [StuckLoopError] after [MaxOutletIterations] rounds.
func (c *Collapser) Outlets() ([]int64, error) {
	for _, s := range c.work.Segments() {
		if s.Joined() {
			c.warn("outlet collapse skipped: segment %d already carries merge provenance", s.COMID)
			return nil, nil
		}
	}

	orig := network.NewIndex(c.orig)
	var removed []int64
	for iter := 0; ; iter++ {
		short := c.shortOutlets()
		if len(short) == 0 {
			break
		}
		if iter == MaxOutletIterations {
			return nil, &StuckLoopError{Stage: StageOutlet, Iterations: iter}
		}

		for _, s := range short {
			u, ok := c.pickAbsorber(orig.Upstream(s.COMID))
			if !ok {
				s.JoinedFromCOMID = network.Terminal
				continue
			}
			c.mergeOutlet(s, u)
			removed = append(removed, s.COMID)
		}
	}

	c.track(StageOutlet, removed)
	return removed, nil
}

// shortOutlets returns live outlets below the threshold that have not been
// marked terminal.
func (c *Collapser) shortOutlets() []*network.Segment {
	var out []*network.Segment
	for _, s := range c.work.Segments() {
		if !c.removable(s) || s.Joined() || s.LengthKM >= c.opts.Thresh {
			continue
		}
		if s.HasDownstream() && c.work.Has(s.ToCOMID) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *Collapser) mergeOutlet(s, u *network.Segment) {
	u.LengthKM += s.LengthKM
	u.ToCOMID = s.ToCOMID

	s.LengthKM = 0
	s.ToCOMID = network.None
	s.JoinedFromCOMID = u.COMID

	for _, r := range c.work.Segments() {
		if r.JoinedFromCOMID == s.COMID {
			r.JoinedFromCOMID = u.COMID
		}
	}
}
