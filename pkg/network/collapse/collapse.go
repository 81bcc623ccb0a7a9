package collapse

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowtrim/pkg/network"
)

// Collapser runs the collapse stages over a private working copy of a
// network table. The input table is kept untouched as the read-only
// original used for drainage-area and length tie-breaks.
//
// Stages are exported so callers can run them individually; [Collapse]
// runs them all in pipeline order. A Collapser is single-use and not safe
// for concurrent use.
type Collapser struct {
	opts     Options
	orig     *network.Table
	work     *network.Table
	excluded map[int64]bool
	log      *log.Logger

	removed  []Removal
	warnings []string
}

// New prepares a collapser for t. The caller keeps ownership of t, which
// is never modified.
func New(t *network.Table, opts Options) (*Collapser, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	excluded := make(map[int64]bool, len(opts.Exclude))
	for _, id := range opts.Exclude {
		excluded[id] = true
	}
	return &Collapser{
		opts:     opts,
		orig:     t,
		work:     t.Clone(),
		excluded: excluded,
		log:      opts.Logger,
	}, nil
}

// Table returns the working table.
func (c *Collapser) Table() *network.Table { return c.work }

// Warnings returns the warnings raised so far.
func (c *Collapser) Warnings() []string { return c.warnings }

// Collapse runs every stage in order: outlets, headwaters, mainstem tops
// (only when MainstemThresh is set), mainstem chains, confluence chains
// and consistency repair. The input table is not modified.
//
// A [StuckLoopError] aborts the run; no partial result is returned.
func Collapse(t *network.Table, opts Options) (*Result, error) {
	c, err := New(t, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Stats.InputLength = t.TotalLength()

	steps := []struct {
		stage Stage
		run   func() ([]int64, error)
		count *int
	}{
		{StageOutlet, c.Outlets, &res.Stats.Outlets},
		{StageHeadwater, c.Headwaters, &res.Stats.Headwaters},
		{StageMainstemTop, c.MainstemTops, &res.Stats.MainstemTops},
		{StageMainstem, c.Mainstems, &res.Stats.Mainstems},
		{StageConfluence, c.Confluences, &res.Stats.Confluences},
	}
	for _, st := range steps {
		start := time.Now()
		ids, err := st.run()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.stage, err)
		}
		*st.count = len(ids)
		c.stageDone(st.stage, len(ids), start)
	}

	start := time.Now()
	rep, err := c.Repair()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageRepair, err)
	}
	c.stageDone(StageRepair, 0, start)
	res.Stats.PointersRepaired = rep.Pointers
	res.Stats.RowsDeduplicated = rep.Deduplicated

	for _, s := range c.work.Segments() {
		if s.JoinedFromCOMID == network.Terminal {
			res.Stats.TerminalOutlets++
		}
	}

	if c.opts.AddCategory {
		c.label()
	}

	res.Table = c.work
	res.Removed = c.removed
	res.Members = Members(c.work)
	res.Warnings = c.warnings
	res.Stats.OutputLength = c.work.TotalLength()
	return res, nil
}

// label writes the category of the first rule that removed each row.
func (c *Collapser) label() {
	for _, rm := range c.removed {
		s, ok := c.work.Get(rm.COMID)
		if !ok || s.Category != network.CategoryNone {
			continue
		}
		s.Category = rm.Stage.Category()
	}
}

func (c *Collapser) stageDone(stage Stage, removed int, start time.Time) {
	d := time.Since(start)
	c.log.Debug("collapse stage done", "stage", stage, "removed", removed, "duration", d)
	if c.opts.OnStage != nil {
		c.opts.OnStage(stage, removed, d)
	}
}

func (c *Collapser) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.warnings = append(c.warnings, msg)
	if c.opts.Warn {
		c.log.Warn(msg)
	}
}

func (c *Collapser) track(stage Stage, ids []int64) {
	for _, id := range ids {
		c.removed = append(c.removed, Removal{COMID: id, Stage: stage})
	}
}

// active returns the live segment for id if it exists and has not been
// removed.
func (c *Collapser) active(id int64) (*network.Segment, bool) {
	s, ok := c.work.Get(id)
	if !ok || s.Removed() {
		return nil, false
	}
	return s, true
}

// downstream returns the live segment s drains into, following removed
// rows through their provenance pointers.
func (c *Collapser) downstream(s *network.Segment) (*network.Segment, bool) {
	if !s.HasDownstream() {
		return nil, false
	}
	return c.active(c.work.Resolve(s.ToCOMID))
}

// removable reports whether s may be removed by a rule.
func (c *Collapser) removable(s *network.Segment) bool {
	return !s.Removed() && !c.excluded[s.COMID]
}

// pickAbsorber returns the live candidate with the largest original
// drainage area, then the largest original length, then the largest COMID.
func (c *Collapser) pickAbsorber(ids []int64) (*network.Segment, bool) {
	var cands []*network.Segment
	for _, id := range ids {
		if s, ok := c.active(id); ok {
			cands = append(cands, s)
		}
	}
	if len(cands) == 0 {
		return nil, false
	}
	return slices.MaxFunc(cands, c.compareAbsorbers), true
}

func (c *Collapser) compareAbsorbers(a, b *network.Segment) int {
	oa, ob := c.original(a), c.original(b)
	switch {
	case oa.TotDASqKM != ob.TotDASqKM:
		return cmpFloat(oa.TotDASqKM, ob.TotDASqKM)
	case oa.LengthKM != ob.LengthKM:
		return cmpFloat(oa.LengthKM, ob.LengthKM)
	case a.COMID < b.COMID:
		return -1
	case a.COMID > b.COMID:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	if a < b {
		return -1
	}
	return 1
}

// original returns the unmodified row for s.
func (c *Collapser) original(s *network.Segment) network.Segment {
	if o, ok := c.orig.Get(s.COMID); ok {
		return *o
	}
	return *s
}
