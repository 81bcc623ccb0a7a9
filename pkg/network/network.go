package network

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Sentinel identifiers used in toCOMID and the joined_* provenance columns.
const (
	// None marks the absence of a pointer: no downstream segment, or no
	// provenance recorded yet.
	None int64 = 0

	// Terminal marks a chain that ends without a surviving segment. Short
	// outlets that have nothing to merge into carry it in JoinedFromCOMID.
	Terminal int64 = -9999
)

var (
	// ErrInvalidID is returned by [New] when a segment has a non-positive COMID.
	ErrInvalidID = errors.New("COMID must be positive")

	// ErrDuplicateID is returned by [New] when two rows share a COMID but
	// disagree on their attributes. Identical duplicate rows are collapsed.
	ErrDuplicateID = errors.New("conflicting duplicate COMID")

	// ErrNegativeLength is returned by [New] when LENGTHKM is negative.
	ErrNegativeLength = errors.New("LENGTHKM must not be negative")

	// ErrNegativeArea is returned by [New] when TotDASqKM is negative.
	ErrNegativeArea = errors.New("TotDASqKM must not be negative")

	// ErrNotFinite is returned by [New] when LENGTHKM or TotDASqKM is NaN
	// or infinite.
	ErrNotFinite = errors.New("LENGTHKM and TotDASqKM must be finite")

	// ErrSelfLoop is returned by [New] when a segment flows into itself.
	ErrSelfLoop = errors.New("segment flows into itself")

	// ErrNetworkHasCycle is returned by [Table.Validate] when following
	// toCOMID pointers revisits a segment.
	ErrNetworkHasCycle = errors.New("network contains a cycle")
)

// Category labels the rule that removed a segment.
type Category string

const (
	CategoryNone       Category = ""
	CategoryOutlet     Category = "outlet"
	CategoryHeadwater  Category = "headwater"
	CategoryMainstem   Category = "mainstem"
	CategoryConfluence Category = "confluence"
)

// Segment is one flowline row of the network table.
//
// COMID, TotDASqKM never change. ToCOMID, LengthKM and the joined_* columns
// are rewritten while the network is collapsed. The metric columns
// (NumUpstream, DSNumUpstream, DSLengthKM) are derived and refreshed by the
// collapse stages.
type Segment struct {
	COMID     int64   `json:"COMID"`
	ToCOMID   int64   `json:"toCOMID"`
	LengthKM  float64 `json:"LENGTHKM"`
	TotDASqKM float64 `json:"TotDASqKM"`

	// JoinedToCOMID is the downstream segment this one was merged into.
	JoinedToCOMID int64 `json:"joined_toCOMID,omitempty"`
	// JoinedFromCOMID is the upstream segment that absorbed this one, or
	// Terminal for a short outlet with nothing upstream.
	JoinedFromCOMID int64 `json:"joined_fromCOMID,omitempty"`

	NumUpstream   int     `json:"num_upstream,omitempty"`
	DSNumUpstream int     `json:"ds_num_upstream,omitempty"`
	DSLengthKM    float64 `json:"dsLENGTHKM,omitempty"`

	Category Category `json:"category,omitempty"`
}

// HasDownstream reports whether ToCOMID names another segment.
func (s Segment) HasDownstream() bool { return s.ToCOMID > 0 }

// Removed reports whether the segment was merged into a neighbour. Removed
// segments keep their row for provenance but carry no length or flow.
func (s Segment) Removed() bool {
	return s.JoinedToCOMID != None || s.JoinedFromCOMID > 0
}

// Joined reports whether any provenance column has been written, including
// the Terminal marker on isolated outlets.
func (s Segment) Joined() bool {
	return s.JoinedToCOMID != None || s.JoinedFromCOMID != None
}

// Table is the network table: one row per segment, indexed by COMID.
// Row order is the insertion order of [New] and is preserved by every
// operation so outputs are deterministic.
//
// The zero value is not usable - use New. Table is not safe for concurrent
// use without external synchronization.
type Table struct {
	rows  []*Segment
	index map[int64]*Segment
}

// New builds a table from rows. Identical duplicate rows are collapsed to
// one; duplicates that disagree return ErrDuplicateID.
func New(rows []Segment) (*Table, error) {
	t := &Table{index: make(map[int64]*Segment, len(rows))}
	for _, r := range rows {
		if err := check(r); err != nil {
			return nil, fmt.Errorf("segment %d: %w", r.COMID, err)
		}
		if prev, ok := t.index[r.COMID]; ok {
			if *prev != r {
				return nil, fmt.Errorf("segment %d: %w", r.COMID, ErrDuplicateID)
			}
			continue
		}
		seg := r
		t.rows = append(t.rows, &seg)
		t.index[seg.COMID] = &seg
	}
	return t, nil
}

func check(s Segment) error {
	switch {
	case s.COMID <= 0:
		return ErrInvalidID
	case !finite(s.LengthKM) || !finite(s.TotDASqKM):
		return ErrNotFinite
	case s.LengthKM < 0:
		return ErrNegativeLength
	case s.TotDASqKM < 0:
		return ErrNegativeArea
	case s.ToCOMID == s.COMID:
		return ErrSelfLoop
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Get returns the segment with the given COMID. The pointer refers to the
// live row, so modifications affect the table.
func (t *Table) Get(id int64) (*Segment, bool) {
	s, ok := t.index[id]
	return s, ok
}

// Has reports whether a segment with the given COMID exists.
func (t *Table) Has(id int64) bool {
	_, ok := t.index[id]
	return ok
}

// Segments returns the live rows in insertion order.
func (t *Table) Segments() []*Segment { return t.rows }

// Rows returns a copy of every row in insertion order.
func (t *Table) Rows() []Segment {
	out := make([]Segment, len(t.rows))
	for i, s := range t.rows {
		out[i] = *s
	}
	return out
}

// IDs returns every COMID in insertion order.
func (t *Table) IDs() []int64 {
	ids := make([]int64, len(t.rows))
	for i, s := range t.rows {
		ids[i] = s.COMID
	}
	return ids
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		rows:  make([]*Segment, len(t.rows)),
		index: make(map[int64]*Segment, len(t.rows)),
	}
	for i, s := range t.rows {
		seg := *s
		c.rows[i] = &seg
		c.index[seg.COMID] = &seg
	}
	return c
}

// TotalLength sums LENGTHKM over every row.
func (t *Table) TotalLength() float64 {
	var sum float64
	for _, s := range t.rows {
		sum += s.LengthKM
	}
	return sum
}

// MaxLength returns the longest LENGTHKM, or 0 for an empty table.
func (t *Table) MaxLength() float64 {
	var m float64
	for _, s := range t.rows {
		m = max(m, s.LengthKM)
	}
	return m
}

// Active returns the rows that have not been removed.
func (t *Table) Active() []*Segment {
	var out []*Segment
	for _, s := range t.rows {
		if !s.Removed() {
			out = append(out, s)
		}
	}
	return out
}

// Dedupe drops any row whose COMID already appeared earlier in the table
// and rebuilds the index. It returns the number of rows dropped.
func (t *Table) Dedupe() int {
	seen := make(map[int64]bool, len(t.rows))
	before := len(t.rows)
	t.rows = slices.DeleteFunc(t.rows, func(s *Segment) bool {
		if seen[s.COMID] {
			return true
		}
		seen[s.COMID] = true
		return false
	})
	t.index = make(map[int64]*Segment, len(t.rows))
	for _, s := range t.rows {
		t.index[s.COMID] = s
	}
	return before - len(t.rows)
}

// Validate walks toCOMID pointers of non-removed rows and returns
// ErrNetworkHasCycle if any walk revisits a segment. Pointers to COMIDs
// outside the table are treated as leaving the network.
//
// Cycle detection runs in O(N) using white/gray/black colouring.
func (t *Table) Validate() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[int64]int, len(t.rows))
	for _, start := range t.rows {
		if color[start.COMID] != white {
			continue
		}
		var path []int64
		cur := start
		for cur != nil && color[cur.COMID] == white {
			color[cur.COMID] = gray
			path = append(path, cur.COMID)
			next, ok := t.index[cur.ToCOMID]
			if !ok || next.Removed() {
				cur = nil
				break
			}
			if color[next.COMID] == gray {
				return fmt.Errorf("%w: through segment %d", ErrNetworkHasCycle, next.COMID)
			}
			cur = next
		}
		for _, id := range path {
			color[id] = black
		}
	}
	return nil
}
