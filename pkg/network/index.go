package network

import "slices"

// Index is an adjacency snapshot of a table: for every non-removed segment,
// its effective downstream neighbour and the set of segments draining into
// it. Build a fresh Index after mutating the table; it does not track
// later changes.
type Index struct {
	downstream map[int64]int64
	upstream   map[int64][]int64
}

// NewIndex builds the adjacency index of t. A toCOMID that names a removed
// segment is followed through that segment's provenance pointers (see
// [Table.Resolve]) so counts stay correct before pointers are rewritten.
func NewIndex(t *Table) *Index {
	x := &Index{
		downstream: make(map[int64]int64, len(t.rows)),
		upstream:   make(map[int64][]int64),
	}
	for _, s := range t.rows {
		if s.Removed() || !s.HasDownstream() {
			continue
		}
		ds := t.Resolve(s.ToCOMID)
		if ds <= 0 || ds == s.COMID {
			continue
		}
		x.downstream[s.COMID] = ds
		x.upstream[ds] = append(x.upstream[ds], s.COMID)
	}
	for id := range x.upstream {
		slices.Sort(x.upstream[id])
	}
	return x
}

// Downstream returns the effective downstream COMID of id, or None.
// The result may name a COMID outside the table.
func (x *Index) Downstream(id int64) int64 { return x.downstream[id] }

// Upstream returns the sorted COMIDs draining directly into id. The slice
// must not be modified.
func (x *Index) Upstream(id int64) []int64 { return x.upstream[id] }

// NumUpstream returns the number of segments draining directly into id.
func (x *Index) NumUpstream(id int64) int { return len(x.upstream[id]) }

// Resolve follows provenance pointers from id until it reaches a segment
// that has not been removed. JoinedToCOMID takes precedence over
// JoinedFromCOMID when a removed row carries both. COMIDs outside the
// table resolve to themselves. A chain that ends without a survivor
// resolves to Terminal, and a chain that loops resolves to None.
func (t *Table) Resolve(id int64) int64 {
	seen := make(map[int64]bool)
	for {
		s, ok := t.index[id]
		if !ok || !s.Removed() {
			return id
		}
		if seen[id] {
			return None
		}
		seen[id] = true
		id = s.Next()
		if id <= 0 {
			return Terminal
		}
	}
}

// Next returns the provenance pointer a removed segment is resolved
// through: JoinedToCOMID when set, otherwise JoinedFromCOMID.
func (s Segment) Next() int64 {
	if s.JoinedToCOMID != None {
		return s.JoinedToCOMID
	}
	return s.JoinedFromCOMID
}
