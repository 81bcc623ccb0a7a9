package collapse

import (
	"github.com/matzehuels/flowtrim/pkg/network"
)

// Group is one surviving segment and every segment merged into it.
type Group struct {
	// Survivor is the COMID of the segment that holds the merged length.
	Survivor int64 `json:"survivor"`
	// Members lists the survivor first, then the removed segments in table
	// order.
	Members []int64 `json:"members"`
}

// Members groups the removed rows of t by the surviving segment their
// provenance resolves to. Survivors that absorbed nothing are omitted.
// Groups are ordered by the survivor's position in the table.
func Members(t *network.Table) []Group {
	merged := make(map[int64][]int64)
	for _, s := range t.Segments() {
		if !s.Removed() {
			continue
		}
		r := t.Resolve(s.COMID)
		if r <= 0 || !t.Has(r) {
			continue
		}
		merged[r] = append(merged[r], s.COMID)
	}

	var groups []Group
	for _, s := range t.Segments() {
		ids, ok := merged[s.COMID]
		if !ok {
			continue
		}
		groups = append(groups, Group{
			Survivor: s.COMID,
			Members:  append([]int64{s.COMID}, ids...),
		})
	}
	return groups
}

// Survivors maps every COMID in groups to its survivor.
func Survivors(groups []Group) map[int64]int64 {
	m := make(map[int64]int64)
	for _, g := range groups {
		for _, id := range g.Members {
			m[id] = g.Survivor
		}
	}
	return m
}
