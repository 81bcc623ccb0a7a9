// Package network provides the flowline attribute table that flowtrim
// rewrites.
//
// # Overview
//
// A river network is a forest of segments. Each [Segment] has a unique
// COMID, at most one downstream neighbour (toCOMID), a length in km and the
// total upstream drainage area. The [Table] keeps rows in insertion order
// and indexes them by COMID.
//
// # Removal
//
// Segments are never deleted. A segment merged into a neighbour keeps its
// row with zero length, a cleared toCOMID and a provenance pointer:
//
//   - JoinedToCOMID: merged into the downstream neighbour
//   - JoinedFromCOMID: absorbed by an upstream neighbour
//
// [Table.Resolve] follows those pointers to the surviving segment.
//
// # Adjacency
//
// [NewIndex] snapshots the downstream and upstream relations of the
// surviving segments. Pointers into removed rows are resolved on the way,
// so upstream counts are right even before toCOMID values are repaired.
//
//	t, _ := network.New(rows)
//	idx := network.NewIndex(t)
//	idx.NumUpstream(confluence) // 2
package network
