// Package collapse simplifies a river network by merging short segments
// into their neighbours.
//
// # Stages
//
// [Collapse] runs the stages in a fixed order over a private copy of the
// input table:
//
//  1. [Collapser.Outlets]: short outlets merge into their largest upstream
//     contributor, repeatedly, so the absorber becomes the new outlet.
//  2. [Collapser.Headwaters]: short headwaters merge into their downstream
//     neighbour, at most one per confluence.
//  3. [Collapser.MainstemTops]: when a mainstem threshold is set, short
//     segments directly below a confluence merge downstream.
//  4. [Collapser.Mainstems]: short non-confluence segments are absorbed by
//     their single upstream neighbour.
//  5. [Collapser.Confluences]: short confluences are absorbed by their
//     largest contributor and every contributor is rerouted past them.
//  6. [Collapser.Repair]: pointers into removed rows are rewritten to the
//     surviving segment and derived columns are recomputed.
//
// # Removal
//
// Rows are never deleted. A removed row keeps its COMID and drainage area,
// has zero length and no toCOMID, and records where its length went in
// joined_toCOMID (merged downstream) or joined_fromCOMID (absorbed by an
// upstream segment). Total length is conserved, and [Members] reports which
// original segments make up each survivor.
//
// Ties between absorbing candidates go to the largest drainage area, then
// the largest length, both read from the unmodified input, then the
// largest COMID.
//
// # Thresholds
//
// All comparisons are strict: a segment exactly as long as the threshold
// is kept.
package collapse
