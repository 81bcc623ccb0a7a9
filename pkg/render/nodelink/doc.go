// Package nodelink renders river networks as node-link diagrams.
//
// Every segment is a box and every toCOMID pointer an arrow, so water flows
// from the top of the diagram to the outlets at the bottom. After a
// collapse, removed segments can be drawn alongside the survivors:
//
//	dot := nodelink.ToDOT(res.Table, nodelink.Options{ShowRemoved: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Removed segments get a dashed outline, a fill colour for the rule that
// removed them (when the table carries categories) and a dotted arrow to
// the segment that absorbed them.
//
// SVG rendering runs Graphviz in-process through
// [github.com/goccy/go-graphviz]; the DOT text can also be fed to the dot
// command directly.
package nodelink
