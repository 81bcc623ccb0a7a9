package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/flowtrim/pkg/network"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds length and drainage area to node labels.
	// When false, only the COMID is shown.
	Detailed bool

	// ShowRemoved draws removed segments with dashed outlines and a dotted
	// edge to the segment they were merged into. When false, removed
	// segments are left out.
	ShowRemoved bool
}

// categoryColors fills removed segments by the rule that removed them.
var categoryColors = map[network.Category]string{
	network.CategoryOutlet:     "lightcoral",
	network.CategoryHeadwater:  "lightblue",
	network.CategoryMainstem:   "palegreen",
	network.CategoryConfluence: "khaki",
}

// ToDOT converts a network table to Graphviz DOT format. Edges follow
// toCOMID, so outlets end up at the bottom of the diagram. Pointers to
// COMIDs outside the table are not drawn.
//
// The resulting DOT string can be rendered using [RenderSVG].
func ToDOT(t *network.Table, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, s := range t.Segments() {
		if s.Removed() && !opts.ShowRemoved {
			continue
		}
		attrs := fmtAttrs(*s, fmtLabel(*s, opts.Detailed))
		fmt.Fprintf(&buf, "  %q [%s];\n", nodeID(s.COMID), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, s := range t.Segments() {
		switch {
		case !s.Removed():
			if t.Has(s.ToCOMID) {
				fmt.Fprintf(&buf, "  %q -> %q;\n", nodeID(s.COMID), nodeID(s.ToCOMID))
			}
		case opts.ShowRemoved:
			if next := s.Next(); t.Has(next) {
				fmt.Fprintf(&buf, "  %q -> %q [style=dotted, arrowhead=empty];\n", nodeID(s.COMID), nodeID(next))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeID(id int64) string { return strconv.FormatInt(id, 10) }

func fmtLabel(s network.Segment, detailed bool) string {
	id := nodeID(s.COMID)
	if !detailed {
		return id
	}
	return fmt.Sprintf("%s\n%.3g km\n%.4g km²", id, s.LengthKM, s.TotDASqKM)
}

func fmtAttrs(s network.Segment, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if s.Removed() {
		fill, ok := categoryColors[s.Category]
		if !ok {
			fill = "lightgrey"
		}
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor="+fill, "fontcolor=black")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one
// that scales cleanly when embedded.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
