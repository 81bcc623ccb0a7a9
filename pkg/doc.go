// Package pkg provides the libraries behind flowtrim, a tool that
// simplifies river network tables by merging short flowline segments into
// their neighbours.
//
// # Overview
//
// The pkg directory is organized into four areas:
//
//  1. [network] - The segment table, adjacency index and the collapse stages
//  2. [io] - CSV and JSON table codecs
//  3. [pipeline] - Orchestration (validate → collapse → cache → render)
//  4. [cache], [config], [errors], [observability] - Supporting infrastructure
//
// # Architecture
//
// The typical data flow through flowtrim:
//
//	network table (CSV/JSON)
//	         ↓
//	    [io] package (decode rows)
//	         ↓
//	    [network/collapse] package (outlets → headwaters → chains → repair)
//	         ↓
//	    [render/nodelink] package (optional DOT/SVG)
//	         ↓
//	    collapsed table + member groups
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/flowtrim/pkg/io"
//	    "github.com/matzehuels/flowtrim/pkg/pipeline"
//	)
//
//	t, err := io.Import("flowlines.csv")
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, err := runner.Execute(context.Background(), t, pipeline.Options{Thresh: 1})
//	if err != nil {
//	    return err
//	}
//	err = io.Export(res.Table, "flowlines_collapsed.csv")
//
// # Sentinels
//
// toCOMID and the joined_* columns use two sentinel values: 0 for "no
// pointer" and -9999 for a chain that ends without a surviving segment.
// See [network.None] and [network.Terminal].
package pkg
