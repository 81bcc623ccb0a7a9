// Package pipeline runs network collapses with caching and observability.
//
// This package wraps [collapse.Collapse] for the CLI, the batch command and
// the HTTP server so they share defaults, cache keys and metrics. By
// centralizing this logic every entry point produces the same result for
// the same table and options.
//
// # Stages
//
// A run consists of two steps:
//
//  1. Collapse: run the collapse stages over the input table
//  2. Render (optional): draw the collapsed table as DOT or SVG
//
// Both steps are cached by content: the key is the SHA-256 hash of the
// input table (see [cache.Hash]) combined with the options that change the
// output.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	res, err := runner.Execute(ctx, table, pipeline.Options{Thresh: 1})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Stats.Removed, "segments removed")
//
// Render the result:
//
//	svg, err := runner.Render(ctx, res.Table, pipeline.RenderOptions{Format: pipeline.FormatSVG})
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowtrim/pkg/cache"
	"github.com/matzehuels/flowtrim/pkg/errors"
	"github.com/matzehuels/flowtrim/pkg/network"
	"github.com/matzehuels/flowtrim/pkg/network/collapse"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API, and Batch
// =============================================================================

const (
	// DefaultThresh is the length threshold in km the CLI and config file
	// start from.
	DefaultThresh = 1.0

	// TTLCollapse is how long results stay cached unless the runner is
	// configured otherwise.
	TTLCollapse = 7 * 24 * time.Hour
)

// Output format constants.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
)

// ValidFormats lists the render formats.
var ValidFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
}

// =============================================================================
// Options
// =============================================================================

// Options configures a collapse run. Thresh is required.
type Options struct {
	// Thresh is the length threshold in km. Segments strictly shorter are
	// candidates for removal.
	Thresh float64 `json:"thresh"`

	// MainstemThresh enables the mainstem-top pass and sets the threshold
	// of the mainstem chain pass. Zero disables it.
	MainstemThresh float64 `json:"mainstem_thresh,omitempty"`

	// AddCategory writes the removing rule to each removed row.
	AddCategory bool `json:"add_category,omitempty"`

	// Warn logs configuration warnings as they are raised.
	Warn bool `json:"warn,omitempty"`

	// Exclude lists COMIDs that are never removed.
	Exclude []int64 `json:"exclude,omitempty"`

	// Refresh bypasses cache reads. The fresh result is still stored.
	Refresh bool `json:"-"`

	// Logger receives progress output. Defaults to the runner's logger.
	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks the options and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := errors.ValidateThreshold("thresh", o.Thresh, true); err != nil {
		return err
	}
	if err := errors.ValidateThreshold("mainstem_thresh", o.MainstemThresh, false); err != nil {
		return err
	}
	if err := errors.ValidateCOMIDs(o.Exclude); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// CollapseOptions converts to the options of [collapse.Collapse].
func (o *Options) CollapseOptions() collapse.Options {
	return collapse.Options{
		Thresh:         o.Thresh,
		MainstemThresh: o.MainstemThresh,
		AddCategory:    o.AddCategory,
		Warn:           o.Warn,
		Exclude:        o.Exclude,
		Logger:         o.Logger,
	}
}

// CollapseKeyOpts returns cache key options for a collapse result.
// Warn and Logger do not change the result and are left out.
func (o *Options) CollapseKeyOpts() cache.CollapseKeyOpts {
	return cache.CollapseKeyOpts{
		Thresh:         o.Thresh,
		MainstemThresh: o.MainstemThresh,
		AddCategory:    o.AddCategory,
		Exclude:        o.Exclude,
	}
}

// RenderOptions configures [Runner.Render].
type RenderOptions struct {
	// Format is FormatDOT or FormatSVG. Defaults to FormatSVG.
	Format string

	// ShowRemoved draws removed segments next to the survivors.
	ShowRemoved bool

	// Detailed adds length and drainage area to node labels.
	Detailed bool
}

// ValidateAndSetDefaults checks the format and applies defaults.
func (o *RenderOptions) ValidateAndSetDefaults() error {
	if o.Format == "" {
		o.Format = FormatSVG
	}
	return ValidateFormat(o.Format)
}

// RenderKeyOpts returns cache key options for a rendered artifact.
func (o *RenderOptions) RenderKeyOpts() cache.RenderKeyOpts {
	return cache.RenderKeyOpts{
		Format:      o.Format,
		ShowRemoved: o.ShowRemoved,
		Detailed:    o.Detailed,
	}
}

// ValidateFormat checks that a render format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: dot, svg)", format)
	}
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Result contains the output of a collapse run.
type Result struct {
	// Table is the collapsed network.
	Table *network.Table

	// Members groups removed segments under the survivor that absorbed
	// them.
	Members []collapse.Group

	// Removed lists removed segments in removal order.
	Removed []collapse.Removal

	// Warnings collects configuration warnings raised by the run.
	Warnings []string

	// TableHash is the content hash of the input table.
	TableHash string

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains timing and size information about a run.
type Stats struct {
	collapse.Stats

	// Segments is the number of rows in the input table.
	Segments int `json:"segments"`
	// Removed is the number of segments removed across all stages.
	Removed int `json:"removed"`
	// Duration is the wall time of the run, including cache access.
	Duration time.Duration `json:"duration"`
}

// CacheInfo reports which steps were served from cache.
type CacheInfo struct {
	CollapseHit bool // Whether the collapse result came from cache
	RenderHit   bool // Whether the rendered artifact came from cache
}

// String formats the info for log lines.
func (c CacheInfo) String() string {
	return fmt.Sprintf("collapse=%t render=%t", c.CollapseHit, c.RenderHit)
}
