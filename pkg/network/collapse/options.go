package collapse

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowtrim/pkg/network"
)

// MaxOutletIterations bounds [Collapser.Outlets]. A short-outlet set that
// does not shrink within this many rounds means malformed input.
//
// The other fixed-point loops remove at least one row per pass and are
// bounded by the number of rows instead.
const MaxOutletIterations = 100

// Stage names one step of the collapse pipeline.
type Stage string

const (
	StageOutlet      Stage = "outlet"
	StageHeadwater   Stage = "headwater"
	StageMainstemTop Stage = "mainstem_top"
	StageMainstem    Stage = "mainstem"
	StageConfluence  Stage = "confluence"
	StageRepair      Stage = "repair"
)

// Category returns the label written to removed rows by this stage.
func (s Stage) Category() network.Category {
	switch s {
	case StageOutlet:
		return network.CategoryOutlet
	case StageHeadwater:
		return network.CategoryHeadwater
	case StageMainstemTop, StageMainstem:
		return network.CategoryMainstem
	case StageConfluence:
		return network.CategoryConfluence
	}
	return network.CategoryNone
}

var (
	// ErrStuckLoop is the cause of every [StuckLoopError].
	ErrStuckLoop = errors.New("collapse did not converge")

	// ErrInvalidThreshold is returned by [New] for a non-positive threshold.
	ErrInvalidThreshold = errors.New("threshold must be positive")
)

// StuckLoopError reports a fixed-point loop that failed to converge. It is
// fatal: the input network is malformed (usually cyclic) and must be fixed
// by the caller.
type StuckLoopError struct {
	Stage      Stage
	Iterations int
	// COMID is the segment where a pointer cycle was detected, if known.
	COMID int64
}

func (e *StuckLoopError) Error() string {
	if e.COMID != 0 {
		return fmt.Sprintf("%s stage stuck after %d iterations at segment %d", e.Stage, e.Iterations, e.COMID)
	}
	return fmt.Sprintf("%s stage stuck after %d iterations", e.Stage, e.Iterations)
}

// Unwrap returns ErrStuckLoop.
func (e *StuckLoopError) Unwrap() error { return ErrStuckLoop }

// Options configures a collapse run.
type Options struct {
	// Thresh is the primary length threshold in km. Segments strictly
	// shorter are candidates for removal. Required.
	Thresh float64

	// MainstemThresh is the threshold for mainstem rules in km. Zero
	// disables the mainstem-top pass and the chain pass falls back on
	// Thresh.
	MainstemThresh float64

	// AddCategory labels each removed row with the rule that removed it.
	AddCategory bool

	// Warn surfaces non-fatal configuration warnings through Logger.
	// Warnings are always collected in [Result.Warnings].
	Warn bool

	// Exclude lists COMIDs that are never removed by any rule. They may
	// still absorb neighbours.
	Exclude []int64

	// Logger receives stage-level debug output. Defaults to a discard logger.
	Logger *log.Logger

	// OnStage, if set, is called by [Collapse] after each stage with the
	// number of rows it removed and how long it took.
	OnStage func(stage Stage, removed int, d time.Duration)
}

func (o *Options) validate() error {
	if !(o.Thresh > 0) {
		return fmt.Errorf("%w: thresh = %v", ErrInvalidThreshold, o.Thresh)
	}
	if o.MainstemThresh < 0 {
		return fmt.Errorf("%w: mainstem_thresh = %v", ErrInvalidThreshold, o.MainstemThresh)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// mainstemThresh is the threshold used by the chain pass.
func (o *Options) mainstemThresh() float64 {
	if o.MainstemThresh > 0 {
		return o.MainstemThresh
	}
	return o.Thresh
}

// Removal records one segment removed by a stage.
type Removal struct {
	COMID int64 `json:"comid"`
	Stage Stage `json:"stage"`
}

// Result contains the rewritten table and what happened to it.
type Result struct {
	// Table is the collapsed network. Removed rows are still present with
	// zero length and provenance pointers.
	Table *network.Table

	// Removed lists removed segments in the order they were removed.
	Removed []Removal

	// Members maps each surviving segment to the segments merged into it.
	Members []Group

	// Warnings collects non-fatal configuration warnings.
	Warnings []string

	// Stats counts removals per stage and repair work.
	Stats Stats
}

// RemovedBy returns the COMIDs removed by stage, in removal order.
func (r *Result) RemovedBy(stage Stage) []int64 {
	var ids []int64
	for _, rm := range r.Removed {
		if rm.Stage == stage {
			ids = append(ids, rm.COMID)
		}
	}
	return ids
}

// Stats contains counters about a collapse run.
type Stats struct {
	// Outlets is the number of short outlets merged upstream.
	Outlets int `json:"outlets"`
	// TerminalOutlets is the number of short outlets left in place because
	// nothing drains into them.
	TerminalOutlets int `json:"terminal_outlets"`
	// Headwaters is the number of short headwaters merged downstream.
	Headwaters int `json:"headwaters"`
	// MainstemTops is the number of segments below confluences merged
	// downstream by the optional mainstem-top pass.
	MainstemTops int `json:"mainstem_tops"`
	// Mainstems is the number of short non-confluence segments absorbed
	// by their upstream neighbour.
	Mainstems int `json:"mainstems"`
	// Confluences is the number of short confluence segments absorbed.
	Confluences int `json:"confluences"`
	// PointersRepaired is the number of toCOMID and joined_* values
	// rewritten by repair.
	PointersRepaired int `json:"pointers_repaired"`
	// RowsDeduplicated is the number of duplicate rows dropped by repair.
	RowsDeduplicated int `json:"rows_deduplicated"`
	// InputLength and OutputLength are the summed LENGTHKM before and after.
	InputLength  float64 `json:"input_length_km"`
	OutputLength float64 `json:"output_length_km"`
}

// RemovedTotal returns the number of removed segments across all stages.
func (s Stats) RemovedTotal() int {
	return s.Outlets + s.Headwaters + s.MainstemTops + s.Mainstems + s.Confluences
}
