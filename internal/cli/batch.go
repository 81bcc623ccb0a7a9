package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	flowio "github.com/matzehuels/flowtrim/pkg/io"
	"github.com/matzehuels/flowtrim/pkg/pipeline"
)

// batchOpts holds the command-line flags for the batch command.
type batchOpts struct {
	collapseFlags
	outDir  string // output directory
	members bool   // also write <name>_members.csv
	jobs    int    // concurrent tables
}

// batchResult is the outcome for one input file.
type batchResult struct {
	input    string
	output   string
	segments int
	removed  int
	cached   bool
}

// batchCommand creates the batch command.
func (c *CLI) batchCommand() *cobra.Command {
	opts := batchOpts{jobs: runtime.GOMAXPROCS(0)}

	cmd := &cobra.Command{
		Use:   "batch [files...]",
		Short: "Collapse several network tables concurrently",
		Long: `Batch collapses independent network tables in parallel with the same options.
Each table is written to <out-dir>/<name>_collapsed.<ext>. The first failure
cancels the remaining tables.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeTables(false),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			popts := opts.options(cmd, cfg.Collapse)
			if err := validateThresholds(popts); err != nil {
				return err
			}

			runner, err := c.newRunner(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runner.Close()

			return c.runBatch(cmd.Context(), runner, args, popts, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "output directory (default: next to each input)")
	cmd.Flags().BoolVar(&opts.members, "members", false, "also write <name>_members.csv per table")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", opts.jobs, "number of tables processed concurrently")

	return cmd
}

func (c *CLI) runBatch(ctx context.Context, runner *pipeline.Runner, inputs []string, popts pipeline.Options, opts batchOpts) error {
	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Collapsing %d tables...", len(inputs)))
	spinner.w = c.Status
	spinner.Start()

	prog := newProgress(c.Logger)
	results := make([]batchResult, len(inputs))
	var finished atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.jobs, 1))
	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := c.collapseFile(ctx, runner, input, popts, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			results[i] = res
			n := finished.Add(1)
			spinner.Update(fmt.Sprintf("Collapsing tables... %d/%d", n, len(inputs)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		spinner.StopWithError("Batch failed")
		return err
	}
	spinner.Stop()
	prog.done("batch complete", "tables", len(inputs))

	ui := c.ui()
	ui.success("Collapsed %d tables", len(inputs))
	for _, r := range results {
		ui.info("%s", StyleHighlight.Render(r.input))
		ui.stats(r.segments, r.removed, r.cached)
		ui.file(r.output)
	}
	return nil
}

// collapseFile collapses one table file. popts is passed by value so each
// goroutine works on its own copy.
func (c *CLI) collapseFile(ctx context.Context, runner *pipeline.Runner, input string, popts pipeline.Options, opts batchOpts) (batchResult, error) {
	table, err := flowio.Import(input)
	if err != nil {
		return batchResult{}, err
	}
	res, err := runner.Execute(ctx, table, popts)
	if err != nil {
		return batchResult{}, err
	}

	output := collapsedPath(input, opts.outDir)
	if err := flowio.Export(res.Table, output); err != nil {
		return batchResult{}, err
	}
	if opts.members {
		if err := flowio.ExportMembers(res.Members, membersPath(output)); err != nil {
			return batchResult{}, err
		}
	}
	return batchResult{
		input:    input,
		output:   output,
		segments: res.Stats.Segments,
		removed:  res.Stats.Removed,
		cached:   res.CacheInfo.CollapseHit,
	}, nil
}

// membersPath turns dir/name_collapsed.ext into dir/name_members.csv.
func membersPath(output string) string {
	base := strings.TrimSuffix(output, filepath.Ext(output))
	return strings.TrimSuffix(base, "_collapsed") + "_members.csv"
}
