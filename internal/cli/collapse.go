package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowtrim/pkg/config"
	"github.com/matzehuels/flowtrim/pkg/errors"
	flowio "github.com/matzehuels/flowtrim/pkg/io"
	"github.com/matzehuels/flowtrim/pkg/pipeline"
)

// collapseFlags holds the algorithm flags shared by collapse and batch.
// Values from a config file apply unless the flag is set explicitly.
type collapseFlags struct {
	thresh         float64
	mainstemThresh float64
	addCategory    bool
	warn           bool
	refresh        bool
	exclude        []int64
}

func (f *collapseFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64VarP(&f.thresh, "thresh", "t", pipeline.DefaultThresh, "length threshold in km; shorter segments are collapsed")
	cmd.Flags().Float64Var(&f.mainstemThresh, "mainstem-thresh", 0, "threshold for mainstem rules in km (0 disables the mainstem-top pass)")
	cmd.Flags().BoolVar(&f.addCategory, "add-category", false, "write the removing rule to a category column")
	cmd.Flags().BoolVar(&f.warn, "warn", false, "log configuration warnings")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute even if a cached result exists")
	cmd.Flags().Int64SliceVar(&f.exclude, "exclude", nil, "COMIDs that are never removed (comma-separated)")
}

// options merges the config file with explicitly set flags.
func (f *collapseFlags) options(cmd *cobra.Command, cfg config.Collapse) pipeline.Options {
	opts := pipeline.Options{
		Thresh:         cfg.Thresh,
		MainstemThresh: cfg.MainstemThresh,
		AddCategory:    cfg.AddCategory,
		Warn:           cfg.Warn,
		Exclude:        cfg.Exclude,
		Refresh:        f.refresh,
	}
	flags := cmd.Flags()
	if flags.Changed("thresh") || opts.Thresh == 0 {
		opts.Thresh = f.thresh
	}
	if flags.Changed("mainstem-thresh") {
		opts.MainstemThresh = f.mainstemThresh
	}
	if flags.Changed("add-category") {
		opts.AddCategory = f.addCategory
	}
	if flags.Changed("warn") {
		opts.Warn = f.warn
	}
	if flags.Changed("exclude") {
		opts.Exclude = f.exclude
	}
	return opts
}

// collapseOpts holds the command-line flags for the collapse command.
type collapseOpts struct {
	collapseFlags
	output  string // output table path
	members string // members CSV path
}

// collapseCommand creates the collapse command.
func (c *CLI) collapseCommand() *cobra.Command {
	var opts collapseOpts

	cmd := &cobra.Command{
		Use:   "collapse [file]",
		Short: "Collapse short segments of a network table",
		Long: `Collapse reads a network table (CSV or JSON), merges segments shorter than the
threshold into their neighbours and writes the rewritten table.

Stages run in order: short outlets, short headwaters, mainstem tops (with
--mainstem-thresh), mainstem chains, confluence chains and a final pointer
repair. Removed rows stay in the output with zero length and provenance
pointers.`,
		Example: `  flowtrim collapse network.csv --thresh 0.5
  flowtrim collapse network.csv -o out.json --members members.csv --add-category`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeTables(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return c.runCollapse(cmd.Context(), args[0], opts.options(cmd, cfg.Collapse), cfg, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <input>_collapsed.<ext>)")
	cmd.Flags().StringVar(&opts.members, "members", "", "write the merge provenance to this CSV file")

	return cmd
}

func (c *CLI) runCollapse(ctx context.Context, input string, popts pipeline.Options, cfg config.Config, opts collapseOpts) error {
	if err := errors.ValidatePath(input); err != nil {
		return err
	}
	output := opts.output
	if output == "" {
		output = collapsedPath(input, "")
	}

	runner, err := c.newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	table, err := flowio.Import(input)
	if err != nil {
		return err
	}
	c.Logger.Debug("loaded table", "path", input, "segments", table.Len())

	res, err := runner.Execute(ctx, table, popts)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		c.ui().warning("%s", w)
	}

	if err := flowio.Export(res.Table, output); err != nil {
		return err
	}
	if opts.members != "" {
		if err := flowio.ExportMembers(res.Members, opts.members); err != nil {
			return err
		}
	}
	prog.done("collapsed table", "path", input)

	ui := c.ui()
	ui.success("Collapsed %s", StyleHighlight.Render(input))
	ui.stats(res.Stats.Segments, res.Stats.Removed, res.CacheInfo.CollapseHit)
	ui.stageCounts(res.Stats.Stats)
	ui.detail("length %.3f km → %.3f km", res.Stats.InputLength, res.Stats.OutputLength)
	ui.file(output)
	if opts.members != "" {
		ui.file(opts.members)
	}
	if res.Stats.Removed > 0 {
		ui.nextStep("Browse the merges", appName+" inspect "+input)
	}
	return nil
}

// collapsedPath derives the output path for input: dir/<name>_collapsed.<ext>.
// An empty dir keeps the input's directory.
func collapsedPath(input, dir string) string {
	ext := filepath.Ext(input)
	name := strings.TrimSuffix(filepath.Base(input), ext) + "_collapsed" + ext
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, name)
}

// validateThresholds rejects bad thresholds before any file is read.
func validateThresholds(opts pipeline.Options) error {
	if err := errors.ValidateThreshold("thresh", opts.Thresh, true); err != nil {
		return fmt.Errorf("--thresh: %w", err)
	}
	return errors.ValidateThreshold("mainstem_thresh", opts.MainstemThresh, false)
}
