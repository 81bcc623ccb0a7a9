package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	flowio "github.com/matzehuels/flowtrim/pkg/io"
	"github.com/matzehuels/flowtrim/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output      string // output file path; "-" writes to stdout
	format      string // dot or svg
	detailed    bool   // show length and area in labels
	showRemoved bool   // draw removed segments and their provenance
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Draw a network table as a node-link diagram",
		Long: `Render draws a network table (typically a collapsed one) with Graphviz.
Arrows follow toCOMID. With --show-removed, removed segments are drawn dashed
and linked to the segment that absorbed them.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeTables(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format == "" {
				opts.format = formatFromPath(opts.output)
			}
			if err := pipeline.ValidateFormat(opts.format); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <input>.<format>, - for stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: svg (default), dot")
	_ = cmd.RegisterFlagCompletionFunc("format", completeRenderFormats)
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show length and drainage area in labels")
	cmd.Flags().BoolVar(&opts.showRemoved, "show-removed", false, "draw removed segments")

	return cmd
}

// formatFromPath picks the render format from an output extension.
func formatFromPath(path string) string {
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); pipeline.ValidFormats[ext] {
		return ext
	}
	return pipeline.FormatSVG
}

func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	table, err := flowio.Import(input)
	if err != nil {
		return err
	}

	data, cached, err := runner.Render(ctx, table, pipeline.RenderOptions{
		Format:      opts.format,
		ShowRemoved: opts.showRemoved,
		Detailed:    opts.detailed,
	})
	if err != nil {
		return err
	}
	c.Logger.Debug("rendered table", "format", opts.format, "bytes", len(data), "cached", cached)

	if opts.output == "-" {
		_, err := c.Out.Write(data)
		return err
	}
	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "." + opts.format
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	c.ui().success("Rendered %s", StyleHighlight.Render(input))
	c.ui().file(output)
	return nil
}
