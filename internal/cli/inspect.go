package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	flowio "github.com/matzehuels/flowtrim/pkg/io"
)

// inspectOpts holds the command-line flags for the inspect command.
type inspectOpts struct {
	collapseFlags
	focus int64 // COMID to select on start
	plain bool  // print the groups instead of starting the browser
}

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var opts inspectOpts

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Browse which segments were merged into which",
		Long: `Inspect collapses a network table with the given options and opens an
interactive browser of the merge provenance: every surviving segment with the
segments merged into it, their original lengths and the rule that removed them.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeTables(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			popts := opts.options(cmd, cfg.Collapse)
			// Categories are needed for the Rules column.
			popts.AddCategory = true

			runner, err := c.newRunner(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runner.Close()

			table, err := flowio.Import(args[0])
			if err != nil {
				return err
			}
			res, err := runner.Execute(cmd.Context(), table, popts)
			if err != nil {
				return err
			}

			model := NewMembersModel(res.Members, table, res.Table)
			if opts.focus != 0 && !model.Focus(res.Members, opts.focus) {
				c.ui().warning("segment %d was not merged", opts.focus)
			}
			if opts.plain {
				c.printMembers(model)
				return nil
			}
			return runBrowser(cmd.Context(), model)
		},
	}

	opts.register(cmd)
	cmd.Flags().Int64Var(&opts.focus, "comid", 0, "select the group containing this COMID")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print the groups instead of opening the browser")

	return cmd
}

func runBrowser(ctx context.Context, m MembersModel) error {
	_, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

// printMembers writes one line per group: survivor, then merged COMIDs.
func (c *CLI) printMembers(m MembersModel) {
	for _, r := range m.Rows {
		fmt.Fprintf(c.Out, "%d", r.Survivor)
		for _, p := range r.Parts[1:] {
			fmt.Fprintf(c.Out, " %d", p.COMID)
		}
		fmt.Fprintln(c.Out)
	}
}

var _ tea.Model = MembersModel{}
