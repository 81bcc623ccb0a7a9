package cli

import (
	"github.com/spf13/cobra"

	flowio "github.com/matzehuels/flowtrim/pkg/io"
	"github.com/matzehuels/flowtrim/pkg/pipeline"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for flowtrim and write it to stdout.

  $ source <(flowtrim completion bash)
  $ flowtrim completion zsh > "${fpath[1]}/_flowtrim"
  $ flowtrim completion fish > ~/.config/fish/completions/flowtrim.fish
  PS> flowtrim completion powershell | Out-String | Invoke-Expression

Table arguments complete to .csv and .json files.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, out := cmd.Root(), c.Out
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

// completeTables completes table file arguments. Commands that take a
// single table stop completing after the first argument.
func completeTables(single bool) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if single && len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return []string{string(flowio.FormatCSV), string(flowio.FormatJSON)}, cobra.ShellCompDirectiveFilterFileExt
	}
}

// completeRenderFormats completes the --format flag of render.
func completeRenderFormats(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{pipeline.FormatSVG, pipeline.FormatDOT}, cobra.ShellCompDirectiveNoFileComp
}
