package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewProfilesCmd creates the profiles command
func NewProfilesCmd(deps *Deps) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"ls"},
		Short:   "List your browser profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			return runProfiles(cmd.Context(), deps, format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatText, "Output format: text, json or yaml")

	return cmd
}

func runProfiles(ctx context.Context, deps *Deps, format string) error {
	if _, err := requireSession(deps); err != nil {
		return err
	}

	profiles, err := deps.Client.Profiles(ctx)
	if err != nil {
		return describeError("failed to list profiles", err)
	}

	return render(deps.Out, format, profiles, func(w io.Writer) error {
		if len(profiles) == 0 {
			fmt.Fprintln(w, "No profiles found.")
			fmt.Fprintln(w, "\nCreate profiles in the desktop app: zoro open")
			return nil
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tBROWSER\tSTATUS\tLAST USED")
		fmt.Fprintln(tw, "────\t───────\t──────\t─────────")

		for _, p := range profiles {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				p.Name,
				p.Browser,
				p.Status,
				p.LastUsed,
			)
		}

		return tw.Flush()
	})
}
