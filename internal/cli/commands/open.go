package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewOpenCmd creates the open command
func NewOpenCmd(deps *Deps) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the desktop app signed in with this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(deps, printOnly)
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the handoff URL instead of opening it")

	return cmd
}

func runOpen(deps *Deps, printOnly bool) error {
	if _, err := requireSession(deps); err != nil {
		return err
	}

	if printOnly {
		u, ok := deps.Session.HandoffURL()
		if !ok {
			return fmt.Errorf("could not build the desktop callback URL, check ZORO_CALLBACK_URL")
		}
		fmt.Fprintln(deps.Out, u)
		return nil
	}

	openDesktop(deps)
	return nil
}

// openDesktop hands the session to the desktop app. A failed launch is only
// logged by the session, so tell the user where to look.
func openDesktop(deps *Deps) {
	fmt.Fprintln(deps.Out, "Opening Browser Manager...")
	deps.Session.RedirectToDesktop()
	fmt.Fprintln(deps.Out, "If the desktop app doesn't open, check that it is installed and try again.")
}
