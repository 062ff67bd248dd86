package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), deps)
		},
	}
}

func runLogout(ctx context.Context, deps *Deps) error {
	wasSignedIn := deps.Session.State().IsAuthenticated

	// The local session is cleared even when the backend is unreachable
	deps.Session.Logout(ctx)

	if wasSignedIn {
		fmt.Fprintln(deps.Out, "✓ Logged out")
	} else {
		fmt.Fprintln(deps.Out, "Not signed in, stored credentials cleared")
	}
	return nil
}
