package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewHealthCmd creates the health command. It runs without initializing the
// session, so it can diagnose a backend the session cannot reach.
func NewHealthCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:         "health",
		Short:       "Check the backend and the stored token",
		Annotations: map[string]string{SkipSessionAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.Context(), deps)
		},
	}
}

// SkipSessionAnnotation marks commands that must run before (or without) session initialization
const SkipSessionAnnotation = "zoro/skip-session"

func runHealth(ctx context.Context, deps *Deps) error {
	fmt.Fprintf(deps.Out, "Backend: %s\n", deps.Client.BaseURL())

	status, err := deps.Client.Health(ctx)
	if err != nil {
		fmt.Fprintf(deps.Out, "  ✗ %v\n", err)
		return fmt.Errorf("backend unhealthy")
	}
	fmt.Fprintf(deps.Out, "  ✓ %s\n", status.Status)

	switch {
	case deps.Client.Token() == "":
		fmt.Fprintln(deps.Out, "Token:   none stored")
	case !deps.Client.IsTokenValid():
		// Checked before the backend call, which clears an invalid token
		if err := deps.Client.ClearToken(); err != nil {
			fmt.Fprintf(deps.Out, "Token:   ✗ older than 7 days, failed to clear: %v\n", err)
			return fmt.Errorf("failed to clear expired token: %w", err)
		}
		fmt.Fprintln(deps.Out, "Token:   ✗ older than 7 days, cleared")
	case deps.Client.IsTokenValidWithBackend(ctx):
		fmt.Fprintln(deps.Out, "Token:   ✓ accepted by backend")
	default:
		fmt.Fprintln(deps.Out, "Token:   ✗ rejected by backend, cleared")
	}

	return nil
}
