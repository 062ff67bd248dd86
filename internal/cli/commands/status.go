package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/apricopt/zoro-web/internal/cli/client"
	"github.com/apricopt/zoro-web/internal/session"
)

// statusView is what status prints. The token itself is never shown.
type statusView struct {
	Phase         session.Phase `json:"phase" yaml:"phase"`
	Authenticated bool          `json:"authenticated" yaml:"authenticated"`
	User          *client.User  `json:"user,omitempty" yaml:"user,omitempty"`
	API           string        `json:"api" yaml:"api"`
	TokenStored   bool          `json:"tokenStored" yaml:"token_stored"`
	TokenExpires  *time.Time    `json:"tokenExpires,omitempty" yaml:"token_expires,omitempty"`
}

func newStatusView(deps *Deps, s session.State) statusView {
	phase := s.Phase()
	if deps.Session.Phase() == session.PhaseUninitialized {
		phase = session.PhaseUninitialized
	}

	v := statusView{
		Phase:         phase,
		Authenticated: s.IsAuthenticated,
		User:          s.User,
		API:           deps.Client.BaseURL(),
		TokenStored:   deps.Client.Token() != "",
	}
	if s.Token != "" {
		if exp, ok := client.TokenExpiry(s.Token); ok {
			v.TokenExpires = &exp
		}
	}
	return v
}

func (v statusView) writeText(w io.Writer) error {
	switch {
	case v.Phase == session.PhaseUninitialized:
		fmt.Fprintf(w, "Session not checked (%s)\n", v.API)
		if v.TokenStored {
			fmt.Fprintln(w, "  A token is stored, run 'zoro status' to verify it")
		} else {
			fmt.Fprintln(w, "  No token stored")
		}
	case v.Phase == session.PhaseLoading:
		fmt.Fprintln(w, "Checking session...")
	case !v.Authenticated:
		fmt.Fprintf(w, "Not signed in (%s)\n", v.API)
	default:
		fmt.Fprintf(w, "Signed in to %s\n", v.API)
		if v.User != nil {
			fmt.Fprintf(w, "  User:     %s (%s)\n", displayName(v.User.Name, v.User.Email), v.User.Email)
			if v.User.Plan != "" {
				fmt.Fprintf(w, "  Plan:     %s\n", v.User.Plan)
			}
			if v.User.Provider != "" {
				fmt.Fprintf(w, "  Provider: %s\n", v.User.Provider)
			}
		}
		if v.TokenExpires != nil {
			fmt.Fprintf(w, "  Expires:  %s\n", v.TokenExpires.Local().Format(time.RFC1123))
		}
	}
	return nil
}

// NewStatusCmd creates the status command
func NewStatusCmd(deps *Deps) *cobra.Command {
	var format string
	var verify, watch, offline bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:         "status",
		Short:       "Show the current session",
		Annotations: map[string]string{SkipSessionAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if !offline {
				deps.Session.Initialize(cmd.Context())
			}
			if watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runStatusWatch(ctx, deps, format, interval)
			}
			return runStatus(cmd.Context(), deps, format, verify)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatText, "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&verify, "verify", false, "Refetch the user from the backend (signs out if the token was revoked)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and print every session change")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "How often --watch revalidates with the backend")
	cmd.Flags().BoolVar(&offline, "offline", false, "Report the stored session without contacting the backend")
	cmd.MarkFlagsMutuallyExclusive("offline", "verify")
	cmd.MarkFlagsMutuallyExclusive("offline", "watch")

	return cmd
}

func runStatus(ctx context.Context, deps *Deps, format string, verify bool) error {
	if verify {
		if err := deps.Session.RefreshUser(ctx); err != nil {
			fmt.Fprintf(errOut(deps), "Session rejected by backend: %v\n", err)
		}
	}

	view := newStatusView(deps, deps.Session.State())
	return render(deps.Out, format, view, view.writeText)
}

// runStatusWatch binds to the session like any other view and re-renders on
// every change until ctx is done
func runStatusWatch(ctx context.Context, deps *Deps, format string, interval time.Duration) error {
	binding := session.Bind(deps.Session, nil)
	defer binding.Close()

	show := func() error {
		view := newStatusView(deps, binding.Current())
		return render(deps.Out, format, view, view.writeText)
	}
	if err := show(); err != nil {
		return err
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-binding.Changed():
			if err := show(); err != nil {
				return err
			}
		case <-tick:
			// The refresh publishes through the session, the binding picks it up
			if err := binding.RefreshUser(ctx); err != nil {
				fmt.Fprintf(errOut(deps), "Session rejected by backend: %v\n", err)
			}
		}
	}
}
