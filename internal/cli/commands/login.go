package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCmd creates the login command
func NewLoginCmd(deps *Deps) *cobra.Command {
	var email, password, token string
	var desktop, google bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to your Browser Manager account",
		Long: `Sign in with email and password, or with Google.

Google sign-in happens in the browser: run 'zoro login --google', finish
signing in, then pass the token from the callback page's address bar to
'zoro login --token <token>'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case google:
				return runGoogleLogin(deps)
			case token != "":
				return runTokenLogin(cmd.Context(), deps, token, desktop)
			default:
				return runLogin(cmd.Context(), deps, email, password, desktop)
			}
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set ZORO_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set ZORO_PASSWORD, will prompt if not provided)")
	cmd.Flags().BoolVar(&desktop, "desktop", false, "Open the desktop app with the new session after signing in")
	cmd.Flags().BoolVar(&google, "google", false, "Start Google sign-in in the browser")
	cmd.Flags().StringVar(&token, "token", "", "Adopt a token issued by Google sign-in")
	cmd.MarkFlagsMutuallyExclusive("google", "token")
	cmd.MarkFlagsMutuallyExclusive("google", "email")
	cmd.MarkFlagsMutuallyExclusive("token", "email")
	cmd.MarkFlagsMutuallyExclusive("token", "password")

	return cmd
}

func runLogin(ctx context.Context, deps *Deps, email, password string, desktop bool) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("ZORO_EMAIL")
	}
	if password == "" {
		password = os.Getenv("ZORO_PASSWORD")
	}

	// Validate email
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or ZORO_EMAIL env var)")
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		p, err := readPassword(errOut(deps), "Password: ")
		if err != nil {
			return err
		}
		password = p
	}

	fmt.Fprintf(deps.Out, "Signing in to %s...\n", deps.Client.BaseURL())

	if err := deps.Session.Login(ctx, email, password); err != nil {
		return describeError("login failed", err)
	}

	loginSucceeded(deps, desktop)
	return nil
}

// runGoogleLogin opens the backend's Google sign-in page. The browser ends on
// the web callback page, which carries the token for --token.
func runGoogleLogin(deps *Deps) error {
	url := deps.Client.GoogleOAuthURL()

	if err := deps.Launcher.Open(url); err != nil {
		fmt.Fprintf(deps.Out, "Could not open a browser (%v). Open this URL to continue:\n  %s\n", err, url)
	} else {
		fmt.Fprintf(deps.Out, "Opened %s in your browser.\n", url)
	}
	fmt.Fprintln(deps.Out, "After signing in, copy the token from the callback page and run:")
	fmt.Fprintln(deps.Out, "  zoro login --token <token>")
	return nil
}

// runTokenLogin adopts a token delivered by Google sign-in
func runTokenLogin(ctx context.Context, deps *Deps, token string, desktop bool) error {
	fmt.Fprintf(deps.Out, "Verifying token with %s...\n", deps.Client.BaseURL())

	if err := deps.Session.HandleOAuthCallback(ctx, token); err != nil {
		return describeError("login failed", err)
	}

	loginSucceeded(deps, desktop)
	return nil
}

func loginSucceeded(deps *Deps, desktop bool) {
	state := deps.Session.State()
	fmt.Fprintln(deps.Out, "✓ Login successful!")
	if state.User != nil {
		fmt.Fprintf(deps.Out, "  User: %s (%s)\n", displayName(state.User.Name, state.User.Email), state.User.Email)
	}

	if desktop {
		openDesktop(deps)
	}
}

// Terminal access, replaced in tests
var (
	stdinIsTerminal = func() bool { return term.IsTerminal(int(syscall.Stdin)) }
	readSecret      = func() ([]byte, error) { return term.ReadPassword(int(syscall.Stdin)) }
)

// readPassword prompts on w and reads a password without echo. It fails when
// stdin is not a terminal.
func readPassword(w io.Writer, prompt string) (string, error) {
	if !stdinIsTerminal() {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or ZORO_PASSWORD env var)")
	}

	fmt.Fprint(w, prompt)
	bytePassword, err := readSecret()
	fmt.Fprintln(w) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
