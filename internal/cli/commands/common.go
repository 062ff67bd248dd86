package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/apricopt/zoro-web/internal/cli/client"
	"github.com/apricopt/zoro-web/internal/config"
	"github.com/apricopt/zoro-web/internal/handoff"
	"github.com/apricopt/zoro-web/internal/session"
)

// Deps carries what commands share. The root command fills it in once
// before any command runs; tests build it directly.
type Deps struct {
	Config   *config.Config
	Client   *client.Client
	Session  *session.Manager
	Launcher handoff.Launcher
	Out      io.Writer
	// Err receives interactive prompts, keeping Out parseable
	Err io.Writer
}

func errOut(deps *Deps) io.Writer {
	if deps.Err == nil {
		return os.Stderr
	}
	return deps.Err
}

// nopWriteCloser lets prompts write to a writer they must not close
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// errNotAuthenticated is returned by commands that need a signed-in session
var errNotAuthenticated = errors.New("not authenticated. Please run 'zoro login' first")

// requireSession returns the session state, or an error when signed out
func requireSession(deps *Deps) (session.State, error) {
	state := deps.Session.State()
	if !state.IsAuthenticated {
		return state, errNotAuthenticated
	}
	return state, nil
}

// Output formats accepted by -o
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateFormat(format string) error {
	switch strings.ToLower(format) {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use text, json or yaml)", format)
	}
}

// render writes v as json or yaml, or calls text for the human format
func render(out io.Writer, format string, v any, text func(io.Writer) error) error {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(out)
	}
}

// describeError turns client errors into messages a terminal user can act on
func describeError(action string, err error) error {
	var connErr *client.ConnectionError
	var authErr *client.AuthenticationError
	var reqErr *client.RequestError
	var valErr *client.ValidationError

	switch {
	case errors.As(err, &valErr):
		return err
	case errors.As(err, &connErr):
		return fmt.Errorf("%s: %w", action, connErr)
	case errors.As(err, &authErr):
		return fmt.Errorf("%s: %s", action, authErr.Message)
	case errors.As(err, &reqErr):
		return fmt.Errorf("%s (status %d): %s", action, reqErr.Status, reqErr.Message)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}
