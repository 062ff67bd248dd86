// Package handoff passes a session token to the desktop application through
// its registered custom URL scheme.
package handoff

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// DefaultCallbackURL is the desktop application's registered callback
const DefaultCallbackURL = "browsermanager://callback"

// URL builds the handoff URL <callback>?token=<token>
func URL(callback, token string) (string, error) {
	if callback == "" {
		callback = DefaultCallbackURL
	}

	u, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("invalid callback URL %q: %w", callback, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("invalid callback URL %q: missing scheme", callback)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Launcher hands a URL to whatever the environment has registered for it
type Launcher interface {
	Open(url string) error
}

// LauncherFunc adapts a function to Launcher
type LauncherFunc func(url string) error

func (f LauncherFunc) Open(url string) error {
	return f(url)
}

// SystemLauncher opens URLs with the platform's default handler
type SystemLauncher struct{}

// Open opens the URL based on OS
func (SystemLauncher) Open(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
