package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/apricopt/zoro-web/internal/cli/auth"
	"github.com/apricopt/zoro-web/internal/cli/client"
	"github.com/apricopt/zoro-web/internal/config"
	"github.com/apricopt/zoro-web/internal/handoff"
	"github.com/apricopt/zoro-web/internal/releases"
	"github.com/apricopt/zoro-web/internal/session"
)

// fakeAPI answers like the browser manager backend for one account:
// a@b.com / secret123 with token "abc"
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req client.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "a@b.com" || req.Password != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid email or password"}`))
			return
		}
		w.Write([]byte(`{"token":"abc"}`))
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"1","email":"a@b.com","name":"Ann","plan":"free"}`))
	})
	mux.HandleFunc("/api/profiles", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"p1","name":"Work","browser":"chrome","status":"active"}]`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type launches struct{ urls []string }

func (l *launches) Open(url string) error {
	l.urls = append(l.urls, url)
	return nil
}

func newDeps(t *testing.T, baseURL string) (*Deps, *bytes.Buffer, *launches) {
	t.Helper()

	out := &bytes.Buffer{}
	launcher := &launches{}
	c := client.New(baseURL, auth.NewMemory())
	m := session.NewManager(c, launcher, session.WithLogger(zerolog.Nop()))
	m.Initialize(context.Background())

	return &Deps{
		Config:   &config.Config{},
		Client:   c,
		Session:  m,
		Launcher: launcher,
		Out:      out,
		Err:      io.Discard,
	}, out, launcher
}

func TestRunLogin(t *testing.T) {
	srv := fakeAPI(t)

	t.Run("email required", func(t *testing.T) {
		t.Setenv("ZORO_EMAIL", "")
		deps, _, _ := newDeps(t, srv.URL)

		err := runLogin(context.Background(), deps, "", "x", false)
		assert.EqualError(t, err, "email is required (use --email flag or ZORO_EMAIL env var)")
	})

	t.Run("success with desktop handoff", func(t *testing.T) {
		deps, out, launcher := newDeps(t, srv.URL)

		require.NoError(t, runLogin(context.Background(), deps, "a@b.com", "secret123", true))

		assert.Contains(t, out.String(), "✓ Login successful!")
		assert.Contains(t, out.String(), "User: Ann (a@b.com)")
		assert.Equal(t, []string{"browsermanager://callback?token=abc"}, launcher.urls)
	})

	t.Run("credentials from environment", func(t *testing.T) {
		t.Setenv("ZORO_EMAIL", "a@b.com")
		t.Setenv("ZORO_PASSWORD", "secret123")
		deps, _, _ := newDeps(t, srv.URL)

		require.NoError(t, runLogin(context.Background(), deps, "", "", false))
		assert.True(t, deps.Session.State().IsAuthenticated)
	})

	t.Run("rejected", func(t *testing.T) {
		deps, _, _ := newDeps(t, srv.URL)

		err := runLogin(context.Background(), deps, "a@b.com", "wrong", false)
		assert.EqualError(t, err, "login failed: Invalid email or password")
		assert.False(t, deps.Session.State().IsAuthenticated)
	})

	t.Run("backend down", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		downURL := down.URL
		down.Close()
		deps, _, _ := newDeps(t, downURL)

		err := runLogin(context.Background(), deps, "a@b.com", "secret123", false)
		var connErr *client.ConnectionError
		assert.True(t, errors.As(err, &connErr))
	})
}

func TestRunLogin_PromptGoesToErr(t *testing.T) {
	srv := fakeAPI(t)
	t.Setenv("ZORO_PASSWORD", "")

	origTerminal, origSecret := stdinIsTerminal, readSecret
	t.Cleanup(func() { stdinIsTerminal, readSecret = origTerminal, origSecret })
	stdinIsTerminal = func() bool { return true }
	readSecret = func() ([]byte, error) { return []byte("secret123"), nil }

	deps, out, _ := newDeps(t, srv.URL)
	prompts := &bytes.Buffer{}
	deps.Err = prompts

	require.NoError(t, runLogin(context.Background(), deps, "a@b.com", "", false))
	assert.Equal(t, "Password: \n", prompts.String())
	assert.NotContains(t, out.String(), "Password:")
	assert.True(t, deps.Session.State().IsAuthenticated)
}

func TestRunLogin_NonInteractiveNeedsPassword(t *testing.T) {
	srv := fakeAPI(t)
	t.Setenv("ZORO_PASSWORD", "")

	origTerminal := stdinIsTerminal
	t.Cleanup(func() { stdinIsTerminal = origTerminal })
	stdinIsTerminal = func() bool { return false }

	deps, _, _ := newDeps(t, srv.URL)
	err := runLogin(context.Background(), deps, "a@b.com", "", false)
	assert.ErrorContains(t, err, "non-interactive mode")
}

func TestRunGoogleLogin(t *testing.T) {
	srv := fakeAPI(t)

	t.Run("opens sign-in page", func(t *testing.T) {
		deps, out, launcher := newDeps(t, srv.URL)

		require.NoError(t, runGoogleLogin(deps))
		assert.Equal(t, []string{srv.URL + "/auth/google"}, launcher.urls)
		assert.Contains(t, out.String(), "zoro login --token <token>")
	})

	t.Run("prints URL when no browser opens", func(t *testing.T) {
		deps, out, _ := newDeps(t, srv.URL)
		deps.Launcher = handoff.LauncherFunc(func(string) error { return errors.New("no display") })

		require.NoError(t, runGoogleLogin(deps))
		assert.Contains(t, out.String(), "Could not open a browser (no display)")
		assert.Contains(t, out.String(), srv.URL+"/auth/google")
	})
}

func TestRunTokenLogin(t *testing.T) {
	srv := fakeAPI(t)

	t.Run("adopts token and hands off", func(t *testing.T) {
		deps, out, launcher := newDeps(t, srv.URL)

		require.NoError(t, runTokenLogin(context.Background(), deps, "abc", true))

		state := deps.Session.State()
		assert.True(t, state.IsAuthenticated)
		assert.Equal(t, "abc", deps.Client.Token())
		assert.Contains(t, out.String(), "User: Ann (a@b.com)")
		assert.Equal(t, []string{"browsermanager://callback?token=abc"}, launcher.urls)
	})

	t.Run("rejected token", func(t *testing.T) {
		deps, _, launcher := newDeps(t, srv.URL)

		err := runTokenLogin(context.Background(), deps, "forged", true)
		assert.EqualError(t, err, "login failed (status 401): Unauthorized")
		assert.False(t, deps.Session.State().IsAuthenticated)
		assert.Empty(t, deps.Client.Token())
		assert.Empty(t, launcher.urls)
	})
}

func TestRunLogout(t *testing.T) {
	srv := fakeAPI(t)
	deps, out, _ := newDeps(t, srv.URL)

	require.NoError(t, runLogout(context.Background(), deps))
	assert.Contains(t, out.String(), "Not signed in")

	require.NoError(t, deps.Session.Login(context.Background(), "a@b.com", "secret123"))
	out.Reset()

	require.NoError(t, runLogout(context.Background(), deps))
	assert.Contains(t, out.String(), "✓ Logged out")
	assert.Empty(t, deps.Client.Token())
}

func TestRunOpen(t *testing.T) {
	srv := fakeAPI(t)
	deps, out, launcher := newDeps(t, srv.URL)

	assert.ErrorIs(t, runOpen(deps, false), errNotAuthenticated)
	assert.Empty(t, launcher.urls)

	require.NoError(t, deps.Session.Login(context.Background(), "a@b.com", "secret123"))

	require.NoError(t, runOpen(deps, true))
	assert.Equal(t, "browsermanager://callback?token=abc\n", out.String())
	assert.Empty(t, launcher.urls, "--print never launches")

	require.NoError(t, runOpen(deps, false))
	assert.Equal(t, []string{"browsermanager://callback?token=abc"}, launcher.urls)
}

func TestRunStatus(t *testing.T) {
	srv := fakeAPI(t)
	deps, out, _ := newDeps(t, srv.URL)

	require.NoError(t, runStatus(context.Background(), deps, formatText, false))
	assert.Equal(t, "Not signed in ("+srv.URL+")\n", out.String())

	require.NoError(t, deps.Session.Login(context.Background(), "a@b.com", "secret123"))
	out.Reset()

	require.NoError(t, runStatus(context.Background(), deps, formatJSON, true))

	var view map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "authenticated", view["phase"])
	assert.Equal(t, true, view["authenticated"])
	assert.NotContains(t, out.String(), "abc", "the token is never printed")
}

func TestRunStatus_Uninitialized(t *testing.T) {
	srv := fakeAPI(t)
	store := auth.NewMemory()
	require.NoError(t, store.Set(auth.TokenKey, "abc"))

	out := &bytes.Buffer{}
	c := client.New(srv.URL, store)
	deps := &Deps{
		Config:   &config.Config{},
		Client:   c,
		Session:  session.NewManager(c, &launches{}, session.WithLogger(zerolog.Nop())),
		Launcher: &launches{},
		Out:      out,
		Err:      io.Discard,
	}

	require.NoError(t, runStatus(context.Background(), deps, formatText, false))
	assert.Equal(t, "Session not checked ("+srv.URL+")\n  A token is stored, run 'zoro status' to verify it\n", out.String())

	out.Reset()
	require.NoError(t, runStatus(context.Background(), deps, formatJSON, false))
	var view map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "uninitialized", view["phase"])
	assert.Equal(t, true, view["tokenStored"])
}

// syncBuffer is written by the watch loop while the test reads it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunStatusWatch(t *testing.T) {
	srv := fakeAPI(t)
	deps, _, _ := newDeps(t, srv.URL)
	out := &syncBuffer{}
	deps.Out = out

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runStatusWatch(ctx, deps, formatText, 0)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Not signed in")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, deps.Session.Login(context.Background(), "a@b.com", "secret123"))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "User:     Ann (a@b.com)")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRunProfiles(t *testing.T) {
	srv := fakeAPI(t)
	deps, out, _ := newDeps(t, srv.URL)

	assert.ErrorIs(t, runProfiles(context.Background(), deps, formatText), errNotAuthenticated)

	require.NoError(t, deps.Session.Login(context.Background(), "a@b.com", "secret123"))
	require.NoError(t, runProfiles(context.Background(), deps, formatText))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "Work")
	assert.Contains(t, lines[2], "chrome")
}

func TestRunHealth(t *testing.T) {
	srv := fakeAPI(t)
	deps, out, _ := newDeps(t, srv.URL)

	require.NoError(t, runHealth(context.Background(), deps))
	assert.Contains(t, out.String(), "✓ ok")
	assert.Contains(t, out.String(), "Token:   none stored")

	require.NoError(t, deps.Client.SetToken("revoked"))
	out.Reset()

	require.NoError(t, runHealth(context.Background(), deps))
	assert.Contains(t, out.String(), "rejected by backend, cleared")
	assert.Empty(t, deps.Client.Token())
}

// stickyStore fails every Remove
type stickyStore struct{ *auth.Memory }

func (stickyStore) Remove(string) error { return errors.New("keychain locked") }

func TestRunHealth_ReportsClearFailure(t *testing.T) {
	srv := fakeAPI(t)
	store := stickyStore{auth.NewMemory()}
	require.NoError(t, store.Set(auth.TokenKey, "abc"))
	require.NoError(t, store.Set(auth.TimestampKey, "0"))

	out := &bytes.Buffer{}
	deps := &Deps{Client: client.New(srv.URL, store), Out: out}

	err := runHealth(context.Background(), deps)
	assert.ErrorContains(t, err, "failed to clear expired token")
	assert.ErrorContains(t, err, "keychain locked")
	assert.Contains(t, out.String(), "older than 7 days, failed to clear: ")
	assert.NotContains(t, out.String(), "older than 7 days, cleared")
}

func TestValidateRegistration(t *testing.T) {
	valid := client.RegisterRequest{Email: "a@b.com", Password: "secret123", Name: "Ann"}
	require.NoError(t, validateRegistration(valid))

	tests := []struct {
		name     string
		mutate   func(*client.RegisterRequest)
		expected string
	}{
		{"missing email", func(r *client.RegisterRequest) { r.Email = "" }, "email: is required"},
		{"bad email", func(r *client.RegisterRequest) { r.Email = "nope" }, "email: must be a valid email address"},
		{"short password", func(r *client.RegisterRequest) { r.Password = "short" }, "password: must be at least 8 characters"},
		{"long name", func(r *client.RegisterRequest) { r.Name = strings.Repeat("x", 101) }, "name: must be at most 100 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := valid
			tt.mutate(&data)

			err := validateRegistration(data)
			var valErr *client.ValidationError
			require.True(t, errors.As(err, &valErr))
			assert.EqualError(t, err, tt.expected)
		})
	}
}

func TestRunRegister_ValidatesBeforeRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/register" {
			called = true
		}
	}))
	defer srv.Close()

	deps, _, _ := newDeps(t, srv.URL)
	err := runRegister(context.Background(), deps, client.RegisterRequest{Email: "a@b.com", Password: "x", Name: "Ann"})
	require.Error(t, err)
	assert.False(t, called)
}

func TestPlatformAsset(t *testing.T) {
	var assets releases.Assets
	assets.Windows.Exe = &releases.Asset{Name: "setup.exe"}
	assets.MacOS.Intel = &releases.Asset{Name: "intel.dmg"}
	assets.MacOS.AppleSilicon = &releases.Asset{Name: "arm64.dmg"}

	tests := []struct {
		goos, goarch string
		expected     string
		wantErr      bool
	}{
		{"windows", "amd64", "setup.exe", false},
		{"darwin", "amd64", "intel.dmg", false},
		{"darwin", "arm64", "arm64.dmg", false},
		{"darwin", "386", "", true},
		{"linux", "amd64", "", true}, // nothing published
		{"plan9", "amd64", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			asset, err := platformAsset(assets, tt.goos, tt.goarch)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, asset.Name)
		})
	}
}

type failingUpstream struct{}

func (failingUpstream) Latest(ctx context.Context) (*releases.GitHubRelease, error) {
	return nil, errors.New("GitHub API error: 500")
}

func TestShowRelease_Fallback(t *testing.T) {
	deps, out, launcher := newDeps(t, "http://example.invalid")
	svc := releases.NewService(failingUpstream{}, nil, 0, zerolog.Nop())

	require.NoError(t, showRelease(context.Background(), deps, svc, formatText, false))
	assert.Contains(t, out.String(), "v1.0.8")
	assert.Contains(t, out.String(), "Could not reach GitHub")

	err := showRelease(context.Background(), deps, svc, formatText, true)
	assert.ErrorContains(t, err, "release information is unavailable")
	assert.Empty(t, launcher.urls)
}

func TestRender(t *testing.T) {
	v := struct {
		Name string `json:"name" yaml:"name"`
	}{Name: "zoro"}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatYAML, v, nil))
	var fromYAML map[string]string
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, "zoro", fromYAML["name"])

	buf.Reset()
	require.NoError(t, render(&buf, "TEXT", v, func(w io.Writer) error {
		_, err := w.Write([]byte("plain"))
		return err
	}))
	assert.Equal(t, "plain", buf.String())

	assert.Error(t, validateFormat("xml"))
}

func TestDescribeError(t *testing.T) {
	err := describeError("failed to list profiles", &client.RequestError{Status: 500, Message: "boom"})
	assert.EqualError(t, err, "failed to list profiles (status 500): boom")

	valErr := &client.ValidationError{Field: "email", Message: "is required"}
	assert.Same(t, valErr, describeError("x", valErr))
}
