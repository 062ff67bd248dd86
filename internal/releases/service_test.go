package releases

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUpstream struct {
	calls   atomic.Int32
	release *GitHubRelease
	err     error
}

func (s *stubUpstream) Latest(ctx context.Context) (*GitHubRelease, error) {
	s.calls.Add(1)
	return s.release, s.err
}

func TestService_FallbackOnUpstreamError(t *testing.T) {
	up := &stubUpstream{err: errors.New("GitHub API error: 403")}
	cache := NewMemoryCache()
	svc := NewService(up, cache, time.Hour, zerolog.Nop())

	r := svc.Latest(context.Background())
	require.NotNil(t, r)
	assert.True(t, r.Error)
	assert.Equal(t, FallbackVersion, r.Version)

	_, ok, _ := cache.Get(context.Background())
	assert.False(t, ok, "fallback is never cached")

	svc.Latest(context.Background())
	assert.Equal(t, int32(2), up.calls.Load())
}

func TestService_CachesUntilTTL(t *testing.T) {
	up := &stubUpstream{release: &GitHubRelease{TagName: "v1.2.0"}}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }
	svc := NewService(up, cache, time.Hour, zerolog.Nop())

	assert.Equal(t, "v1.2.0", svc.Latest(context.Background()).Version)
	assert.Equal(t, "v1.2.0", svc.Latest(context.Background()).Version)
	assert.Equal(t, int32(1), up.calls.Load())

	now = now.Add(time.Hour)
	svc.Latest(context.Background())
	assert.Equal(t, int32(2), up.calls.Load())
}

func TestService_StaleCacheSurvivesUpstreamFailure(t *testing.T) {
	up := &stubUpstream{release: &GitHubRelease{TagName: "v1.2.0"}}
	svc := NewService(up, NewMemoryCache(), time.Hour, zerolog.Nop())

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	up.err = errors.New("timeout")
	_, err = svc.Refresh(context.Background())
	require.Error(t, err)

	// The failed refresh leaves the cached release in place
	assert.Equal(t, "v1.2.0", svc.Latest(context.Background()).Version)
}

func TestService_NoCache(t *testing.T) {
	up := &stubUpstream{release: &GitHubRelease{TagName: "v1.2.0"}}
	svc := NewService(up, nil, 0, zerolog.Nop())

	svc.Latest(context.Background())
	svc.Latest(context.Background())
	assert.Equal(t, int32(2), up.calls.Load())
}

func TestGitHub_Latest(t *testing.T) {
	var gotPath, gotAccept, gotAgent, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotAgent = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"tag_name":"v1.2.0","name":"1.2.0","assets":[{"name":"x.AppImage","browser_download_url":"u","size":5}]}`))
	}))
	defer srv.Close()

	gh := NewGitHub("", "ghp_test")
	gh.SetAPIURL(srv.URL + "/")

	r, err := gh.Latest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/repos/apricopt/zorobrowsermanager/releases/latest", gotPath)
	assert.Equal(t, "application/vnd.github.v3+json", gotAccept)
	assert.Equal(t, UserAgent, gotAgent)
	assert.Equal(t, "token ghp_test", gotAuth)
	assert.Equal(t, "v1.2.0", r.TagName)
	require.Len(t, r.Assets, 1)
	assert.Equal(t, int64(5), r.Assets[0].Size)
}

func TestGitHub_LatestNonOK(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	gh := NewGitHub("owner/repo", "")
	gh.SetAPIURL(srv.URL)

	_, err := gh.Latest(context.Background())
	assert.EqualError(t, err, "GitHub API error: 403")
	assert.Empty(t, gotAuth, "no token, no Authorization header")
}

func TestRefresher(t *testing.T) {
	_, err := NewRefresher(NewService(&stubUpstream{}, nil, 0, zerolog.Nop()), "not a schedule", zerolog.Nop())
	assert.Error(t, err)

	up := &stubUpstream{release: &GitHubRelease{TagName: "v1.2.0"}}
	cache := NewMemoryCache()
	r, err := NewRefresher(NewService(up, cache, time.Hour, zerolog.Nop()), "", zerolog.Nop())
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	assert.Eventually(t, func() bool {
		_, ok, _ := cache.Get(context.Background())
		return ok
	}, 2*time.Second, 10*time.Millisecond, "start warms the cache immediately")
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	cache := NewRedisCacheFromClient(client, "zoro-web:test:"+t.Name())
	defer cache.Close()
	require.NoError(t, cache.Ping(ctx))
	defer client.Del(ctx, cache.key)

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, &Release{Version: "v1.2.0", TotalDownloads: 3}, time.Minute))

	r, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1.2.0", r.Version)
	assert.Equal(t, int64(3), r.TotalDownloads)
}
