package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	GitHubAPIURL = "https://api.github.com"
	UserAgent    = "Zoro-Browser-Manager-Web"
	DefaultRepo  = "apricopt/zorobrowsermanager"
)

// GitHubAsset is a release asset as GitHub reports it
type GitHubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
	DownloadCount      int64  `json:"download_count,omitempty"`
	ContentType        string `json:"content_type,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

// GitHubRelease represents a GitHub release
type GitHubRelease struct {
	TagName     string        `json:"tag_name"`
	Name        string        `json:"name"`
	PublishedAt string        `json:"published_at"`
	Body        string        `json:"body"`
	HTMLURL     string        `json:"html_url"`
	Assets      []GitHubAsset `json:"assets"`
}

// GitHub fetches the latest release of one repository
type GitHub struct {
	apiURL     string
	repo       string
	token      string
	httpClient *http.Client
}

// NewGitHub creates a release fetcher for repo ("owner/name"). token may be empty.
func NewGitHub(repo, token string) *GitHub {
	if repo == "" {
		repo = DefaultRepo
	}
	return &GitHub{
		apiURL: GitHubAPIURL,
		repo:   repo,
		token:  token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetAPIURL points the fetcher at another GitHub API host
func (g *GitHub) SetAPIURL(apiURL string) {
	g.apiURL = strings.TrimRight(apiURL, "/")
}

// SetHTTPClient sets a custom HTTP client
func (g *GitHub) SetHTTPClient(httpClient *http.Client) {
	g.httpClient = httpClient
}

// Latest fetches the latest release from GitHub
func (g *GitHub) Latest(ctx context.Context) (*GitHubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", g.apiURL, g.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if g.token != "" {
		req.Header.Set("Authorization", "token "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &release, nil
}
