package releases

import (
	"strings"
	"time"
)

// Asset is one downloadable installer
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
	DownloadCount      int64  `json:"download_count,omitempty"`
}

// Assets groups installers by platform. Missing installers are nil.
type Assets struct {
	Windows struct {
		Exe *Asset `json:"exe"`
	} `json:"windows"`
	MacOS struct {
		Intel        *Asset `json:"intel"`
		AppleSilicon *Asset `json:"appleSilicon"`
	} `json:"macos"`
	Linux struct {
		AppImage *Asset `json:"appimage"`
	} `json:"linux"`
}

// Release is the payload served to the download pages
type Release struct {
	Version        string `json:"version"`
	Name           string `json:"name"`
	PublishedAt    string `json:"publishedAt"`
	Body           string `json:"body"`
	HTMLURL        string `json:"htmlUrl"`
	Assets         Assets `json:"assets"`
	TotalDownloads int64  `json:"totalDownloads"`
	Error          bool   `json:"error,omitempty"`
}

// FromGitHub converts a GitHub release into the served payload
func FromGitHub(r *GitHubRelease) *Release {
	var total int64
	for _, a := range r.Assets {
		total += a.DownloadCount
	}

	return &Release{
		Version:        r.TagName,
		Name:           r.Name,
		PublishedAt:    r.PublishedAt,
		Body:           r.Body,
		HTMLURL:        r.HTMLURL,
		Assets:         Organize(r.Assets),
		TotalDownloads: total,
	}
}

// Organize picks the installer for each platform by file name. The first
// matching asset wins.
func Organize(assets []GitHubAsset) Assets {
	var out Assets

	out.Windows.Exe = find(assets, func(name string) bool {
		return strings.Contains(name, ".exe") && !isBlockmap(name)
	})
	out.MacOS.Intel = find(assets, func(name string) bool {
		return strings.Contains(name, ".dmg") && !strings.Contains(name, "arm64") && !isBlockmap(name)
	})
	out.MacOS.AppleSilicon = find(assets, func(name string) bool {
		return strings.Contains(name, "arm64.dmg") && !isBlockmap(name)
	})
	out.Linux.AppImage = find(assets, func(name string) bool {
		return strings.Contains(name, ".AppImage")
	})

	return out
}

func isBlockmap(name string) bool {
	return strings.Contains(name, ".blockmap")
}

func find(assets []GitHubAsset, match func(name string) bool) *Asset {
	for _, a := range assets {
		if match(a.Name) {
			return &Asset{
				Name:               a.Name,
				BrowserDownloadURL: a.BrowserDownloadURL,
				Size:               a.Size,
				DownloadCount:      a.DownloadCount,
			}
		}
	}
	return nil
}

// FallbackVersion is reported when GitHub cannot be reached
const FallbackVersion = "v1.0.8"

const mib = 1024 * 1024

// Fallback is the placeholder served when the upstream call fails
func Fallback(now time.Time) *Release {
	r := &Release{
		Version:     FallbackVersion,
		Name:        "Latest Release",
		PublishedAt: now.UTC().Format(time.RFC3339),
		Body:        "Latest version of Zoro Browser Manager",
		HTMLURL:     "https://github.com/apricopt/zorobrowsermanager/releases",
		Error:       true,
	}

	r.Assets.Windows.Exe = &Asset{
		Name:               "Zoro-Browser-Manager-Setup-1.0.8.exe",
		BrowserDownloadURL: "#",
		Size:               873 * mib / 10, // 87.3 MiB
	}
	r.Assets.MacOS.Intel = &Asset{
		Name:               "Zoro-Browser-Manager-1.0.8.dmg",
		BrowserDownloadURL: "#",
		Size:               266 * mib,
	}
	r.Assets.MacOS.AppleSilicon = &Asset{
		Name:               "Zoro-Browser-Manager-1.0.8-arm64.dmg",
		BrowserDownloadURL: "#",
		Size:               261 * mib,
	}
	r.Assets.Linux.AppImage = &Asset{
		Name:               "Zoro-Browser-Manager-1.0.8.AppImage",
		BrowserDownloadURL: "#",
		Size:               114 * mib,
	}

	return r
}
