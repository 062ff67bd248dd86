package commands

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/apricopt/zoro-web/internal/releases"
)

// NewDownloadsCmd creates the downloads command
func NewDownloadsCmd(deps *Deps) *cobra.Command {
	var format string
	var open bool

	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "Show the latest desktop app installers",
		// Public information, no session needed
		Annotations: map[string]string{SkipSessionAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			return runDownloads(cmd.Context(), deps, format, open)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatText, "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&open, "open", false, "Open the installer for this machine in the browser")

	return cmd
}

func runDownloads(ctx context.Context, deps *Deps, format string, open bool) error {
	gh := releases.NewGitHub(deps.Config.Releases.Repo, deps.Config.Releases.GitHubToken)
	return showRelease(ctx, deps, releases.NewService(gh, nil, 0, log.Logger), format, open)
}

func showRelease(ctx context.Context, deps *Deps, svc *releases.Service, format string, open bool) error {
	release := svc.Latest(ctx)

	if open {
		asset, err := platformAsset(release.Assets, runtime.GOOS, runtime.GOARCH)
		if err != nil {
			return err
		}
		if release.Error || asset.BrowserDownloadURL == "#" {
			return fmt.Errorf("release information is unavailable right now, visit %s", release.HTMLURL)
		}
		fmt.Fprintf(deps.Out, "Downloading %s...\n", asset.Name)
		if err := deps.Launcher.Open(asset.BrowserDownloadURL); err != nil {
			return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, asset.BrowserDownloadURL)
		}
		return nil
	}

	return render(deps.Out, format, release, func(w io.Writer) error {
		fmt.Fprintf(w, "%s (%s)\n", release.Name, release.Version)
		if release.Error {
			fmt.Fprintln(w, "  Could not reach GitHub, showing placeholder information")
		}
		fmt.Fprintln(w)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PLATFORM\tFILE\tSIZE")
		fmt.Fprintln(tw, "────────\t────\t────")
		rows := []struct {
			platform string
			asset    *releases.Asset
		}{
			{"Windows", release.Assets.Windows.Exe},
			{"macOS (Intel)", release.Assets.MacOS.Intel},
			{"macOS (Apple Silicon)", release.Assets.MacOS.AppleSilicon},
			{"Linux (AppImage)", release.Assets.Linux.AppImage},
		}
		for _, r := range rows {
			if r.asset == nil {
				fmt.Fprintf(tw, "%s\t-\t-\n", r.platform)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%.1f MB\n", r.platform, r.asset.Name, float64(r.asset.Size)/(1024*1024))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if release.TotalDownloads > 0 {
			fmt.Fprintf(w, "\n%d total downloads\n", release.TotalDownloads)
		}
		fmt.Fprintf(w, "\nRelease notes: %s\n", release.HTMLURL)
		return nil
	})
}

// platformAsset returns the installer for the given platform
func platformAsset(assets releases.Assets, goos, goarch string) (*releases.Asset, error) {
	var asset *releases.Asset

	switch goos {
	case "windows":
		asset = assets.Windows.Exe
	case "darwin":
		switch goarch {
		case "arm64":
			asset = assets.MacOS.AppleSilicon
		case "amd64":
			asset = assets.MacOS.Intel
		default:
			return nil, fmt.Errorf("unsupported architecture: %s", goarch)
		}
	case "linux":
		asset = assets.Linux.AppImage
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", goos)
	}

	if asset == nil {
		return nil, fmt.Errorf("no installer published for %s/%s", goos, goarch)
	}
	return asset, nil
}
