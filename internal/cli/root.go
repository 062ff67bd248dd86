package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/apricopt/zoro-web/internal/cli/auth"
	"github.com/apricopt/zoro-web/internal/cli/client"
	"github.com/apricopt/zoro-web/internal/cli/commands"
	"github.com/apricopt/zoro-web/internal/cli/userconfig"
	"github.com/apricopt/zoro-web/internal/config"
	"github.com/apricopt/zoro-web/internal/handoff"
	"github.com/apricopt/zoro-web/internal/logger"
	"github.com/apricopt/zoro-web/internal/session"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree. Dependencies are created once, before
// the first command runs, and shared through deps.
func NewRootCmd() *cobra.Command {
	deps := &commands.Deps{Out: os.Stdout, Err: os.Stderr}
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "zoro",
		Short: "Zoro Browser Manager - account and downloads",
		Long: `Zoro CLI - Sign in to your Browser Manager account, hand the session
to the desktop app, and fetch the latest installers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for the version command
			if cmd.Name() == "version" {
				return nil
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger.InitCLI(level)

			return setup(cmd.Context(), deps, cmd.Annotations[commands.SkipSessionAnnotation] != "true")
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log session activity to stderr")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("zoro version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(deps))
	rootCmd.AddCommand(commands.NewRegisterCmd(deps))
	rootCmd.AddCommand(commands.NewLogoutCmd(deps))
	rootCmd.AddCommand(commands.NewStatusCmd(deps))
	rootCmd.AddCommand(commands.NewOpenCmd(deps))
	rootCmd.AddCommand(commands.NewProfilesCmd(deps))
	rootCmd.AddCommand(commands.NewSubscriptionCmd(deps))
	rootCmd.AddCommand(commands.NewDownloadsCmd(deps))
	rootCmd.AddCommand(commands.NewHealthCmd(deps))

	return rootCmd
}

// setup is the composition root: config, token storage, API client and the
// session manager. The session is initialized here, once, unless skipped.
func setup(ctx context.Context, deps *commands.Deps, initSession bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStore(cfg.API)
	if err != nil {
		return err
	}

	launcher := handoff.SystemLauncher{}
	apiClient := client.New(cfg.API.BaseURL, store)
	manager := session.NewManager(apiClient, launcher,
		session.WithLogger(log.Logger),
		session.WithCallbackURL(cfg.API.CallbackURL),
	)

	deps.Config = cfg
	deps.Client = apiClient
	deps.Session = manager
	deps.Launcher = launcher

	if initSession {
		manager.Initialize(ctx)
	}
	return nil
}

// openStore picks the token storage backend. The keychain falls back to the
// config file when no keychain service is running (headless Linux, CI).
func openStore(cfg config.APIConfig) (auth.Store, error) {
	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		return auth.NewMemory(), nil
	case config.TokenStoreFile:
		return userconfig.NewFile(cfg.StoragePath)
	default:
		kr := auth.NewKeyring(auth.DefaultService)
		if err := kr.Probe(); err != nil {
			if !errors.Is(err, auth.ErrUnavailable) {
				return nil, err
			}
			log.Debug().Err(err).Msg("Keychain unavailable, storing session in config file")
			return userconfig.NewFile(cfg.StoragePath)
		}
		return kr, nil
	}
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
