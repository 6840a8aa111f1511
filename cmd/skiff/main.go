package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/skiff/internal/app"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

// exitCode carries a status out of a command without printing an error.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	var code exitCode
	switch {
	case err == nil:
		return 0
	case errors.As(err, &code):
		return int(code)
	default:
		fmt.Fprintf(os.Stderr, "skiff: %v\n", err)
		return 1
	}
}

func newRootCmd() *cobra.Command {
	var opts app.Options

	root := &cobra.Command{
		Use:   "skiff",
		Short: "Browse and stream torrents from the terminal",
		Long: `skiff browses a metadata gateway for releases and streams the chosen one
through a local torrent stream daemon into mpv or mplayer.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config path (default ~/.config/skiff/config.toml)")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging and helper output")
	root.Flags().StringVar(&opts.PrefsPath, "prefs", "", "preferences path (default ~/.config/skiff/prefs.toml)")

	root.AddCommand(newPlayCmd(&opts), newVersionCmd())
	return root
}

func newPlayCmd(opts *app.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "play <magnet|url>",
		Short: "Play one magnet link or video URL without the TUI",
		Long: `play starts the metadata gateway, streams the locator and runs the player.
It exits with the player's exit code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := app.Play(cmd.Context(), *opts, args[0])
			if err != nil {
				return err
			}
			if code != 0 {
				return exitCode(code)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the skiff version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "skiff %s\n", version)
		},
	}
}
