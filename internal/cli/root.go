// Package cli implements the rangefinder-mcp command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/rangefinder-mcp/internal/config"
	"github.com/ironsheep/rangefinder-mcp/internal/log"
)

// BuildInfo is set by ldflags in the main package.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// app holds state shared by the subcommands of one root command.
type app struct {
	build      BuildInfo
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the MCP server.
func NewRootCommand(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:   "rangefinder-mcp",
		Short: "Locate a known pattern in camera frames and estimate its distance",
		Long: `rangefinder-mcp finds a reference pattern in a camera frame by multi-scale
edge template matching and estimates its distance from the camera as
real_width * focal_length / perceived_width.

Without a subcommand it runs as an MCP server over stdin/stdout.`,
		Version:       build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides configuration)")

	root.AddCommand(
		a.newServeCommand(),
		a.newMeasureCommand(),
		a.newBatchCommand(),
		a.newVersionCommand(),
	)
	return root
}

// loadConfig builds the configuration from defaults, the optional file, the
// environment and flags, in increasing precedence.
func (a *app) loadConfig() error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.InitWriter(os.Stderr, cfg.LogLevel)
	a.cfg = cfg
	return nil
}

// Execute runs the command line until completion or SIGINT/SIGTERM.
func Execute(build BuildInfo) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(build).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Version needs no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout(), a.build)
		},
	}
}

func printVersion(w io.Writer, b BuildInfo) {
	fmt.Fprintf(w, "rangefinder-mcp %s\n", b.Version)
	fmt.Fprintf(w, "  Build time: %s\n", b.BuildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", b.GitCommit)
}
