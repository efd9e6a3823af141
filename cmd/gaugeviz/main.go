// gaugeviz renders gauge visualizations from query results.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/seenimoa/gaugeviz/api"
	"github.com/seenimoa/gaugeviz/internal/config"
	"github.com/seenimoa/gaugeviz/internal/infra"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by the root PersistentPreRunE.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gaugeviz",
	Short: "gaugeviz — gauge visualizations for query results",
	Long: `gaugeviz draws gauge charts from query result sets.

Results come from JSON, CSV or XLSX files, or are posted to the HTTP API,
which pushes every redraw to live pages over WebSocket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		logger = infra.NewLogger(cfg.Logging, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "gaugeviz %s\n", version)
		fmt.Fprintf(out, "  commit:  %s\n", commit)
		fmt.Fprintf(out, "  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.API.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		noUI, _ := cmd.Flags().GetBool("no-ui")

		api.Version = version
		srv, err := api.NewServer(cfg, logger)
		if err != nil {
			return err
		}
		if noUI {
			srv.SetServeUI(false)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (overrides api.host)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
	serveCmd.Flags().Bool("no-ui", false, "do not serve the live page")
}

// --- Status Command ---

var (
	statusTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00bbde"))
	sourceStyle = map[config.SettingSource]lipgloss.Style{
		config.SourceEnv:     lipgloss.NewStyle().Foreground(lipgloss.Color("#eeb058")),
		config.SourceFile:    lipgloss.NewStyle().Foreground(lipgloss.Color("#73d483")),
		config.SourceDefault: lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c")),
	}
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and where each setting came from",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintln(out, "  "+statusTitle.Render("gaugeviz — System Status"))
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintf(out, "  Version:       %s (%s)\n", version, commit)
		file := cfg.File()
		if file == "" {
			file = "(none, built-in defaults)"
		}
		fmt.Fprintf(out, "  Config file:   %s\n", file)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  Settings:")
		for _, s := range config.Sources(cfg) {
			src := sourceStyle[s.Source].Render(string(s.Source))
			fmt.Fprintf(out, "    %-24s %-28s %s\n", s.Key, s.Value, src)
		}
		fmt.Fprintln(out, "═══════════════════════════════════════")
		return nil
	},
}
