package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/aelpxy/dockup/internal/backup"
	"github.com/aelpxy/dockup/internal/config"
	"github.com/aelpxy/dockup/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Bold(true)
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "dockup",
	Short: "back up docker compose applications over ssh",
	Long: titleStyle.Render("dockup") + "\n" + subtitleStyle.Render("docker compose backups") + "\n\n" +
		"Archives every compose application under a parent directory, together with\n" +
		"its named volumes, ships the archives to a remote host over ssh and mails a report.",
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
	rootCmd.Version = fmt.Sprintf("%s (built: %s, commit: %s)", version, buildTime, gitCommit)
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("[error] %v", exit.err)))
		}
		os.Exit(exit.code)
	}

	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("[error] Error: %v", err)))
	os.Exit(ExitUsage)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $DOCKUP_CONFIG or ~/.dockup/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(dryRunCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
}

// dockupDir is ~/.dockup, home of the lock and log files.
func dockupDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".dockup"), nil
}

func newConfigManager() (*config.Manager, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return config.NewManager(path), nil
}

// loadConfig reads the configuration and, when validate is set, rejects an
// incomplete one.
func loadConfig(validate bool) (*config.Manager, error) {
	manager, err := newConfigManager()
	if err != nil {
		return nil, err
	}
	if err := manager.Load(); err != nil {
		return nil, err
	}
	if validate {
		if err := manager.Validate(); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

// newLogger logs to stderr and, when ~/.dockup is usable, to the rotating
// log file.
func newLogger() (*slog.Logger, io.Closer) {
	opts := logging.Options{Verbose: verbose}
	if dir, err := dockupDir(); err == nil {
		opts.LogFile = filepath.Join(dir, "logs", "dockup.log")
	}

	logger, closer, err := logging.New(opts)
	if err != nil {
		opts.LogFile = ""
		logger, closer, _ = logging.New(opts)
		logger.Warn("file logging disabled", "error", err)
	}
	return logger, closer
}

func statusStyle(status backup.RunStatus) lipgloss.Style {
	switch status {
	case backup.RunAllOK:
		return successStyle
	case backup.RunDegraded:
		return warnStyle
	default:
		return errorStyle
	}
}
