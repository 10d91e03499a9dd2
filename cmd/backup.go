package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lucsky/cuid"
	"github.com/spf13/cobra"

	"github.com/aelpxy/dockup/internal/archive"
	"github.com/aelpxy/dockup/internal/backup"
	"github.com/aelpxy/dockup/internal/docker"
	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/internal/notify"
	"github.com/aelpxy/dockup/internal/project"
	"github.com/aelpxy/dockup/internal/report"
	"github.com/aelpxy/dockup/internal/transfer"
	"github.com/aelpxy/dockup/pkg/models"
)

const reportTimeout = 2 * time.Minute

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "run one backup cycle",
	Long:  "archive every application under the docker parent directory, ship it to the remote host and mail a report",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closer := newLogger()
	defer closer.Close()

	manager, err := loadConfig(true)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitWith(ExitAborted, err)
	}
	cfg := manager.Snapshot()

	dir, err := dockupDir()
	if err != nil {
		return exitWith(ExitAborted, err)
	}

	cycle := backupCycle{
		parent: cfg.DockerParent,
		lock:   backup.NewRunLock(filepath.Join(dir, "locks")),
		run: func(ctx context.Context) *backup.RunReport {
			return executeRun(ctx, cfg, logger)
		},
		notifier: notify.NewMailer(cfg.Email, logger),
		host:     hostname(),
		logger:   logger,
	}
	return cycle.execute(ctx)
}

// runLock is the part of backup.RunLock a cycle needs.
type runLock interface {
	Acquire() error
	Release()
}

// backupCycle is one locked run followed by its report.
type backupCycle struct {
	parent   string
	lock     runLock
	run      func(ctx context.Context) *backup.RunReport
	notifier report.Notifier
	host     string
	logger   *slog.Logger
}

// execute holds the lock for the whole run and maps the outcome to an exit
// code. Nothing is scanned when the lock cannot be taken.
func (b backupCycle) execute(ctx context.Context) error {
	if err := b.lock.Acquire(); err != nil {
		b.logger.Error("backup not started", "error", err)
		if fault.Is(err, fault.KindLocked) {
			return exitWith(ExitLocked, err)
		}
		return exitWith(ExitAborted, err)
	}
	defer b.lock.Release()

	fmt.Println(titleStyle.Render("==> backing up " + b.parent))
	fmt.Println()

	run := b.run(ctx)
	printRun(run)

	b.report(ctx, run)

	code := exitCodeFor(run.Status)
	if code == ExitOK {
		return nil
	}
	return exitWith(code, nil)
}

// report mails the run summary. It still runs after an interrupt, and a
// failure is only logged.
func (b backupCycle) report(ctx context.Context, run *backup.RunReport) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	reporter := report.NewReporter(b.notifier, b.host, b.logger)
	if err := reporter.Report(ctx, run); err != nil {
		b.logger.Error("failed to send report", "error", err)
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[error]"), err)
	}
}

// executeRun wires the pipeline stages and runs them once. A container
// runtime that cannot be reached aborts the run before scanning.
func executeRun(ctx context.Context, cfg models.RunConfig, logger *slog.Logger) *backup.RunReport {
	dockerClient, err := docker.NewClient(cfg.Backup.HelperImage, logger)
	if err != nil {
		return abortedRun(fault.New(fault.KindScan, "connect to container runtime", err))
	}
	defer dockerClient.Close()

	dialer := transfer.NewSSHDialer(cfg.SSH, logger)
	client := transfer.NewClient(dialer, cfg.RemoteBackupPath, transfer.PolicyFromSettings(cfg.Retry), logger)

	orchestrator := backup.NewOrchestrator(
		project.NewResolver(logger),
		archive.New(dockerClient, logger),
		backup.NewTransport(client),
		backup.OptionsFromSettings(cfg.Backup),
		logger,
	)
	return orchestrator.Run(ctx, cfg.DockerParent)
}

func abortedRun(err error) *backup.RunReport {
	return &backup.RunReport{
		RunID:       cuid.New(),
		StartedAt:   time.Now().UTC(),
		Status:      backup.RunAborted,
		AbortReason: err,
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return name
}

func printRun(run *backup.RunReport) {
	if run.Status == backup.RunAborted && len(run.Results) == 0 {
		fmt.Printf("  %s run aborted: %v\n", errorStyle.Render("[error]"), run.AbortReason)
		fmt.Println()
		return
	}

	for _, result := range run.Results {
		line := fmt.Sprintf("%s (%s, %s)", valueStyle.Render(result.App()),
			result.Duration().Round(time.Second), humanize.Bytes(uint64(result.TransferredBytes())))
		switch result.Status() {
		case backup.StatusSuccess:
			fmt.Printf("  %s %s\n", successStyle.Render("[done]"), line)
		case backup.StatusPartial:
			fmt.Printf("  %s %s\n", warnStyle.Render("[partial]"), line)
		default:
			fmt.Printf("  %s %s\n", errorStyle.Render("[error]"), line)
		}
		if path := result.RemotePath(); path != "" {
			fmt.Printf("      %s %s\n", dimStyle.Render("remote:"), dimStyle.Render(path))
		}
		for _, err := range result.Errors() {
			fmt.Printf("      %s\n", dimStyle.Render(err.Error()))
		}
	}

	counts := run.Counts()
	fmt.Println()
	fmt.Printf("  %s %s  %s %d success, %d partial, %d failed  %s %s\n",
		labelStyle.Render("status:"), statusStyle(run.Status).Render(string(run.Status)),
		labelStyle.Render("applications:"), counts[backup.StatusSuccess], counts[backup.StatusPartial], counts[backup.StatusFailed],
		labelStyle.Render("transferred:"), humanize.Bytes(uint64(run.TransferredBytes())))
	fmt.Println()
}
