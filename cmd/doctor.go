package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aelpxy/dockup/internal/backup"
	"github.com/aelpxy/dockup/internal/docker"
	"github.com/aelpxy/dockup/internal/logging"
	"github.com/aelpxy/dockup/internal/transfer"
	"github.com/aelpxy/dockup/internal/utils"
	"github.com/aelpxy/dockup/pkg/models"
)

const doctorTimeout = 30 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and connectivity",
	Long:  "Verify the configuration, the container runtime, the remote host and the run lock",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	logger, closer := newLogger()
	defer closer.Close()

	fmt.Println(titleStyle.Render("==> checking system health"))
	fmt.Println()

	cfg, allGood := checkConfig()
	if allGood {
		allGood = checkParent(cfg) && allGood
	}
	allGood = checkRuntime(cmd.Context(), cfg, logger) && allGood
	if cfg != nil {
		allGood = checkRemote(cmd.Context(), *cfg, logger) && allGood
	}
	allGood = checkLock() && allGood

	fmt.Println()
	if !allGood {
		fmt.Println(errorStyle.Render("  [error] some checks failed"))
		fmt.Println()
		fmt.Println(dimStyle.Render("  fix the issues above before running a backup"))
		return exitWith(ExitUsage, nil)
	}

	fmt.Println(successStyle.Render("  [done] all checks passed"))
	fmt.Println()
	fmt.Println(dimStyle.Render("  dockup is ready to run backups"))
	return nil
}

func checkConfig() (*models.RunConfig, bool) {
	fmt.Println(labelStyle.Render("  configuration"))

	manager, err := newConfigManager()
	if err != nil {
		fmt.Printf("    %s %v\n", errorStyle.Render("[✗]"), err)
		fmt.Println()
		return nil, false
	}
	if err := manager.Load(); err != nil {
		fmt.Printf("    %s cannot load configuration\n", errorStyle.Render("[✗]"))
		fmt.Printf("      %s\n", dimStyle.Render(err.Error()))
		fmt.Println()
		return nil, false
	}

	source := "environment"
	if manager.FromFile() {
		source = manager.Path()
	}
	fmt.Printf("    %s loaded from %s\n", successStyle.Render("[✓]"), dimStyle.Render(source))

	cfg := manager.Snapshot()
	if err := manager.Validate(); err != nil {
		fmt.Printf("    %s configuration is incomplete\n", errorStyle.Render("[✗]"))
		fmt.Printf("      %s\n", dimStyle.Render(err.Error()))
		fmt.Printf("      %s\n", dimStyle.Render("run 'dockup config init' to fix it"))
		fmt.Println()
		return &cfg, false
	}
	fmt.Printf("    %s configuration valid\n", successStyle.Render("[✓]"))
	fmt.Println()
	return &cfg, true
}

func checkParent(cfg *models.RunConfig) bool {
	fmt.Println(labelStyle.Render("  docker parent"))

	dir, err := utils.ValidateDirectory(cfg.DockerParent)
	if err != nil {
		fmt.Printf("    %s %s\n", errorStyle.Render("[✗]"), err)
		fmt.Println()
		return false
	}
	fmt.Printf("    %s %s\n", successStyle.Render("[✓]"), dimStyle.Render(dir))

	apps, err := discover(dir, logging.Discard())
	if err != nil {
		fmt.Printf("    %s cannot scan: %v\n", errorStyle.Render("[✗]"), err)
		fmt.Println()
		return false
	}
	unresolved := 0
	for _, entry := range apps {
		if entry.err != nil {
			unresolved++
		}
	}
	fmt.Printf("    %s %d applications found\n", successStyle.Render("[✓]"), len(apps))
	if unresolved > 0 {
		fmt.Printf("    %s %d compose files cannot be parsed\n", warnStyle.Render("[!]"), unresolved)
		fmt.Printf("      %s\n", dimStyle.Render("run 'dockup scan' for details"))
	}
	fmt.Println()
	return true
}

func checkRuntime(ctx context.Context, cfg *models.RunConfig, logger *slog.Logger) bool {
	fmt.Println(labelStyle.Render("  runtime"))

	helperImage := docker.DefaultHelperImage
	if cfg != nil && cfg.Backup.HelperImage != "" {
		helperImage = cfg.Backup.HelperImage
	}

	dockerClient, err := docker.NewClient(helperImage, logger)
	if err != nil {
		fmt.Printf("    %s runtime not detected\n", errorStyle.Render("[✗]"))
		fmt.Printf("      %s\n", dimStyle.Render(err.Error()))
		fmt.Printf("      %s\n", dimStyle.Render("install docker or podman to continue"))
		fmt.Println()
		return false
	}
	defer dockerClient.Close()

	info := dockerClient.GetRuntimeInfo()
	fmt.Printf("    %s %s detected\n", successStyle.Render("[✓]"), valueStyle.Render(info.GetRuntimeName()))
	fmt.Printf("      %s %s\n", dimStyle.Render("socket:"), dimStyle.Render(info.SocketPath))

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	version, err := dockerClient.ServerVersion(ctx)
	if err != nil {
		fmt.Printf("    %s runtime daemon not responding\n", errorStyle.Render("[✗]"))
		fmt.Printf("      %s\n", dimStyle.Render(err.Error()))
		fmt.Println()
		return false
	}

	fmt.Printf("    %s daemon running %s\n", successStyle.Render("[✓]"), dimStyle.Render("(version "+version+")"))
	fmt.Println()
	return true
}

func checkRemote(ctx context.Context, cfg models.RunConfig, logger *slog.Logger) bool {
	fmt.Println(labelStyle.Render("  remote"))

	if cfg.SSH.Host == "" || cfg.RemoteBackupPath == "" {
		fmt.Printf("    %s ssh host or remote path not configured\n", errorStyle.Render("[✗]"))
		fmt.Println()
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	// One attempt only; doctor should answer quickly.
	policy := transfer.PolicyFromSettings(cfg.Retry)
	policy.MaxAttempts = 1
	client := transfer.NewClient(transfer.NewSSHDialer(cfg.SSH, logger), cfg.RemoteBackupPath, policy, logger)

	session, err := client.Open(ctx)
	if err != nil {
		fmt.Printf("    %s cannot connect to %s\n", errorStyle.Render("[✗]"), cfg.SSH.Address())
		fmt.Printf("      %s\n", dimStyle.Render(err.Error()))
		fmt.Println()
		return false
	}
	defer session.Close()
	fmt.Printf("    %s connected to %s\n", successStyle.Render("[✓]"), dimStyle.Render(cfg.SSH.User+"@"+cfg.SSH.Address()))

	if _, err := session.StatRoot(ctx); err != nil {
		fmt.Printf("    %s remote path %s unusable\n", errorStyle.Render("[✗]"), cfg.RemoteBackupPath)
		fmt.Printf("      %s\n", dimStyle.Render(err.Error()))
		fmt.Println()
		return false
	}
	fmt.Printf("    %s %s exists\n", successStyle.Render("[✓]"), dimStyle.Render(cfg.RemoteBackupPath))
	fmt.Println()
	return true
}

func checkLock() bool {
	fmt.Println(labelStyle.Render("  run lock"))

	dir, err := dockupDir()
	if err != nil {
		fmt.Printf("    %s cannot determine home directory\n", errorStyle.Render("[✗]"))
		return false
	}

	lock := backup.NewRunLock(filepath.Join(dir, "locks"))
	pid, alive := lock.Holder()
	switch {
	case pid == 0:
		fmt.Printf("    %s no backup running\n", successStyle.Render("[✓]"))
	case alive:
		fmt.Printf("    %s backup in progress (pid %d)\n", warnStyle.Render("[!]"), pid)
	default:
		fmt.Printf("    %s stale lock from pid %d\n", warnStyle.Render("[!]"), pid)
		fmt.Printf("      %s\n", dimStyle.Render("the next backup reclaims it"))
	}
	return true
}
