package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aelpxy/dockup/internal/transfer"
)

var dryRunParent string

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "show what a backup would upload",
	Long:  "print the remote path of every archive a backup would produce, without archiving or transferring anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closer := newLogger()
		defer closer.Close()

		manager, err := loadConfig(false)
		if err != nil {
			return exitWith(ExitAborted, err)
		}
		cfg := manager.Snapshot()

		parent := dryRunParent
		if parent == "" {
			parent = cfg.DockerParent
		}
		if parent == "" || cfg.RemoteBackupPath == "" {
			return fmt.Errorf("docker_parent and remote_backup_path must be configured")
		}

		apps, err := discover(parent, logger)
		if err != nil {
			return exitWith(ExitAborted, err)
		}

		timestamp := transfer.FormatTimestamp(time.Now())
		fmt.Println(titleStyle.Render("==> dry run for " + timestamp))
		fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("ssh: %s@%s", cfg.SSH.User, cfg.SSH.Address())))
		fmt.Println()

		for _, entry := range apps {
			layout := transfer.NewLayout(cfg.RemoteBackupPath, entry.app.Name, timestamp)
			if entry.err != nil {
				fmt.Printf("  %s %s\n", errorStyle.Render("[✗]"), valueStyle.Render(entry.app.Name))
				fmt.Printf("      %s\n", dimStyle.Render(entry.err.Error()))
				continue
			}

			fmt.Printf("  %s %s\n", infoStyle.Render("[→]"), valueStyle.Render(entry.app.Name))
			fmt.Printf("      %s\n", dimStyle.Render(layout.RepoArchive()))
			for _, volume := range entry.app.Volumes {
				fmt.Printf("      %s\n", dimStyle.Render(layout.VolumeArchive(volume.Resolved)))
			}
		}
		fmt.Println()
		return nil
	},
}

func init() {
	dryRunCmd.Flags().StringVar(&dryRunParent, "parent", "", "directory to scan instead of docker_parent")
}
