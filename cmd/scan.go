package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aelpxy/dockup/internal/project"
	"github.com/aelpxy/dockup/pkg/models"
)

var scanParent string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "list applications and their volumes",
	Long:  "discover the compose applications under the docker parent directory and resolve their named volumes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closer := newLogger()
		defer closer.Close()

		parent, err := resolveParent(scanParent)
		if err != nil {
			return err
		}

		apps, err := discover(parent, logger)
		if err != nil {
			return exitWith(ExitAborted, err)
		}

		fmt.Println(titleStyle.Render("==> applications in " + parent))
		fmt.Println()

		if len(apps) == 0 {
			fmt.Println("  " + dimStyle.Render("no applications found"))
			return nil
		}

		failed := 0
		for _, entry := range apps {
			if entry.err != nil {
				failed++
				fmt.Printf("  %s %s\n", errorStyle.Render("[✗]"), valueStyle.Render(entry.app.Name))
				fmt.Printf("      %s\n", dimStyle.Render(entry.err.Error()))
				continue
			}

			fmt.Printf("  %s %s\n", successStyle.Render("[✓]"), valueStyle.Render(entry.app.Name))
			fmt.Printf("      %s %s\n", labelStyle.Render("compose:"), dimStyle.Render(strings.Join(entry.app.ComposeFiles, ", ")))
			if len(entry.app.Volumes) == 0 {
				fmt.Printf("      %s %s\n", labelStyle.Render("volumes:"), dimStyle.Render("none"))
				continue
			}
			fmt.Printf("      %s\n", labelStyle.Render("volumes:"))
			for _, volume := range entry.app.Volumes {
				fmt.Printf("        %s %s\n", infoStyle.Render(volume.Resolved), dimStyle.Render("("+volume.Declared+")"))
			}
		}

		fmt.Println()
		fmt.Printf("  %s %d applications, %d unresolved\n", labelStyle.Render("total:"), len(apps), failed)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanParent, "parent", "", "directory to scan instead of docker_parent")
}

// resolvedApp is a discovered application with its volumes or the reason
// they could not be resolved.
type resolvedApp struct {
	app models.Application
	err error
}

func discover(parent string, logger *slog.Logger) ([]resolvedApp, error) {
	apps, err := project.Scan(parent)
	if err != nil {
		return nil, err
	}

	resolver := project.NewResolver(logger)
	var out []resolvedApp
	for app := range apps {
		volumes, err := resolver.Resolve(app)
		if err != nil {
			out = append(out, resolvedApp{app: app, err: err})
			continue
		}
		out = append(out, resolvedApp{app: app.WithVolumes(volumes)})
	}
	return out, nil
}

// resolveParent prefers the flag and falls back to the configured parent.
func resolveParent(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	manager, err := loadConfig(false)
	if err != nil {
		return "", err
	}
	parent := manager.GetConfig().DockerParent
	if parent == "" {
		return "", errors.New("docker_parent is not configured; pass --parent or run 'dockup config init'")
	}
	return parent, nil
}
