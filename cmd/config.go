package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aelpxy/dockup/internal/notify"
	"github.com/aelpxy/dockup/internal/report"
	"github.com/aelpxy/dockup/internal/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "manage dockup configuration",
	Long:  "manage the persisted dockup configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "display current configuration",
	Long:  "show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := loadConfig(false)
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println(titleStyle.Render("==> dockup configuration"))
		fmt.Println()

		if manager.FromFile() {
			fmt.Println("  " + labelStyle.Render("source:") + " " + infoStyle.Render(manager.Path()))
		} else {
			fmt.Println("  " + labelStyle.Render("source:") + " " + infoStyle.Render("environment"))
			fmt.Println("  " + dimStyle.Render("no config file at "+manager.Path()))
		}
		fmt.Println()

		for _, entry := range manager.Entries() {
			value := entry.Value
			if value == "" {
				value = dimStyle.Render("(unset)")
			} else {
				value = valueStyle.Render(utils.TruncateString(value, 60))
			}
			fmt.Printf("  %-32s %s  %s\n", labelStyle.Render(entry.Key), value, dimStyle.Render("$"+entry.Env))
		}
		fmt.Println()

		if err := manager.Validate(); err != nil {
			fmt.Println("  " + errorStyle.Render("[error]") + " configuration is incomplete")
			fmt.Println("  " + dimStyle.Render(err.Error()))
		} else {
			fmt.Println("  " + successStyle.Render("[done]") + " configuration is valid")
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "change one setting",
	Long:  "set one dotted key, for example 'ssh.port 2222', and save the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := loadConfig(false)
		if err != nil {
			return err
		}

		if err := manager.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := manager.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		value, _ := manager.Get(args[0])
		fmt.Println(successStyle.Render("  [done]") + " " + args[0] + " = " + valueStyle.Render(value))
		return nil
	},
}

var configTestEmailCmd = &cobra.Command{
	Use:   "test-email",
	Short: "send a test notification",
	Long:  "send a short message through the configured smtp relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closer := newLogger()
		defer closer.Close()

		manager, err := loadConfig(true)
		if err != nil {
			return err
		}
		cfg := manager.Snapshot()

		ctx, cancel := context.WithTimeout(cmd.Context(), reportTimeout)
		defer cancel()

		host := hostname()
		msg := report.Message{
			Subject: fmt.Sprintf("[dockup] test message from %s", host),
			Text:    fmt.Sprintf("dockup on %s can deliver backup reports.\nsent at %s\n", host, time.Now().UTC().Format(time.RFC3339)),
		}

		fmt.Println(progressStyle.Render("==> sending test email to " + cfg.Email.NotifyEmail))
		if err := notify.NewMailer(cfg.Email, logger).Notify(ctx, msg); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[error]"), err)
			return exitWith(ExitUsage, nil)
		}
		fmt.Println(successStyle.Render("  [done]") + " test email sent")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configTestEmailCmd)
}
