package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aelpxy/dockup/internal/config"
)

// prompt is one question of the first-run setup.
type prompt struct {
	key    string
	label  string
	hint   string
	secret bool
}

var initPrompts = []prompt{
	{key: "docker_parent", label: "docker parent directory", hint: "each subdirectory with a compose file is one application"},
	{key: "remote_backup_path", label: "remote backup path", hint: "absolute path on the ssh host"},
	{key: "ssh.host", label: "ssh host"},
	{key: "ssh.port", label: "ssh port"},
	{key: "ssh.user", label: "ssh user"},
	{key: "ssh.key", label: "ssh private key", hint: "for example ~/.ssh/id_ed25519"},
	{key: "ssh.known_hosts", label: "known_hosts file"},
	{key: "email.host", label: "smtp host"},
	{key: "email.port", label: "smtp port"},
	{key: "email.user", label: "smtp user"},
	{key: "email.password", label: "smtp password", secret: true},
	{key: "email.notify_email", label: "report recipient"},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "interactive first-run setup",
	Long:  "ask for the ssh target, the smtp relay and the directories, then write the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := newConfigManager()
		if err != nil {
			return err
		}
		// Start from the existing record so a second init only edits it.
		if err := manager.Load(); err != nil {
			return err
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println()
		fmt.Println(titleStyle.Render("==> dockup configuration"))
		fmt.Println()
		fmt.Println("  " + dimStyle.Render("press enter to keep the value in brackets"))
		fmt.Println()

		for _, p := range initPrompts {
			if err := ask(manager, reader, p); err != nil {
				return err
			}
		}

		if err := manager.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Println()
		fmt.Println(successStyle.Render("  [done]") + " configuration saved to " + infoStyle.Render(manager.Path()))

		if err := manager.Validate(); err != nil {
			fmt.Println()
			fmt.Println("  " + errorStyle.Render("[error]") + " configuration is incomplete")
			fmt.Println("  " + dimStyle.Render(err.Error()))
			return nil
		}

		fmt.Println()
		fmt.Println(titleStyle.Render("==> next steps"))
		fmt.Println()
		fmt.Println("  " + dimStyle.Render("1. check connectivity:"))
		fmt.Println("  " + infoStyle.Render("     dockup doctor"))
		fmt.Println("  " + dimStyle.Render("2. check mail delivery:"))
		fmt.Println("  " + infoStyle.Render("     dockup config test-email"))
		fmt.Println("  " + dimStyle.Render("3. schedule a backup, for example from cron:"))
		fmt.Println("  " + infoStyle.Render("     0 3 * * * dockup backup"))
		return nil
	},
}

// ask keeps prompting until the answer is accepted for p.key.
func ask(manager *config.Manager, reader *bufio.Reader, p prompt) error {
	current, err := manager.Get(p.key)
	if err != nil {
		return err
	}

	for {
		if p.hint != "" {
			fmt.Println("  " + dimStyle.Render(p.hint))
		}
		shown := current
		if p.secret && shown != "" {
			shown = "********"
		}
		if shown != "" {
			fmt.Printf("  %s [%s]: ", p.label, shown)
		} else {
			fmt.Printf("  %s: ", p.label)
		}

		input, err := readAnswer(reader, p.secret)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p.label, err)
		}
		if input == "" {
			return nil
		}

		if err := manager.Set(p.key, input); err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", errorStyle.Render("[error]"), err)
			continue
		}
		return nil
	}
}

// readAnswer reads one line, without echo for secrets typed on a terminal.
func readAnswer(reader *bufio.Reader, secret bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if secret && term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
