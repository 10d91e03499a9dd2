package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/pkg/models"
)

// field binds a dotted config key to its environment variable.
type field struct {
	key    string
	env    string
	secret bool
	get    func(*models.RunConfig) string
	set    func(*models.RunConfig, string) error
}

func stringField(key, env string, ptr func(*models.RunConfig) *string) field {
	return field{
		key: key,
		env: env,
		get: func(c *models.RunConfig) string { return *ptr(c) },
		set: func(c *models.RunConfig, v string) error {
			*ptr(c) = strings.TrimSpace(v)
			return nil
		},
	}
}

func intField(key, env string, ptr func(*models.RunConfig) *int) field {
	return field{
		key: key,
		env: env,
		get: func(c *models.RunConfig) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *models.RunConfig, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid integer %q", v)
			}
			*ptr(c) = n
			return nil
		},
	}
}

func boolField(key, env string, ptr func(*models.RunConfig) *bool) field {
	return field{
		key: key,
		env: env,
		get: func(c *models.RunConfig) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *models.RunConfig, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid boolean %q", v)
			}
			*ptr(c) = b
			return nil
		},
	}
}

func durationField(key, env string, ptr func(*models.RunConfig) *models.Duration) field {
	return field{
		key: key,
		env: env,
		get: func(c *models.RunConfig) string { return ptr(c).String() },
		set: func(c *models.RunConfig, v string) error {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid duration %q", v)
			}
			ptr(c).Duration = d
			return nil
		},
	}
}

func secret(f field) field {
	f.secret = true
	return f
}

var fields = []field{
	stringField("docker_parent", "DOCKER_PARENT", func(c *models.RunConfig) *string { return &c.DockerParent }),
	stringField("remote_backup_path", "REMOTE_BACKUP_PATH", func(c *models.RunConfig) *string { return &c.RemoteBackupPath }),
	stringField("ssh.host", "SSH_HOST", func(c *models.RunConfig) *string { return &c.SSH.Host }),
	intField("ssh.port", "SSH_PORT", func(c *models.RunConfig) *int { return &c.SSH.Port }),
	stringField("ssh.user", "SSH_USER", func(c *models.RunConfig) *string { return &c.SSH.User }),
	stringField("ssh.key", "SSH_KEY", func(c *models.RunConfig) *string { return &c.SSH.Key }),
	stringField("ssh.known_hosts", "SSH_KNOWN_HOSTS", func(c *models.RunConfig) *string { return &c.SSH.KnownHosts }),
	boolField("ssh.insecure_ignore_host_key", "SSH_INSECURE_IGNORE_HOST_KEY", func(c *models.RunConfig) *bool { return &c.SSH.InsecureIgnoreHostKey }),
	durationField("ssh.dial_timeout", "SSH_DIAL_TIMEOUT", func(c *models.RunConfig) *models.Duration { return &c.SSH.DialTimeout }),
	stringField("email.host", "EMAIL_HOST", func(c *models.RunConfig) *string { return &c.Email.Host }),
	intField("email.port", "EMAIL_PORT", func(c *models.RunConfig) *int { return &c.Email.Port }),
	stringField("email.user", "EMAIL_USER", func(c *models.RunConfig) *string { return &c.Email.User }),
	secret(stringField("email.password", "EMAIL_PASSWORD", func(c *models.RunConfig) *string { return &c.Email.Password })),
	stringField("email.notify_email", "NOTIFY_EMAIL", func(c *models.RunConfig) *string { return &c.Email.NotifyEmail }),
	intField("backup.concurrency", "DOCKUP_CONCURRENCY", func(c *models.RunConfig) *int { return &c.Backup.Concurrency }),
	durationField("backup.app_timeout", "DOCKUP_APP_TIMEOUT", func(c *models.RunConfig) *models.Duration { return &c.Backup.AppTimeout }),
	stringField("backup.scratch_dir", "DOCKUP_SCRATCH_DIR", func(c *models.RunConfig) *string { return &c.Backup.ScratchDir }),
	stringField("backup.helper_image", "DOCKUP_HELPER_IMAGE", func(c *models.RunConfig) *string { return &c.Backup.HelperImage }),
	intField("retry.max_attempts", "DOCKUP_RETRY_ATTEMPTS", func(c *models.RunConfig) *int { return &c.Retry.MaxAttempts }),
	durationField("retry.base_delay", "DOCKUP_RETRY_BASE_DELAY", func(c *models.RunConfig) *models.Duration { return &c.Retry.BaseDelay }),
	durationField("retry.max_delay", "DOCKUP_RETRY_MAX_DELAY", func(c *models.RunConfig) *models.Duration { return &c.Retry.MaxDelay }),
}

func lookupField(key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

func keyList() string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return strings.Join(keys, ", ")
}

// applyEnv fills config from the environment. Unset variables keep their
// defaults.
func applyEnv(config *models.RunConfig, lookup func(string) (string, bool)) error {
	var errs []error
	for _, f := range fields {
		value, ok := lookup(f.env)
		if !ok || value == "" {
			continue
		}
		if err := f.set(config, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.env, err))
		}
	}
	if err := joinErrors(errs); err != nil {
		return fault.New(fault.KindConfig, "load environment", err)
	}
	return nil
}
