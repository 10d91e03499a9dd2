package config

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aelpxy/dockup/internal/constants"
	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/internal/utils"
	"github.com/aelpxy/dockup/pkg/models"
)

// Validate reports every missing or invalid key at once as a CONFIG error.
func Validate(c *models.RunConfig) error {
	var errs []error
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	require("docker_parent", c.DockerParent)
	require("remote_backup_path", c.RemoteBackupPath)
	require("ssh.host", c.SSH.Host)
	require("ssh.user", c.SSH.User)
	require("ssh.key", c.SSH.Key)
	require("email.host", c.Email.Host)
	require("email.user", c.Email.User)
	require("email.password", c.Email.Password)
	require("email.notify_email", c.Email.NotifyEmail)

	if c.RemoteBackupPath != "" && !path.IsAbs(c.RemoteBackupPath) {
		errs = append(errs, fmt.Errorf("remote_backup_path must be absolute: %s", c.RemoteBackupPath))
	}
	if !c.SSH.InsecureIgnoreHostKey && c.SSH.KnownHosts == "" {
		errs = append(errs, errors.New("ssh.known_hosts is required unless ssh.insecure_ignore_host_key is set"))
	}
	if !utils.IsValidPort(c.SSH.Port) {
		errs = append(errs, fmt.Errorf("ssh.port out of range: %d", c.SSH.Port))
	}
	if !utils.IsValidPort(c.Email.Port) {
		errs = append(errs, fmt.Errorf("email.port out of range: %d", c.Email.Port))
	}
	if c.Email.NotifyEmail != "" && !utils.IsValidEmail(c.Email.NotifyEmail) {
		errs = append(errs, fmt.Errorf("email.notify_email is not a valid address: %s", c.Email.NotifyEmail))
	}
	if c.SSH.DialTimeout.Duration <= 0 {
		errs = append(errs, errors.New("ssh.dial_timeout must be positive"))
	}

	if c.Backup.Concurrency < constants.MinConcurrency || c.Backup.Concurrency > constants.MaxConcurrency {
		errs = append(errs, fmt.Errorf("backup.concurrency must be between %d and %d", constants.MinConcurrency, constants.MaxConcurrency))
	}
	if c.Backup.AppTimeout.Duration <= 0 {
		errs = append(errs, errors.New("backup.app_timeout must be positive"))
	}
	if c.Retry.MaxAttempts < constants.MinRetryAttempts || c.Retry.MaxAttempts > constants.MaxRetryAttempts {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be between %d and %d", constants.MinRetryAttempts, constants.MaxRetryAttempts))
	}
	if c.Retry.BaseDelay.Duration <= 0 {
		errs = append(errs, errors.New("retry.base_delay must be positive"))
	}
	if c.Retry.MaxDelay.Duration < c.Retry.BaseDelay.Duration {
		errs = append(errs, errors.New("retry.max_delay must not be below retry.base_delay"))
	}

	if err := joinErrors(errs); err != nil {
		return fault.New(fault.KindConfig, "validate config", err)
	}
	return nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
