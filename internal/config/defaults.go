package config

import (
	"os"
	"time"

	"github.com/aelpxy/dockup/internal/docker"
	"github.com/aelpxy/dockup/pkg/models"
)

const (
	DefaultConcurrency = 2
	DefaultAppTimeout  = time.Hour
	DefaultSSHPort     = 22
	DefaultKnownHosts  = "~/.ssh/known_hosts"
	DefaultDialTimeout = 30 * time.Second
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = time.Minute
	DefaultSMTPPort    = 587
)

func Defaults() models.RunConfig {
	return models.RunConfig{
		SSH: models.SSHConfig{
			Port:        DefaultSSHPort,
			KnownHosts:  DefaultKnownHosts,
			DialTimeout: models.Duration{Duration: DefaultDialTimeout},
		},
		Email: models.EmailConfig{
			Port: DefaultSMTPPort,
		},
		Backup: models.BackupSettings{
			Concurrency: DefaultConcurrency,
			AppTimeout:  models.Duration{Duration: DefaultAppTimeout},
			ScratchDir:  os.TempDir(),
			HelperImage: docker.DefaultHelperImage,
		},
		Retry: models.RetrySettings{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   models.Duration{Duration: DefaultBaseDelay},
			MaxDelay:    models.Duration{Duration: DefaultMaxDelay},
		},
	}
}
