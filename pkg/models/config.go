package models

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// RunConfig is the immutable configuration of one backup run.
type RunConfig struct {
	DockerParent     string         `toml:"docker_parent" json:"docker_parent"`
	RemoteBackupPath string         `toml:"remote_backup_path" json:"remote_backup_path"`
	SSH              SSHConfig      `toml:"ssh" json:"ssh"`
	Email            EmailConfig    `toml:"email" json:"email"`
	Backup           BackupSettings `toml:"backup" json:"backup"`
	Retry            RetrySettings  `toml:"retry" json:"retry"`
}

type SSHConfig struct {
	Host                  string   `toml:"host" json:"host"`
	Port                  int      `toml:"port" json:"port"`
	User                  string   `toml:"user" json:"user"`
	Key                   string   `toml:"key" json:"key"`
	KnownHosts            string   `toml:"known_hosts" json:"known_hosts"`
	InsecureIgnoreHostKey bool     `toml:"insecure_ignore_host_key" json:"insecure_ignore_host_key"`
	DialTimeout           Duration `toml:"dial_timeout" json:"dial_timeout"`
}

type EmailConfig struct {
	Host        string `toml:"host" json:"host"`
	Port        int    `toml:"port" json:"port"`
	User        string `toml:"user" json:"user"`
	Password    string `toml:"password" json:"password"`
	NotifyEmail string `toml:"notify_email" json:"notify_email"`
}

type BackupSettings struct {
	Concurrency int      `toml:"concurrency" json:"concurrency"`
	AppTimeout  Duration `toml:"app_timeout" json:"app_timeout"`
	ScratchDir  string   `toml:"scratch_dir" json:"scratch_dir"`
	HelperImage string   `toml:"helper_image" json:"helper_image"`
}

type RetrySettings struct {
	MaxAttempts int      `toml:"max_attempts" json:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay" json:"base_delay"`
	MaxDelay    Duration `toml:"max_delay" json:"max_delay"`
}

// Address returns host:port for the ssh target.
func (c SSHConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Duration is a time.Duration that round-trips through TOML as "30m".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}
