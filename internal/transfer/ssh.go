package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/pkg/models"
)

// Dialer opens a fresh remote filesystem connection.
type Dialer interface {
	Dial(ctx context.Context) (RemoteFS, error)
}

// SSHDialer connects over SSH with public key authentication and starts an
// SFTP subsystem on the connection.
type SSHDialer struct {
	cfg    models.SSHConfig
	logger *slog.Logger
}

func NewSSHDialer(cfg models.SSHConfig, logger *slog.Logger) *SSHDialer {
	return &SSHDialer{cfg: cfg, logger: logger}
}

func (d *SSHDialer) Dial(ctx context.Context) (RemoteFS, error) {
	const op = "dial"

	clientConfig, err := d.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := d.cfg.Address()
	dialer := &net.Dialer{Timeout: d.cfg.DialTimeout.Duration}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError(ctx, op, fmt.Errorf("failed to connect to %s: %w", addr, err))
	}

	// The handshake has no context of its own.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	stop()
	if err != nil {
		conn.Close()
		return nil, classifyDialError(ctx, op, fmt.Errorf("ssh handshake with %s failed: %w", addr, err))
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, classifyDialError(ctx, op, fmt.Errorf("failed to start sftp subsystem: %w", err))
	}

	d.logger.Debug("connected to remote", "addr", addr, "user", d.cfg.User)
	return &sftpFS{client: sftpClient, closer: sshClient}, nil
}

func (d *SSHDialer) clientConfig() (*ssh.ClientConfig, error) {
	const op = "dial"

	keyData, err := os.ReadFile(d.cfg.Key)
	if err != nil {
		return nil, fault.NewFatal(fault.KindTransfer, op, fmt.Errorf("failed to read ssh key: %w", err))
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fault.NewFatal(fault.KindTransfer, op, fmt.Errorf("failed to parse ssh key %s: %w", d.cfg.Key, err))
	}

	hostKeyCallback, err := d.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            d.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.cfg.DialTimeout.Duration,
	}, nil
}

func (d *SSHDialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if d.cfg.InsecureIgnoreHostKey {
		d.logger.Warn("ssh host key verification is disabled", "host", d.cfg.Host)
		return ssh.InsecureIgnoreHostKey(), nil
	}

	callback, err := knownhosts.New(d.cfg.KnownHosts)
	if err != nil {
		return nil, fault.NewFatal(fault.KindTransfer, "dial", fmt.Errorf("failed to load known hosts %s: %w", d.cfg.KnownHosts, err))
	}
	return callback, nil
}

// classifyDialError marks authentication and host key failures as fatal.
// Network failures stay retryable.
func classifyDialError(ctx context.Context, op string, err error) error {
	if ctxErr := fault.FromContext(ctx, op); ctxErr != nil {
		return ctxErr
	}

	var keyErr *knownhosts.KeyError
	var revokedErr *knownhosts.RevokedError
	switch {
	case errors.As(err, &keyErr), errors.As(err, &revokedErr):
		return fault.NewFatal(fault.KindTransfer, op, fmt.Errorf("host key rejected: %w", err))
	case isAuthError(err):
		return fault.NewFatal(fault.KindTransfer, op, fmt.Errorf("authentication failed: %w", err))
	}
	return fault.New(fault.KindTransfer, op, err)
}

// x/crypto/ssh reports client auth failures only as text.
func isAuthError(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}
