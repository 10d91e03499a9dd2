package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/juju/clock"

	"github.com/aelpxy/dockup/internal/fault"
)

const partialSuffix = ".partial"

var errSessionClosed = errors.New("session closed")

// Client ships archives to the remote backup root.
type Client struct {
	dialer Dialer
	root   string
	policy RetryPolicy
	clock  clock.Clock
	logger *slog.Logger
}

func NewClient(dialer Dialer, remoteRoot string, policy RetryPolicy, logger *slog.Logger) *Client {
	return &Client{
		dialer: dialer,
		root:   remoteRoot,
		policy: policy,
		clock:  clock.WallClock,
		logger: logger,
	}
}

// WithClock returns a copy of the client that sleeps on clk between retries.
func (c *Client) WithClock(clk clock.Clock) *Client {
	copied := *c
	copied.clock = clk
	return &copied
}

// Open dials the remote host, retrying transient failures. The session is
// closed when ctx is done so blocked writes return.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	s := &Session{client: c, logger: c.logger}

	err := c.policy.Do(ctx, c.clock, "open session", func() error {
		return s.connect(ctx)
	}, func(err error, attempt int) {
		c.logger.Warn("failed to open remote session", "attempt", attempt, "error", err)
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.stop = context.AfterFunc(ctx, func() { s.Close() })
	s.mu.Unlock()
	return s, nil
}

// Session is one connection to the remote host, used by a single pipeline.
type Session struct {
	client *Client
	logger *slog.Logger

	mu     sync.Mutex
	fs     RemoteFS
	closed bool
	stop   func() bool
}

func (s *Session) connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fault.NewFatal(fault.KindTransfer, "dial", errSessionClosed)
	}
	if s.fs != nil {
		return nil
	}

	fs, err := s.client.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	s.fs = fs
	return nil
}

// remote returns the live connection, dialing a new one when the last was
// dropped.
func (s *Session) remote(ctx context.Context) (RemoteFS, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fs == nil {
		return nil, fault.NewFatal(fault.KindTransfer, "dial", errSessionClosed)
	}
	return s.fs, nil
}

// drop discards a connection that failed mid-transfer.
func (s *Session) drop(fs RemoteFS) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fs == fs {
		s.fs = nil
		fs.Close()
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		s.stop()
	}
	if s.closed {
		return nil
	}
	s.closed = true
	if s.fs == nil {
		return nil
	}
	err := s.fs.Close()
	s.fs = nil
	return err
}

// EnsureRemoteLayout creates <root>/<app>/<runTimestamp>/{REPO,VOLUMES}.
func (s *Session) EnsureRemoteLayout(ctx context.Context, app, runTimestamp string) (Layout, error) {
	layout := NewLayout(s.client.root, app, runTimestamp)
	op := "create remote layout " + layout.RunDir

	err := s.client.policy.Do(ctx, s.client.clock, op, func() error {
		fs, err := s.remote(ctx)
		if err != nil {
			return err
		}
		for _, dir := range []string{layout.RepoDir, layout.VolumesDir} {
			if err := fs.MkdirAll(dir); err != nil {
				s.drop(fs)
				return wrapTransferError(ctx, op, fmt.Errorf("failed to create %s: %w", dir, err))
			}
		}
		return nil
	}, s.notify(op))
	if err != nil {
		return Layout{}, err
	}
	return layout, nil
}

// StatRoot checks that the remote backup root exists and is a directory.
func (s *Session) StatRoot(ctx context.Context) (os.FileInfo, error) {
	op := "stat " + s.client.root

	fs, err := s.remote(ctx)
	if err != nil {
		return nil, err
	}
	info, err := fs.Stat(s.client.root)
	if err != nil {
		return nil, wrapTransferError(ctx, op, err)
	}
	if !info.IsDir() {
		return nil, fault.Newf(fault.KindTransfer, op, "not a directory")
	}
	return info, nil
}

// Send streams r to remotePath through a ".partial" file, checks the remote
// size against the bytes sent and renames it into place.
func (s *Session) Send(ctx context.Context, r io.Reader, remotePath string) (int64, error) {
	op := "send " + remotePath

	fs, err := s.remote(ctx)
	if err != nil {
		return 0, wrapTransferError(ctx, op, err)
	}

	n, err := send(ctx, fs, r, remotePath)
	if err != nil {
		s.drop(fs)
		return n, wrapTransferError(ctx, op, err)
	}

	s.logger.Debug("sent archive", "path", remotePath, "bytes", n)
	return n, nil
}

func send(ctx context.Context, fs RemoteFS, r io.Reader, remotePath string) (int64, error) {
	partial := remotePath + partialSuffix

	f, err := fs.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", partial, err)
	}

	n, copyErr := io.Copy(f, contextReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		fs.Remove(partial)
		return n, fmt.Errorf("failed to write %s: %w", partial, err)
	}

	info, err := fs.Stat(partial)
	if err != nil {
		fs.Remove(partial)
		return n, fmt.Errorf("failed to stat %s: %w", partial, err)
	}
	if info.Size() != n {
		fs.Remove(partial)
		return n, fmt.Errorf("size mismatch for %s: sent %d bytes, remote has %d", partial, n, info.Size())
	}

	if err := fs.Rename(partial, remotePath); err != nil {
		return n, fmt.Errorf("failed to rename %s: %w", partial, err)
	}
	return n, nil
}

// SendFile sends the local file at localPath, retrying transient failures
// with a fresh connection and a re-opened file each attempt.
func (s *Session) SendFile(ctx context.Context, localPath, remotePath string) (int64, error) {
	op := "send " + remotePath

	var sent int64
	err := s.client.policy.Do(ctx, s.client.clock, op, func() error {
		f, err := os.Open(localPath)
		if err != nil {
			return fault.NewFatal(fault.KindTransfer, op, fmt.Errorf("failed to open %s: %w", localPath, err))
		}
		defer f.Close()

		sent, err = s.Send(ctx, f, remotePath)
		return err
	}, s.notify(op))
	if err != nil {
		return sent, err
	}
	return sent, nil
}

func (s *Session) notify(op string) func(error, int) {
	return func(err error, attempt int) {
		s.logger.Warn("transfer attempt failed", "op", op, "attempt", attempt, "error", err)
	}
}

func wrapTransferError(ctx context.Context, op string, err error) error {
	if ctxErr := fault.FromContext(ctx, op); ctxErr != nil {
		return ctxErr
	}
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}
	return fault.New(fault.KindTransfer, op, err)
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
