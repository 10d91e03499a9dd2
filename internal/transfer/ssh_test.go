package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/aelpxy/dockup/internal/fault"
)

func TestClassifyDialError(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	tests := []struct {
		about string
		err   error
		fatal bool
	}{{
		about: "auth failure",
		err:   errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey]"),
		fatal: true,
	}, {
		about: "unknown host key",
		err:   fmt.Errorf("handshake: %w", &knownhosts.KeyError{}),
		fatal: true,
	}, {
		about: "revoked host key",
		err:   fmt.Errorf("handshake: %w", &knownhosts.RevokedError{}),
		fatal: true,
	}, {
		about: "connection refused",
		err:   errors.New("dial tcp 10.0.0.1:22: connect: connection refused"),
	}, {
		about: "eof",
		err:   errors.New("ssh: handshake failed: EOF"),
	}}

	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			err := classifyDialError(ctx, "dial", test.err)
			c.Assert(fault.Is(err, fault.KindTransfer), qt.IsTrue)
			c.Assert(fault.IsFatal(err), qt.Equals, test.fatal)
		})
	}
}

func TestClassifyDialErrorCanceled(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := classifyDialError(ctx, "dial", errors.New("use of closed network connection"))
	c.Assert(fault.Is(err, fault.KindCanceled), qt.IsTrue)
}

func TestSSHDialerMissingKeyIsFatal(t *testing.T) {
	c := qt.New(t)

	dialer := NewSSHDialer(testSSHConfig(c.TempDir()+"/missing"), discardLogger())
	_, err := dialer.Dial(context.Background())
	c.Assert(fault.IsFatal(err), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, `TRANSFER: dial: failed to read ssh key: .*`)
}
