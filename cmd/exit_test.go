package cmd

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/aelpxy/dockup/internal/backup"
)

func TestExitCodeFor(t *testing.T) {
	c := qt.New(t)
	c.Assert(exitCodeFor(backup.RunAllOK), qt.Equals, ExitOK)
	c.Assert(exitCodeFor(backup.RunDegraded), qt.Equals, ExitDegraded)
	c.Assert(exitCodeFor(backup.RunAborted), qt.Equals, ExitAborted)
}

func TestExitError(t *testing.T) {
	c := qt.New(t)

	cause := errors.New("lock held")
	err := exitWith(ExitLocked, cause)

	var exit *exitError
	c.Assert(errors.As(err, &exit), qt.IsTrue)
	c.Assert(exit.code, qt.Equals, ExitLocked)
	c.Assert(errors.Is(err, cause), qt.IsTrue)
	c.Assert(err.Error(), qt.Equals, "lock held")

	c.Assert(exitWith(ExitDegraded, nil).Error(), qt.Equals, "exit status 2")
}

func TestInitPromptsUseKnownKeys(t *testing.T) {
	c := qt.New(t)

	manager, err := newConfigManager()
	c.Assert(err, qt.IsNil)
	for _, p := range initPrompts {
		_, err := manager.Get(p.key)
		c.Assert(err, qt.IsNil, qt.Commentf("key %s", p.key))
	}
}
