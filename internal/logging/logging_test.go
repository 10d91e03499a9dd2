package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	c := qt.New(t)
	var console bytes.Buffer
	logFile := filepath.Join(c.TempDir(), "logs", "dockup.log")

	logger, closer, err := New(Options{LogFile: logFile, Console: &console})
	c.Assert(err, qt.IsNil)

	logger = logger.With("run_id", "run-1")
	logger.Debug("debug only in file", "app", "alpha")
	logger.Info("run started", "app", "alpha")
	c.Assert(closer.Close(), qt.IsNil)

	c.Assert(console.String(), qt.Contains, "msg=\"run started\"")
	c.Assert(console.String(), qt.Not(qt.Contains), "debug only in file")

	data, err := os.ReadFile(logFile)
	c.Assert(err, qt.IsNil)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	c.Assert(lines, qt.HasLen, 2)

	var record map[string]any
	c.Assert(json.Unmarshal([]byte(lines[1]), &record), qt.IsNil)
	c.Assert(record["msg"], qt.Equals, "run started")
	c.Assert(record["run_id"], qt.Equals, "run-1")
	c.Assert(record["app"], qt.Equals, "alpha")
}

func TestNewVerboseConsole(t *testing.T) {
	c := qt.New(t)
	var console bytes.Buffer

	logger, closer, err := New(Options{Verbose: true, Console: &console})
	c.Assert(err, qt.IsNil)
	defer closer.Close()

	logger.WithGroup("ssh").Debug("dialing", "host", "backup.example.com")
	c.Assert(console.String(), qt.Contains, "ssh.host=backup.example.com")
}
