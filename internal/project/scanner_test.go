package project

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/pkg/models"
)

func writeFile(c *qt.C, path, content string) {
	c.Helper()
	c.Assert(os.MkdirAll(filepath.Dir(path), 0755), qt.IsNil)
	c.Assert(os.WriteFile(path, []byte(content), 0644), qt.IsNil)
}

func collect(c *qt.C, parent string) []models.Application {
	c.Helper()
	seq, err := Scan(parent)
	c.Assert(err, qt.IsNil)

	var apps []models.Application
	for app := range seq {
		apps = append(apps, app)
	}
	return apps
}

func TestScanFindsComposeDirectories(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()

	writeFile(c, filepath.Join(root, "beta", "docker-compose.yml"), "services: {}\n")
	writeFile(c, filepath.Join(root, "alpha", "compose.yaml"), "services: {}\n")
	writeFile(c, filepath.Join(root, "notes", "README.md"), "nothing here\n")
	writeFile(c, filepath.Join(root, ".hidden", "compose.yaml"), "services: {}\n")
	writeFile(c, filepath.Join(root, "loose-file.yml"), "services: {}\n")

	apps := collect(c, root)
	c.Assert(apps, qt.HasLen, 2)
	c.Assert(apps[0].Name, qt.Equals, "alpha")
	c.Assert(apps[0].Path, qt.Equals, filepath.Join(root, "alpha"))
	c.Assert(apps[0].ComposeFiles, qt.DeepEquals, []string{filepath.Join(root, "alpha", "compose.yaml")})
	c.Assert(apps[1].Name, qt.Equals, "beta")
}

func TestScanPrefersComposeYAMLAndAddsOverride(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()

	writeFile(c, filepath.Join(root, "app", "docker-compose.yml"), "services: {}\n")
	writeFile(c, filepath.Join(root, "app", "compose.yaml"), "services: {}\n")
	writeFile(c, filepath.Join(root, "app", "docker-compose.override.yml"), "services: {}\n")

	apps := collect(c, root)
	c.Assert(apps, qt.HasLen, 1)
	c.Assert(apps[0].ComposeFiles, qt.DeepEquals, []string{
		filepath.Join(root, "app", "compose.yaml"),
		filepath.Join(root, "app", "docker-compose.override.yml"),
	})
}

func TestScanStopsWhenConsumerStops(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c"} {
		writeFile(c, filepath.Join(root, name, "compose.yml"), "services: {}\n")
	}

	seq, err := Scan(root)
	c.Assert(err, qt.IsNil)

	var seen []string
	for app := range seq {
		seen = append(seen, app.Name)
		if len(seen) == 2 {
			break
		}
	}
	c.Assert(seen, qt.DeepEquals, []string{"a", "b"})
}

func TestScanMissingParent(t *testing.T) {
	c := qt.New(t)

	_, err := Scan(filepath.Join(t.TempDir(), "missing"))
	c.Assert(fault.Is(err, fault.KindScan), qt.IsTrue)
}

func TestScanParentIsFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "file")
	writeFile(c, path, "x")

	_, err := Scan(path)
	c.Assert(fault.Is(err, fault.KindScan), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, `.*is not a directory`)
}

func TestScanEmptyParent(t *testing.T) {
	c := qt.New(t)

	apps := collect(c, t.TempDir())
	c.Assert(apps, qt.HasLen, 0)
}
