package project

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/pkg/models"
)

func newTestResolver() *Resolver {
	return NewResolver(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func appWithCompose(c *qt.C, name string, files map[string]string) models.Application {
	c.Helper()
	dir := filepath.Join(c.TempDir(), name)
	app := models.Application{Name: name, Path: dir}
	for _, fileName := range []string{"compose.yaml", "compose.override.yaml"} {
		content, ok := files[fileName]
		if !ok {
			continue
		}
		path := filepath.Join(dir, fileName)
		writeFile(c, path, content)
		app.ComposeFiles = append(app.ComposeFiles, path)
	}
	return app
}

func TestResolveSharedVolumeCollapses(t *testing.T) {
	c := qt.New(t)
	app := appWithCompose(c, "alpha", map[string]string{"compose.yaml": `
services:
  web:
    image: nginx
    volumes:
      - data:/usr/share/nginx/html
  worker:
    image: busybox
    volumes:
      - data:/data:ro
      - type: volume
        source: data
        target: /again
volumes:
  data:
`})

	refs, err := newTestResolver().Resolve(app)
	c.Assert(err, qt.IsNil)
	c.Assert(refs, qt.DeepEquals, []models.VolumeRef{{Declared: "data", Resolved: "alpha_data"}})
}

func TestResolveBindMountsOnly(t *testing.T) {
	c := qt.New(t)
	app := appWithCompose(c, "beta", map[string]string{"compose.yaml": `
services:
  app:
    image: busybox
    volumes:
      - ./config:/etc/app
      - /var/log:/logs
      - ~/cache:/cache
      - type: bind
        source: ./more
        target: /more
      - type: tmpfs
        target: /tmp
      - /anonymous
`})

	refs, err := newTestResolver().Resolve(app)
	c.Assert(err, qt.IsNil)
	c.Assert(refs, qt.HasLen, 0)
}

func TestResolvePreservesFirstSeenOrder(t *testing.T) {
	c := qt.New(t)
	app := appWithCompose(c, "gamma", map[string]string{"compose.yaml": `
services:
  zeta:
    volumes: ["logs:/logs", "db:/db"]
  alpha:
    volumes: ["cache:/cache", "db:/db2"]
volumes:
  db: {}
  cache: {}
  logs: {}
`})

	refs, err := newTestResolver().Resolve(app)
	c.Assert(err, qt.IsNil)
	c.Assert(refs, qt.DeepEquals, []models.VolumeRef{
		{Declared: "logs", Resolved: "gamma_logs"},
		{Declared: "db", Resolved: "gamma_db"},
		{Declared: "cache", Resolved: "gamma_cache"},
	})
}

func TestResolveNamesAndExternalVolumes(t *testing.T) {
	c := qt.New(t)
	app := appWithCompose(c, "My.App", map[string]string{"compose.yaml": `
services:
  svc:
    volumes:
      - plain:/a
      - custom:/b
      - shared:/c
      - legacy:/d
      - undeclared:/e
volumes:
  plain:
  custom:
    name: custom-volume
  shared:
    external: true
  legacy:
    external:
      name: old-shared
`})

	refs, err := newTestResolver().Resolve(app)
	c.Assert(err, qt.IsNil)
	c.Assert(refs, qt.DeepEquals, []models.VolumeRef{
		{Declared: "plain", Resolved: "myapp_plain"},
		{Declared: "custom", Resolved: "custom-volume"},
		{Declared: "shared", Resolved: "shared"},
		{Declared: "legacy", Resolved: "old-shared"},
	})
}

func TestResolveTopLevelProjectName(t *testing.T) {
	c := qt.New(t)
	app := appWithCompose(c, "dir-name", map[string]string{"compose.yaml": `
name: shop
services:
  db:
    volumes: ["pgdata:/var/lib/postgresql/data"]
volumes:
  pgdata:
`})

	refs, err := newTestResolver().Resolve(app)
	c.Assert(err, qt.IsNil)
	c.Assert(refs, qt.DeepEquals, []models.VolumeRef{{Declared: "pgdata", Resolved: "shop_pgdata"}})
}

func TestResolveMergesOverrideFile(t *testing.T) {
	c := qt.New(t)
	app := appWithCompose(c, "delta", map[string]string{
		"compose.yaml": `
services:
  web:
    volumes: ["static:/static"]
volumes:
  static:
`,
		"compose.override.yaml": `
services:
  web:
    volumes: ["uploads:/uploads", "static:/static"]
  cron:
    volumes: ["uploads:/uploads"]
volumes:
  uploads:
`,
	})

	refs, err := newTestResolver().Resolve(app)
	c.Assert(err, qt.IsNil)
	c.Assert(refs, qt.DeepEquals, []models.VolumeRef{
		{Declared: "static", Resolved: "delta_static"},
		{Declared: "uploads", Resolved: "delta_uploads"},
	})
}

func TestResolveIgnoresUnknownKeys(t *testing.T) {
	c := qt.New(t)
	app := appWithCompose(c, "eps", map[string]string{"compose.yaml": `
version: "3.9"
x-common: &common
  restart: always
services:
  web:
    <<: *common
    build:
      context: .
    deploy:
      replicas: 2
    volumes: ["data:/data"]
networks:
  default: {}
volumes:
  data:
    driver: local
    labels:
      a: b
`})

	refs, err := newTestResolver().Resolve(app)
	c.Assert(err, qt.IsNil)
	c.Assert(refs, qt.HasLen, 1)
}

func TestResolveMalformedCompose(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		about   string
		content string
	}{{
		about:   "invalid yaml",
		content: "services:\n  web: [unclosed\n",
	}, {
		about:   "services is a list",
		content: "services:\n  - web\n",
	}, {
		about:   "volume entry is a number list",
		content: "services:\n  web:\n    volumes:\n      - [1, 2]\n",
	}, {
		about:   "empty file",
		content: "\n",
	}}

	for _, test := range tests {
		c.Run(test.about, func(c *qt.C) {
			app := appWithCompose(c, "bad", map[string]string{"compose.yaml": test.content})
			_, err := newTestResolver().Resolve(app)
			c.Assert(fault.Is(err, fault.KindResolution), qt.IsTrue, qt.Commentf("%v", err))
		})
	}
}

func TestNormalizeProjectName(t *testing.T) {
	c := qt.New(t)

	c.Assert(NormalizeProjectName("My App"), qt.Equals, "myapp")
	c.Assert(NormalizeProjectName("_web-01"), qt.Equals, "web-01")
	c.Assert(NormalizeProjectName("nextcloud"), qt.Equals, "nextcloud")
}

func TestParseShortMount(t *testing.T) {
	c := qt.New(t)

	c.Assert(parseShortMount("data:/data:ro"), qt.Equals, mount{Type: "volume", Source: "data", Target: "/data"})
	c.Assert(parseShortMount("./src:/src"), qt.Equals, mount{Type: "bind", Source: "./src", Target: "/src"})
	c.Assert(parseShortMount("/only"), qt.Equals, mount{Type: "volume", Target: "/only"})
}
