package runtime

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestDetectRuntimeFromEnv(t *testing.T) {
	c := qt.New(t)

	c.Setenv("DOCKER_HOST", "unix:///run/user/1000/podman/podman.sock")
	info, err := DetectRuntime()
	c.Assert(err, qt.IsNil)
	c.Assert(info.Type, qt.Equals, RuntimePodman)
	c.Assert(info.SocketPath, qt.Equals, "/run/user/1000/podman/podman.sock")
	c.Assert(info.GetSocketURI(), qt.Equals, "unix:///run/user/1000/podman/podman.sock")
}

func TestDetectRuntimeRemoteHost(t *testing.T) {
	c := qt.New(t)

	c.Setenv("DOCKER_HOST", "tcp://10.0.0.5:2376")
	info, err := DetectRuntime()
	c.Assert(err, qt.IsNil)
	c.Assert(info.Type, qt.Equals, RuntimeDocker)
	c.Assert(info.GetSocketURI(), qt.Equals, "tcp://10.0.0.5:2376")
	c.Assert(info.EnsureSocketExists(), qt.IsNil)
}

func TestEnsureSocketExistsMissing(t *testing.T) {
	c := qt.New(t)

	info := &RuntimeInfo{Type: RuntimeDocker, SocketPath: c.TempDir() + "/docker.sock"}
	c.Assert(info.EnsureSocketExists(), qt.ErrorMatches, `runtime socket not found at .*`)
}

func TestGetRuntimeName(t *testing.T) {
	c := qt.New(t)

	c.Assert((&RuntimeInfo{Type: RuntimePodman, IsRootless: true}).GetRuntimeName(), qt.Equals, "podman (rootless)")
	c.Assert((&RuntimeInfo{Type: RuntimeDocker}).GetRuntimeName(), qt.Equals, "docker")
}
