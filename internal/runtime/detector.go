package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type RuntimeType string

const (
	RuntimeDocker RuntimeType = "docker"
	RuntimePodman RuntimeType = "podman"
)

const dockerSocketPath = "/var/run/docker.sock"

type RuntimeInfo struct {
	Type       RuntimeType
	SocketPath string
	IsRootless bool
	// FromEnv is set when DOCKER_HOST chose the endpoint.
	FromEnv bool
}

// DetectRuntime finds the engine socket: DOCKER_HOST first, then the docker
// socket, then the podman socket for the current user.
func DetectRuntime() (*RuntimeInfo, error) {
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		info := &RuntimeInfo{Type: RuntimeDocker, FromEnv: true}
		if strings.Contains(dockerHost, "podman") {
			info.Type = RuntimePodman
		}
		info.SocketPath = strings.TrimPrefix(dockerHost, "unix://")
		return info, nil
	}

	if _, err := os.Stat(dockerSocketPath); err == nil {
		return &RuntimeInfo{Type: RuntimeDocker, SocketPath: dockerSocketPath}, nil
	}

	podmanSocket := GetPodmanSocketPath()
	if _, err := os.Stat(podmanSocket); err == nil {
		return &RuntimeInfo{
			Type:       RuntimePodman,
			SocketPath: podmanSocket,
			IsRootless: os.Getuid() != 0,
		}, nil
	}

	return nil, fmt.Errorf("no container runtime detected (tried %s, %s)", dockerSocketPath, podmanSocket)
}

func (r *RuntimeInfo) GetSocketURI() string {
	if r.FromEnv && strings.Contains(r.SocketPath, "://") {
		return r.SocketPath
	}
	return fmt.Sprintf("unix://%s", r.SocketPath)
}

func (r *RuntimeInfo) GetRuntimeName() string {
	name := string(r.Type)
	if r.Type == RuntimePodman && r.IsRootless {
		name += " (rootless)"
	}
	return name
}

// EnsureSocketExists checks local unix sockets only. Remote endpoints from
// DOCKER_HOST are left to the client.
func (r *RuntimeInfo) EnsureSocketExists() error {
	if strings.Contains(r.SocketPath, "://") {
		return nil
	}
	if _, err := os.Stat(r.SocketPath); err != nil {
		if r.Type == RuntimePodman {
			return fmt.Errorf("podman socket not found at %s - run 'systemctl --user start podman.socket' to start the service", r.SocketPath)
		}
		return fmt.Errorf("runtime socket not found at %s", r.SocketPath)
	}
	return nil
}

func GetPodmanSocketPath() string {
	if os.Getuid() != 0 {
		return filepath.Join("/run/user", fmt.Sprintf("%d", os.Getuid()), "podman", "podman.sock")
	}
	return "/run/podman/podman.sock"
}
