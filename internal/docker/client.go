package docker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/docker/docker/client"

	"github.com/aelpxy/dockup/internal/runtime"
)

const DefaultHelperImage = "alpine:latest"

type Client struct {
	cli         *client.Client
	runtimeInfo *runtime.RuntimeInfo
	logger      *slog.Logger

	helperImage string
	imageMu     sync.Mutex
	imageReady  bool
}

func NewClient(helperImage string, logger *slog.Logger) (*Client, error) {
	runtimeInfo, err := runtime.DetectRuntime()
	if err != nil {
		return nil, fmt.Errorf("failed to detect container runtime: %w\nplease install docker or podman", err)
	}

	if err := runtimeInfo.EnsureSocketExists(); err != nil {
		return nil, err
	}

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if os.Getenv("DOCKER_HOST") == "" {
		opts = append(opts, client.WithHost(runtimeInfo.GetSocketURI()))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create container runtime client: %w", err)
	}

	if helperImage == "" {
		helperImage = DefaultHelperImage
	}

	return &Client{
		cli:         cli,
		runtimeInfo: runtimeInfo,
		logger:      logger,
		helperImage: helperImage,
	}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) GetRuntimeInfo() *runtime.RuntimeInfo {
	return c.runtimeInfo
}

// ServerVersion pings the engine and reports its version.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ContainerOpTimeout)
	defer cancel()

	version, err := c.cli.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to reach container runtime: %w", err)
	}
	return version.Version, nil
}
