package docker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
)

const (
	helperMountPath = "/volume"
	helperLabel     = "dockup.helper"
)

type PullProgress struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Error  string `json:"error"`
}

func (c *Client) PullImage(ctx context.Context, imageName string) error {
	ctx, cancel := context.WithTimeout(ctx, ImagePullTimeout)
	defer cancel()

	reader, err := c.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()

	return readPullProgress(reader, imageName, c.logger)
}

// readPullProgress drains the engine's JSON progress stream. Layer-level
// lines are ignored; image-level status changes are logged at debug. An
// error line fails the pull even though the HTTP call succeeded.
func readPullProgress(r io.Reader, imageName string, logger *slog.Logger) error {
	scanner := bufio.NewScanner(r)
	var lastStatus string

	for scanner.Scan() {
		var progress PullProgress
		if err := json.Unmarshal(scanner.Bytes(), &progress); err != nil {
			continue
		}

		if progress.Error != "" {
			return fmt.Errorf("failed to pull image %s: %s", imageName, progress.Error)
		}

		if progress.ID == "" && progress.Status != lastStatus {
			logger.Debug("pulling helper image", "image", imageName, "status", progress.Status)
			lastStatus = progress.Status
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read pull output: %w", err)
	}
	return nil
}

// ensureHelperImage pulls the helper image once per client when the engine
// does not have it.
func (c *Client) ensureHelperImage(ctx context.Context) error {
	c.imageMu.Lock()
	defer c.imageMu.Unlock()

	if c.imageReady {
		return nil
	}

	_, _, err := c.cli.ImageInspectWithRaw(ctx, c.helperImage)
	switch {
	case err == nil:
	case errdefs.IsNotFound(err):
		c.logger.Info("pulling helper image", "image", c.helperImage)
		if err := c.PullImage(ctx, c.helperImage); err != nil {
			return err
		}
	default:
		return fmt.Errorf("failed to inspect image %s: %w", c.helperImage, err)
	}

	c.imageReady = true
	return nil
}

// createHelper creates a stopped container with volumeName mounted read-only.
// It is never started; its filesystem is only read through the copy API.
func (c *Client) createHelper(ctx context.Context, volumeName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ContainerOpTimeout)
	defer cancel()

	config := &container.Config{
		Image:  c.helperImage,
		Cmd:    []string{"true"},
		Labels: map[string]string{helperLabel: "true", helperLabel + ".volume": volumeName},
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeVolume,
				Source:   volumeName,
				Target:   helperMountPath,
				ReadOnly: true,
			},
		},
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create helper container: %w", err)
	}

	return resp.ID, nil
}

// removeContainer runs even when ctx is done so helpers are not leaked.
func (c *Client) removeContainer(ctx context.Context, containerID string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ContainerOpTimeout)
	defer cancel()

	err := c.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", containerID, err)
	}
	return nil
}
