package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/errdefs"

	"github.com/aelpxy/dockup/internal/fault"
)

func (c *Client) VolumeExists(ctx context.Context, volumeName string) (bool, error) {
	_, err := c.cli.VolumeInspect(ctx, volumeName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// OpenVolume streams the contents of volumeName as a tar archive whose
// entries live under "volume/". Closing the stream removes the helper
// container.
func (c *Client) OpenVolume(ctx context.Context, volumeName string) (io.ReadCloser, error) {
	op := "export volume " + volumeName

	exists, err := c.VolumeExists(ctx, volumeName)
	if err != nil {
		return nil, fault.New(fault.KindArchive, op, fmt.Errorf("failed to inspect volume: %w", err))
	}
	if !exists {
		return nil, fault.Newf(fault.KindArchive, op, "volume does not exist")
	}

	if err := c.ensureHelperImage(ctx); err != nil {
		return nil, fault.New(fault.KindArchive, op, err)
	}

	containerID, err := c.createHelper(ctx, volumeName)
	if err != nil {
		return nil, fault.New(fault.KindArchive, op, err)
	}

	reader, _, err := c.cli.CopyFromContainer(ctx, containerID, helperMountPath)
	if err != nil {
		if rmErr := c.removeContainer(ctx, containerID); rmErr != nil {
			c.logger.Warn("failed to remove helper container", "container", containerID, "error", rmErr)
		}
		return nil, fault.New(fault.KindArchive, op, fmt.Errorf("failed to copy volume contents: %w", err))
	}

	return &volumeStream{
		ReadCloser: reader,
		cleanup: func() error {
			return c.removeContainer(ctx, containerID)
		},
	}, nil
}

type volumeStream struct {
	io.ReadCloser
	cleanup func() error
}

func (s *volumeStream) Close() error {
	err := s.ReadCloser.Close()
	if cleanupErr := s.cleanup(); cleanupErr != nil && err == nil {
		err = cleanupErr
	}
	return err
}
