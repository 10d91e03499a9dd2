package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/aelpxy/dockup/internal/fault"
)

// VolumeSource exposes the contents of a named volume as a tar stream.
// Every entry lives under a single top-level directory standing for the
// volume root; the archiver strips that directory.
type VolumeSource interface {
	OpenVolume(ctx context.Context, volumeID string) (io.ReadCloser, error)
}

type Archiver struct {
	source VolumeSource
	logger *slog.Logger
}

func New(source VolumeSource, logger *slog.Logger) *Archiver {
	return &Archiver{source: source, logger: logger}
}

// ArchiveDirectory writes a gzip compressed tar of the tree under root to w
// and returns the number of compressed bytes written.
func (a *Archiver) ArchiveDirectory(ctx context.Context, root string, w io.Writer) (int64, error) {
	op := "archive " + filepath.Base(root)

	info, err := os.Stat(root)
	if err != nil {
		return 0, fault.New(fault.KindArchive, op, fmt.Errorf("failed to access %s: %w", root, err))
	}
	if !info.IsDir() {
		return 0, fault.Newf(fault.KindArchive, op, "%s is not a directory", root)
	}

	written, err := writeArchive(w, func(tw *tar.Writer) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if path == root {
				return nil
			}
			return a.addFile(ctx, tw, root, path, d)
		})
	})
	if err != nil {
		return written, wrapArchiveError(ctx, op, err)
	}

	a.logger.Debug("archived directory", "path", root, "bytes", written)
	return written, nil
}

func (a *Archiver) addFile(ctx context.Context, tw *tar.Writer, root, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	if !isArchivable(info.Mode()) {
		a.logger.Debug("skipping special file", "path", path, "mode", info.Mode().String())
		return nil
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", path, err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	if info.IsDir() {
		header.Name += "/"
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, contextReader{ctx: ctx, r: f})
	return err
}

// ArchiveVolume writes a gzip compressed tar of the volume's contents to w
// and returns the number of compressed bytes written.
func (a *Archiver) ArchiveVolume(ctx context.Context, volumeID string, w io.Writer) (int64, error) {
	op := "archive volume " + volumeID

	stream, err := a.source.OpenVolume(ctx, volumeID)
	if err != nil {
		return 0, wrapArchiveError(ctx, op, err)
	}
	defer stream.Close()

	written, err := writeArchive(w, func(tw *tar.Writer) error {
		return rebase(ctx, tar.NewReader(stream), tw)
	})
	if err != nil {
		return written, wrapArchiveError(ctx, op, err)
	}

	a.logger.Debug("archived volume", "volume", volumeID, "bytes", written)
	return written, nil
}

// rebase copies entries from tr to tw with their top-level directory
// removed.
func rebase(ctx context.Context, tr *tar.Reader, tw *tar.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read volume stream: %w", err)
		}

		name := stripRoot(header.Name)
		if name == "" {
			continue
		}
		switch header.Typeflag {
		case tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
			continue
		}

		header.Name = name
		if header.Typeflag == tar.TypeDir {
			header.Name += "/"
		}
		if header.Typeflag == tar.TypeLink {
			header.Linkname = stripRoot(header.Linkname)
		}

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		if header.Typeflag == tar.TypeReg {
			if _, err := io.Copy(tw, contextReader{ctx: ctx, r: tr}); err != nil {
				return err
			}
		}
	}
}

func stripRoot(name string) string {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	_, rest, _ := strings.Cut(name, "/")
	return rest
}

func writeArchive(w io.Writer, fill func(*tar.Writer) error) (int64, error) {
	counter := &countingWriter{w: w}
	gz := gzip.NewWriter(counter)
	tw := tar.NewWriter(gz)

	if err := fill(tw); err != nil {
		tw.Close()
		gz.Close()
		return counter.n, err
	}
	if err := tw.Close(); err != nil {
		gz.Close()
		return counter.n, fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return counter.n, fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return counter.n, nil
}

func wrapArchiveError(ctx context.Context, op string, err error) error {
	if ctxErr := fault.FromContext(ctx, op); ctxErr != nil {
		return ctxErr
	}
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}
	return fault.New(fault.KindArchive, op, err)
}

func isArchivable(mode fs.FileMode) bool {
	return mode.IsRegular() || mode.IsDir() || mode&fs.ModeSymlink != 0
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// contextReader fails reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
