package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	"github.com/aelpxy/dockup/internal/fault"
)

type entry struct {
	name     string
	typeflag byte
	body     string
	linkname string
}

var entriesEqual = qt.CmpEquals(cmp.AllowUnexported(entry{}))

func readArchive(c *qt.C, data []byte) []entry {
	c.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)
	tr := tar.NewReader(gz)

	var entries []entry
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		c.Assert(err, qt.IsNil)
		body, err := io.ReadAll(tr)
		c.Assert(err, qt.IsNil)
		entries = append(entries, entry{
			name:     header.Name,
			typeflag: header.Typeflag,
			body:     string(body),
			linkname: header.Linkname,
		})
	}
	return entries
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	entries []entry
	err     error
	opened  []string
}

func (f *fakeSource) OpenVolume(_ context.Context, volumeID string) (io.ReadCloser, error) {
	f.opened = append(f.opened, volumeID)
	if f.err != nil {
		return nil, f.err
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range f.entries {
		header := &tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Linkname: e.linkname,
			Mode:     0644,
			Size:     int64(len(e.body)),
		}
		if e.typeflag != tar.TypeReg {
			header.Size = 0
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, err
		}
		if e.typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				return nil, err
			}
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

func TestArchiveDirectory(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()

	c.Assert(os.WriteFile(filepath.Join(root, "compose.yaml"), []byte("services: {}\n"), 0644), qt.IsNil)
	c.Assert(os.MkdirAll(filepath.Join(root, "conf", "nginx"), 0755), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(root, "conf", "nginx", "site.conf"), []byte("server {}"), 0600), qt.IsNil)
	c.Assert(os.Symlink("conf/nginx/site.conf", filepath.Join(root, "site.conf")), qt.IsNil)

	var buf bytes.Buffer
	n, err := New(&fakeSource{}, discardLogger()).ArchiveDirectory(context.Background(), root, &buf)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(buf.Len()))

	c.Assert(readArchive(c, buf.Bytes()), entriesEqual, []entry{
		{name: "compose.yaml", typeflag: tar.TypeReg, body: "services: {}\n"},
		{name: "conf/", typeflag: tar.TypeDir},
		{name: "conf/nginx/", typeflag: tar.TypeDir},
		{name: "conf/nginx/site.conf", typeflag: tar.TypeReg, body: "server {}"},
		{name: "site.conf", typeflag: tar.TypeSymlink, linkname: "conf/nginx/site.conf"},
	})
}

func TestArchiveDirectoryPreservesModeAndTime(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()

	path := filepath.Join(root, "secret.env")
	c.Assert(os.WriteFile(path, []byte("TOKEN=x\n"), 0600), qt.IsNil)
	c.Assert(os.Chmod(path, 0640), qt.IsNil)
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	c.Assert(os.Chtimes(path, mtime, mtime), qt.IsNil)

	var buf bytes.Buffer
	_, err := New(&fakeSource{}, discardLogger()).ArchiveDirectory(context.Background(), root, &buf)
	c.Assert(err, qt.IsNil)

	gz, err := gzip.NewReader(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	header, err := tar.NewReader(gz).Next()
	c.Assert(err, qt.IsNil)
	c.Assert(header.Name, qt.Equals, "secret.env")
	c.Assert(header.FileInfo().Mode().Perm(), qt.Equals, os.FileMode(0640))
	c.Assert(header.ModTime.Equal(mtime), qt.IsTrue, qt.Commentf("mtime %v", header.ModTime))
	c.Assert(header.Uid, qt.Equals, os.Getuid())
}

func TestArchiveDirectoryMissing(t *testing.T) {
	c := qt.New(t)

	_, err := New(&fakeSource{}, discardLogger()).ArchiveDirectory(context.Background(), filepath.Join(t.TempDir(), "gone"), io.Discard)
	c.Assert(fault.Is(err, fault.KindArchive), qt.IsTrue)
}

func TestArchiveDirectoryCanceled(t *testing.T) {
	c := qt.New(t)
	root := t.TempDir()
	c.Assert(os.WriteFile(filepath.Join(root, "a"), []byte("a"), 0644), qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeSource{}, discardLogger()).ArchiveDirectory(ctx, root, io.Discard)
	c.Assert(fault.Is(err, fault.KindCanceled), qt.IsTrue)
}

func TestArchiveVolumeStripsRoot(t *testing.T) {
	c := qt.New(t)
	source := &fakeSource{entries: []entry{
		{name: "volume/", typeflag: tar.TypeDir},
		{name: "volume/db/", typeflag: tar.TypeDir},
		{name: "volume/db/data.bin", typeflag: tar.TypeReg, body: "rows"},
		{name: "volume/db/latest", typeflag: tar.TypeSymlink, linkname: "data.bin"},
		{name: "volume/db/hard", typeflag: tar.TypeLink, linkname: "volume/db/data.bin"},
		{name: "volume/pipe", typeflag: tar.TypeFifo},
	}}

	var buf bytes.Buffer
	n, err := New(source, discardLogger()).ArchiveVolume(context.Background(), "alpha_data", &buf)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(buf.Len()))
	c.Assert(source.opened, qt.DeepEquals, []string{"alpha_data"})

	c.Assert(readArchive(c, buf.Bytes()), entriesEqual, []entry{
		{name: "db/", typeflag: tar.TypeDir},
		{name: "db/data.bin", typeflag: tar.TypeReg, body: "rows"},
		{name: "db/latest", typeflag: tar.TypeSymlink, linkname: "data.bin"},
		{name: "db/hard", typeflag: tar.TypeLink, linkname: "db/data.bin"},
	})
}

func TestArchiveVolumeEmpty(t *testing.T) {
	c := qt.New(t)
	source := &fakeSource{entries: []entry{{name: "volume/", typeflag: tar.TypeDir}}}

	var buf bytes.Buffer
	_, err := New(source, discardLogger()).ArchiveVolume(context.Background(), "empty", &buf)
	c.Assert(err, qt.IsNil)
	c.Assert(readArchive(c, buf.Bytes()), qt.HasLen, 0)
}

func TestArchiveVolumeSourceError(t *testing.T) {
	c := qt.New(t)
	source := &fakeSource{err: errors.New("no such volume")}

	_, err := New(source, discardLogger()).ArchiveVolume(context.Background(), "missing", io.Discard)
	c.Assert(fault.Is(err, fault.KindArchive), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, `ARCHIVE: archive volume missing: no such volume`)
}

func TestArchiveVolumeKeepsClassifiedError(t *testing.T) {
	c := qt.New(t)
	source := &fakeSource{err: fault.Newf(fault.KindArchive, "export volume x", "volume not found")}

	_, err := New(source, discardLogger()).ArchiveVolume(context.Background(), "x", io.Discard)
	c.Assert(err, qt.ErrorMatches, `ARCHIVE: export volume x: volume not found`)
}

func TestStripRoot(t *testing.T) {
	c := qt.New(t)

	c.Assert(stripRoot("volume"), qt.Equals, "")
	c.Assert(stripRoot("volume/"), qt.Equals, "")
	c.Assert(stripRoot("volume/a/b"), qt.Equals, "a/b")
	c.Assert(stripRoot("./volume/a"), qt.Equals, "a")
	c.Assert(stripRoot("volume/../../etc/passwd"), qt.Equals, "passwd")
}
