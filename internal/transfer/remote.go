package transfer

import (
	"io"
	"os"

	"github.com/pkg/sftp"
)

// RemoteFS is the slice of an SFTP connection the transfer client uses.
type RemoteFS interface {
	MkdirAll(path string) error
	Create(path string) (io.WriteCloser, error)
	Stat(path string) (os.FileInfo, error)
	Rename(oldPath, newPath string) error
	Remove(path string) error
	Close() error
}

// sftpFS adapts an SFTP client and closes the SSH connection under it.
type sftpFS struct {
	client *sftp.Client
	closer io.Closer
}

func (s *sftpFS) MkdirAll(path string) error {
	return s.client.MkdirAll(path)
}

func (s *sftpFS) Create(path string) (io.WriteCloser, error) {
	return s.client.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (s *sftpFS) Stat(path string) (os.FileInfo, error) {
	return s.client.Stat(path)
}

// Rename replaces newPath atomically when the server supports the
// posix-rename extension.
func (s *sftpFS) Rename(oldPath, newPath string) error {
	if _, ok := s.client.HasExtension("posix-rename@openssh.com"); ok {
		return s.client.PosixRename(oldPath, newPath)
	}
	if err := s.client.Remove(newPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.client.Rename(oldPath, newPath)
}

func (s *sftpFS) Remove(path string) error {
	return s.client.Remove(path)
}

func (s *sftpFS) Close() error {
	err := s.client.Close()
	if closeErr := s.closer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
