package transfer

import (
	"path"
	"time"
)

// TimestampFormat is ISO 8601 basic format, always rendered in UTC.
const TimestampFormat = "20060102T150405Z"

const (
	repoDirName    = "REPO"
	volumesDirName = "VOLUMES"
	archiveExt     = ".tar.gz"
)

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Layout is the remote directory tree of one application for one run:
// <root>/<app>/<timestamp>/{REPO,VOLUMES}.
type Layout struct {
	App        string
	RunDir     string
	RepoDir    string
	VolumesDir string
}

func NewLayout(remoteRoot, app, runTimestamp string) Layout {
	runDir := path.Join(remoteRoot, app, runTimestamp)
	return Layout{
		App:        app,
		RunDir:     runDir,
		RepoDir:    path.Join(runDir, repoDirName),
		VolumesDir: path.Join(runDir, volumesDirName),
	}
}

// RepoArchive is the remote path of the configuration archive.
func (l Layout) RepoArchive() string {
	return path.Join(l.RepoDir, l.App+archiveExt)
}

// VolumeArchive is the remote path of the archive for a resolved volume.
func (l Layout) VolumeArchive(volumeID string) string {
	return path.Join(l.VolumesDir, volumeID+archiveExt)
}
