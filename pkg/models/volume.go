package models

// VolumeRef is a named volume an application owns. Resolved is the
// platform-qualified name the container runtime knows the volume by.
type VolumeRef struct {
	Declared string `json:"declared"`
	Resolved string `json:"resolved"`
}

// Application is one directory under the scan root holding a compose file.
type Application struct {
	Name         string      `json:"name"`
	Path         string      `json:"path"`
	ComposeFiles []string    `json:"compose_files"`
	Volumes      []VolumeRef `json:"volumes"`
}

// WithVolumes returns a copy of the application carrying the resolved volumes.
func (a Application) WithVolumes(volumes []VolumeRef) Application {
	a.Volumes = append([]VolumeRef(nil), volumes...)
	return a
}
