package project

import (
	"log/slog"

	"github.com/aelpxy/dockup/internal/fault"
	"github.com/aelpxy/dockup/pkg/models"
)

// Resolver extracts the named volumes an application owns from its compose
// files.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve returns the de-duplicated named volumes referenced by the
// application's services, in first-seen order. Bind mounts, tmpfs mounts,
// anonymous volumes and references to undeclared volumes are left out.
func (r *Resolver) Resolve(app models.Application) ([]models.VolumeRef, error) {
	doc, err := loadComposeFiles(app.ComposeFiles)
	if err != nil {
		return nil, fault.New(fault.KindResolution, "resolve "+app.Name, err)
	}

	projectName := doc.Name
	if projectName == "" {
		projectName = NormalizeProjectName(app.Name)
	}

	seen := make(map[string]bool)
	refs := make([]models.VolumeRef, 0)

	for _, serviceName := range doc.Services.names {
		for _, m := range doc.Services.byName[serviceName].Volumes {
			if m.Type != mountTypeVolume || m.Source == "" {
				continue
			}

			decl, declared := doc.Volumes[m.Source]
			if !declared {
				r.logger.Warn("service references undeclared volume",
					"app", app.Name, "service", serviceName, "volume", m.Source)
				continue
			}

			resolved := qualifiedName(projectName, m.Source, decl)
			if seen[resolved] {
				continue
			}
			seen[resolved] = true
			refs = append(refs, models.VolumeRef{Declared: m.Source, Resolved: resolved})
		}
	}

	r.logger.Debug("resolved volumes", "app", app.Name, "count", len(refs))
	return refs, nil
}

func qualifiedName(projectName, declared string, decl *volumeDecl) string {
	switch {
	case decl.Name != "":
		return decl.Name
	case decl.External.Enabled && decl.External.Name != "":
		return decl.External.Name
	case decl.External.Enabled:
		return declared
	default:
		return projectName + "_" + declared
	}
}
