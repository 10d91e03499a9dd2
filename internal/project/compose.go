package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var composeFileNames = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yaml",
	"docker-compose.yml",
}

var overrideFileNames = []string{
	"compose.override.yaml",
	"compose.override.yml",
	"docker-compose.override.yaml",
	"docker-compose.override.yml",
}

const (
	mountTypeVolume = "volume"
	mountTypeBind   = "bind"
)

// composeFile holds the parts of a compose document the resolver reads.
// Every other key is ignored.
type composeFile struct {
	Name     string                 `yaml:"name"`
	Services serviceMap             `yaml:"services"`
	Volumes  map[string]*volumeDecl `yaml:"volumes"`
}

type service struct {
	Volumes []mount `yaml:"volumes"`
}

// serviceMap keeps services in document order.
type serviceMap struct {
	names  []string
	byName map[string]service
}

func (s *serviceMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: services must be a mapping", node.Line)
	}

	s.byName = make(map[string]service, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value

		var svc service
		if err := node.Content[i+1].Decode(&svc); err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}

		if _, dup := s.byName[name]; !dup {
			s.names = append(s.names, name)
		}
		s.byName[name] = svc
	}
	return nil
}

func (s *serviceMap) merge(other serviceMap) {
	if s.byName == nil {
		s.byName = make(map[string]service, len(other.names))
	}
	for _, name := range other.names {
		existing, ok := s.byName[name]
		if !ok {
			s.names = append(s.names, name)
		}
		existing.Volumes = append(existing.Volumes, other.byName[name].Volumes...)
		s.byName[name] = existing
	}
}

// mount is one entry of a service's volumes list, in short ("src:dst:mode")
// or long (type/source/target) syntax.
type mount struct {
	Type   string
	Source string
	Target string
}

func (m *mount) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*m = parseShortMount(node.Value)
		return nil
	case yaml.MappingNode:
		var long struct {
			Type   string `yaml:"type"`
			Source string `yaml:"source"`
			Target string `yaml:"target"`
		}
		if err := node.Decode(&long); err != nil {
			return err
		}
		if long.Type == "" {
			long.Type = mountTypeVolume
			if isFilePath(long.Source) {
				long.Type = mountTypeBind
			}
		}
		*m = mount{Type: long.Type, Source: long.Source, Target: long.Target}
		return nil
	default:
		return fmt.Errorf("line %d: volume entry must be a string or a mapping", node.Line)
	}
}

func parseShortMount(spec string) mount {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) == 1 {
		// anonymous volume, only a container path
		return mount{Type: mountTypeVolume, Target: parts[0]}
	}

	m := mount{Type: mountTypeVolume, Source: parts[0], Target: parts[1]}
	if isFilePath(m.Source) {
		m.Type = mountTypeBind
	}
	return m
}

func isFilePath(source string) bool {
	if source == "" {
		return false
	}
	switch source[0] {
	case '.', '/', '~':
		return true
	}
	if strings.HasPrefix(source, `\\`) {
		return true
	}
	first, size := utf8.DecodeRuneInString(source)
	if size < len(source) && source[size] == ':' {
		return (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')
	}
	return false
}

// volumeDecl is an entry of the top-level volumes section.
type volumeDecl struct {
	Name     string       `yaml:"name"`
	External externalFlag `yaml:"external"`
}

// externalFlag accepts both `external: true` and the legacy
// `external: {name: foo}` form.
type externalFlag struct {
	Enabled bool
	Name    string
}

func (e *externalFlag) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&e.Enabled)
	case yaml.MappingNode:
		var legacy struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&legacy); err != nil {
			return err
		}
		e.Enabled = true
		e.Name = legacy.Name
		return nil
	default:
		return fmt.Errorf("line %d: external must be a boolean", node.Line)
	}
}

func loadComposeFiles(paths []string) (*composeFile, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no compose file")
	}

	merged := &composeFile{Volumes: map[string]*volumeDecl{}}
	for _, path := range paths {
		doc, err := loadComposeFile(path)
		if err != nil {
			return nil, err
		}
		if doc.Name != "" {
			merged.Name = doc.Name
		}
		merged.Services.merge(doc.Services)
		for name, decl := range doc.Volumes {
			if decl == nil {
				decl = &volumeDecl{}
			}
			merged.Volumes[name] = decl
		}
	}
	return merged, nil
}

func loadComposeFile(path string) (*composeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}

	var doc composeFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &doc, nil
}

var invalidProjectChars = regexp.MustCompile("[^-_a-z0-9]+")

// NormalizeProjectName turns a directory name into the project name the
// compose CLI would derive from it.
func NormalizeProjectName(name string) string {
	name = invalidProjectChars.ReplaceAllString(strings.ToLower(name), "")
	return strings.TrimLeft(name, "_-")
}
