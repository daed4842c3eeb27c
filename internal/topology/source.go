package topology

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"solarview/internal/models"
)

// ErrNotFound is returned when the topology file does not exist.
var ErrNotFound = errors.New("topology file not found")

// Source supplies the static topology plus a modification time used for
// hot-reload detection. The state store is its only consumer.
type Source interface {
	Load() (*models.Topology, error)
	ModTime() (time.Time, error)
}

// FileSource reads the topology from a YAML file on disk.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load parses and validates the topology file. Serial numbers must be unique
// across all panels; duplicates fail the whole load.
func (s *FileSource) Load() (*models.Topology, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("read topology %q: %w", s.path, err)
	}

	var topo models.Topology
	if err := yaml.Unmarshal(raw, &topo); err != nil {
		return nil, fmt.Errorf("parse topology %q: %w", s.path, err)
	}
	if err := validate(&topo); err != nil {
		return nil, fmt.Errorf("validate topology %q: %w", s.path, err)
	}
	return &topo, nil
}

// ModTime returns the file's last modification time.
func (s *FileSource) ModTime() (time.Time, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return time.Time{}, fmt.Errorf("stat topology %q: %w", s.path, err)
	}
	return fi.ModTime(), nil
}

func validate(topo *models.Topology) error {
	seenSerial := make(map[string]struct{}, len(topo.Panels))
	seenLabel := make(map[string]struct{}, len(topo.Panels))
	for _, p := range topo.Panels {
		if p.Serial == "" {
			return fmt.Errorf("panel %q has empty serial", p.DisplayLabel)
		}
		if p.DisplayLabel == "" {
			return fmt.Errorf("panel with serial %q has empty display label", p.Serial)
		}
		if _, dup := seenSerial[p.Serial]; dup {
			return fmt.Errorf("duplicate serial number %q", p.Serial)
		}
		if _, dup := seenLabel[p.DisplayLabel]; dup {
			return fmt.Errorf("duplicate display label %q", p.DisplayLabel)
		}
		seenSerial[p.Serial] = struct{}{}
		seenLabel[p.DisplayLabel] = struct{}{}
	}
	for _, sys := range topo.Systems {
		seenString := make(map[string]struct{}, len(sys.Strings))
		for _, st := range sys.Strings {
			if st.PanelCount < 1 {
				return fmt.Errorf("system %q string %q has panel_count %d", sys.Name, st.Name, st.PanelCount)
			}
			if _, dup := seenString[st.Name]; dup {
				return fmt.Errorf("system %q has duplicate string %q", sys.Name, st.Name)
			}
			seenString[st.Name] = struct{}{}
		}
	}
	return nil
}
