package topology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTopology(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write topology file: %v", err)
	}
	return path
}

const validTopology = `
systems:
  - name: primary
    strings:
      - name: A
        panel_count: 4
panels:
  - sn: "SN-1"
    device_label: "A1"
    display_label: "A1"
    string: "A"
    system: "primary"
    position: { x_percent: 10, y_percent: 20 }
  - sn: "SN-2"
    device_label: "A2"
    display_label: "A2"
    string: "A"
    system: "primary"
    position: { x_percent: 15, y_percent: 20 }
`

func TestFileSource_Load(t *testing.T) {
	t.Parallel()

	src := NewFileSource(writeTopology(t, validTopology))

	topo, err := src.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topo.Panels) != 2 {
		t.Fatalf("panels: want 2, got %d", len(topo.Panels))
	}
	if len(topo.Systems) != 1 || topo.Systems[0].Name != "primary" {
		t.Fatalf("unexpected systems: %+v", topo.Systems)
	}
	if topo.Panels[0].Position.XPercent != 10 {
		t.Errorf("position not parsed: %+v", topo.Panels[0].Position)
	}

	if _, err := src.ModTime(); err != nil {
		t.Errorf("ModTime: unexpected error: %v", err)
	}
}

func TestFileSource_Load_Missing(t *testing.T) {
	t.Parallel()

	src := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := src.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := src.ModTime(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ModTime: want ErrNotFound, got %v", err)
	}
}

func TestFileSource_Load_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"malformed_yaml", "panels: [::"},
		{
			"duplicate_serial", `
panels:
  - sn: "SN-1"
    display_label: "A1"
  - sn: "SN-1"
    display_label: "A2"
`,
		},
		{
			"duplicate_display_label", `
panels:
  - sn: "SN-1"
    display_label: "A1"
  - sn: "SN-2"
    display_label: "A1"
`,
		},
		{
			"empty_serial", `
panels:
  - sn: ""
    display_label: "A1"
`,
		},
		{
			"zero_panel_count", `
systems:
  - name: primary
    strings:
      - name: A
        panel_count: 0
`,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			src := NewFileSource(writeTopology(t, tc.content))
			if _, err := src.Load(); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}
