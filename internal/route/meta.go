package route

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestFileName is the size-policy route manifest written next to the
// segment files.
const ManifestFileName = "route.json"

// Manifest enumerates a size-policy route's segment files so the viewer
// can stream them without listing the directory.
type Manifest struct {
	Route    string `json:"route"`
	Policy   string `json:"policy"`
	Segments []int  `json:"segments"`
}

func (e *Encoder) writeManifest() error {
	m := Manifest{
		Route:    e.opts.RouteName,
		Policy:   e.opts.Policy.Name(),
		Segments: make([]int, e.segment),
	}
	for i := range m.Segments {
		m.Segments[i] = i
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal route manifest: %w", err)
	}
	path := filepath.Join(e.routeDir, ManifestFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write route manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a route manifest from a size-policy route directory.
func ReadManifest(routeDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(routeDir, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read route manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse route manifest: %w", err)
	}
	return &m, nil
}

// RouteName derives a route's directory name from the log file's
// timestamp, formatted the way the viewer's route-name pattern expects.
// When includeBase is true the log file's base name is prefixed, which the
// size-policy layout uses to keep flat route directories distinguishable.
func RouteName(logPath string, includeBase bool) (string, error) {
	fi, err := os.Stat(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat log file: %w", err)
	}

	name := fi.ModTime().Format("2006-01-02--15-04-05")
	if includeBase {
		base := strings.TrimSuffix(filepath.Base(logPath), filepath.Ext(logPath))
		name = base + "_" + name
	}
	return name, nil
}
