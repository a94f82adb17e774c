// Package config loads route job descriptors.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/busroute/internal/timeline"
)

// Job describes one route to produce: a CAN log, its dashboard video and
// the sync point tying their clocks together.
type Job struct {
	Car        string             `yaml:"car"`
	CarDetails string             `yaml:"car_details"`
	LogFile    string             `yaml:"logfile"`
	Video      string             `yaml:"video"`
	Sync       timeline.SyncPoint `yaml:"sync"`
}

// LoadJobs reads a YAML list of jobs. Relative logfile and video paths are
// resolved against the directory holding the jobs file, so a jobs file can
// live next to its captures.
func LoadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}

	var jobs []Job
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse jobs file %s: %w", path, err)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("jobs file %s lists no routes", path)
	}

	baseDir := filepath.Dir(path)
	for i := range jobs {
		if err := jobs[i].validate(i); err != nil {
			return nil, fmt.Errorf("jobs file %s: %w", path, err)
		}
		jobs[i].LogFile = resolve(baseDir, jobs[i].LogFile)
		jobs[i].Video = resolve(baseDir, jobs[i].Video)
	}
	return jobs, nil
}

func (j Job) validate(idx int) error {
	if j.LogFile == "" {
		return fmt.Errorf("job %d: logfile is required", idx)
	}
	if j.Video == "" {
		return fmt.Errorf("job %d: video is required", idx)
	}
	return nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
