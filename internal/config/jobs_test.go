package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJobs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log_data.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadJobs(t *testing.T) {
	t.Parallel()

	path := writeJobs(t, `
- car: "Hyundai Kona"
  car_details: "2019 EV"
  logfile: logs/drive-01.csv
  video: logs/drive-01.mp4
  sync:
    video_s: 12.5
    log_us: 90000000
- logfile: /captures/drive-02.csv
  video: /captures/drive-02.mp4
  sync:
    video_s: 0.0
    log_us: 2000
`)

	jobs, err := LoadJobs(path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	base := filepath.Dir(path)
	assert.Equal(t, "Hyundai Kona", jobs[0].Car)
	assert.Equal(t, "2019 EV", jobs[0].CarDetails)
	assert.Equal(t, filepath.Join(base, "logs", "drive-01.csv"), jobs[0].LogFile)
	assert.Equal(t, filepath.Join(base, "logs", "drive-01.mp4"), jobs[0].Video)
	assert.Equal(t, 12.5, jobs[0].Sync.VideoS)
	assert.Equal(t, int64(90_000_000), jobs[0].Sync.LogUS)

	// Absolute paths stay untouched.
	assert.Equal(t, "/captures/drive-02.csv", jobs[1].LogFile)
	assert.Equal(t, int64(2000), jobs[1].Sync.LogUS)
}

func TestLoadJobsErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadJobs(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()
		_, err := LoadJobs(writeJobs(t, "{{not yaml"))
		assert.Error(t, err)
	})

	t.Run("empty list", func(t *testing.T) {
		t.Parallel()
		_, err := LoadJobs(writeJobs(t, "[]\n"))
		assert.Error(t, err)
	})

	t.Run("missing logfile", func(t *testing.T) {
		t.Parallel()
		_, err := LoadJobs(writeJobs(t, "- video: a.mp4\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logfile is required")
	})

	t.Run("missing video", func(t *testing.T) {
		t.Parallel()
		_, err := LoadJobs(writeJobs(t, "- logfile: a.csv\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "video is required")
	})
}
