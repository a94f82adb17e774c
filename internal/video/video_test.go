package video

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner records invocations and plays back canned results.
type stubRunner struct {
	calls  [][]string
	stderr string
	err    error
}

func (s *stubRunner) Run(name string, args ...string) (string, string, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	return "", s.stderr, s.err
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  string
		want    float64
		wantErr bool
	}{
		{
			name:   "typical probe output",
			output: "Input #0, mov,mp4\n  Duration: 00:12:34.56, start: 0.000000, bitrate: 4624 kb/s\n",
			want:   12*60 + 34.56,
		},
		{
			name:   "hours",
			output: "Duration: 01:00:05.00",
			want:   3605,
		},
		{
			name:    "no duration line",
			output:  "Input #0, mov,mp4\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDuration(tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	r := &stubRunner{stderr: "Duration: 00:00:30.50, start: 0.0"}
	got, err := Duration(r, "drive.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 30.5, got, 0.001)
	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"ffprobe", "drive.mp4"}, r.calls[0])
}

func TestSegmentWindowArgs(t *testing.T) {
	t.Parallel()

	r := &stubRunner{}
	tc := NewTranscoder(r)
	dst := filepath.Join(t.TempDir(), "qcamera.ts")
	require.NoError(t, tc.Segment("drive.mp4", dst, 3))

	require.Len(t, r.calls, 1)
	args := r.calls[0]
	assert.Equal(t, "ffmpeg", args[0])
	// Segment 3 starts 180 s into the source and runs for 60 s at the
	// fixed clip frame rate.
	assert.Contains(t, args, "-ss")
	assert.Contains(t, args, "180")
	assert.Contains(t, args, "-t")
	assert.Contains(t, args, "60")
	assert.Contains(t, args, "20")
	assert.Equal(t, dst, args[len(args)-1])
}

func TestSegmentSkipsExistingArtifact(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "qcamera.ts")
	require.NoError(t, os.WriteFile(dst, []byte("clip"), 0644))

	r := &stubRunner{}
	tc := NewTranscoder(r)
	require.NoError(t, tc.Segment("drive.mp4", dst, 0))
	assert.Empty(t, r.calls, "existing artifacts must not be re-transcoded")
}

func TestSegmentPastEndOfVideo(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "qcamera.ts")
	r := &stubRunner{
		stderr: "frame=    0 fps=0.0 q=0.0 Lsize=       0kB",
		err:    errors.New("exit status 1"),
	}
	tc := NewTranscoder(r)

	err := tc.Segment("drive.mp4", dst, 4)
	assert.ErrorIs(t, err, ErrPastEndOfVideo)
}

// Zero frames on the very first segment is a real failure, not the
// past-end-of-input stopping condition.
func TestSegmentZeroFramesAtStartIsFatal(t *testing.T) {
	t.Parallel()

	dst := filepath.Join(t.TempDir(), "qcamera.ts")
	r := &stubRunner{
		stderr: "frame=    0 fps=0.0",
		err:    errors.New("exit status 1"),
	}
	tc := NewTranscoder(r)

	err := tc.Segment("drive.mp4", dst, 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPastEndOfVideo)
}

func TestSegmentFailureRemovesPartialArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dst := filepath.Join(dir, "qcamera.ts")
	r := &partialWriteRunner{dst: dst}
	tc := NewTranscoder(r)

	err := tc.Segment("drive.mp4", dst, 1)
	require.Error(t, err)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "partial artifact must be removed")
}

// partialWriteRunner simulates ffmpeg dying after creating its output.
type partialWriteRunner struct {
	dst string
}

func (p *partialWriteRunner) Run(name string, args ...string) (string, string, error) {
	os.WriteFile(p.dst, []byte("partial"), 0644)
	return "", "Conversion failed!", errors.New("exit status 1")
}

func TestContinuousHasNoWindow(t *testing.T) {
	t.Parallel()

	r := &stubRunner{}
	tc := NewTranscoder(r)
	dst := filepath.Join(t.TempDir(), "qcamera.ts")
	require.NoError(t, tc.Continuous("drive.mp4", dst))

	require.Len(t, r.calls, 1)
	assert.NotContains(t, r.calls[0], "-ss")
	assert.NotContains(t, r.calls[0], "-t")
}
