// Package video is the boundary to the external transcoder. It shells out
// to ffprobe/ffmpeg; the route encoder itself never decodes video and only
// needs the source duration to align frame indexes.
package video

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

// ErrPastEndOfVideo reports that a requested segment window starts after
// the source video ends. It is a normal stopping condition, not a failure:
// the remaining segments simply get no companion clip.
var ErrPastEndOfVideo = errors.New("segment window past end of source video")

// Runner executes an external command and returns its combined streams.
// Tests substitute a stub so no ffmpeg binary is needed.
type Runner interface {
	Run(name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// ffprobe prints stream info to stderr; the duration line looks like
// "Duration: 00:12:34.56, start: ...".
var durationRe = regexp.MustCompile(`Duration: *(\d+):(\d+):(\d+)\.(\d+)`)

// Duration probes the length of a video file in seconds.
func Duration(r Runner, path string) (float64, error) {
	_, stderr, err := r.Run("ffprobe", path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseDuration(stderr)
}

// ParseDuration extracts the duration in seconds from ffprobe output.
func ParseDuration(probeOutput string) (float64, error) {
	m := durationRe.FindStringSubmatch(probeOutput)
	if m == nil {
		return 0, errors.New("no duration found in ffprobe output")
	}

	// The regexp guarantees the fields are numeric.
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	centis, _ := strconv.Atoi(m[4])
	return float64(hours)*3600 + float64(minutes)*60 + float64(seconds) + float64(centis)/100, nil
}

// Transcoder cuts viewer-compatible video artifacts from the source video.
type Transcoder struct {
	Runner Runner

	// FPS and SegmentLenS must match the route encoder's frame index
	// alignment (20 fps, 60 s segments).
	FPS         int
	SegmentLenS int
}

// NewTranscoder returns a Transcoder with the route defaults.
func NewTranscoder(r Runner) *Transcoder {
	return &Transcoder{Runner: r, FPS: 20, SegmentLenS: 60}
}

// Segment transcodes segment idx's fixed window of the source video to
// dst. An existing dst is kept as-is: transcoding is the slowest part of a
// route build and reruns should skip it.
func (t *Transcoder) Segment(src, dst string, idx int) error {
	if _, err := os.Stat(dst); err == nil {
		log.Printf("skipping existing %s", dst)
		return nil
	}

	args := []string{
		"-ss", strconv.Itoa(idx * t.SegmentLenS),
		"-i", src,
		"-c:v", "libx265",
		"-b:v", "500k",
		"-an",
		"-f", "mpegts",
		"-t", strconv.Itoa(t.SegmentLenS),
		"-r", strconv.Itoa(t.FPS),
		dst,
	}
	return t.run(src, dst, idx, args)
}

// Continuous transcodes the whole source video to dst as one stream.
func (t *Transcoder) Continuous(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		log.Printf("skipping existing %s", dst)
		return nil
	}

	args := []string{
		"-i", src,
		"-c:v", "libx265",
		"-b:v", "500k",
		"-an",
		"-f", "mpegts",
		"-r", strconv.Itoa(t.FPS),
		dst,
	}
	return t.run(src, dst, 0, args)
}

func (t *Transcoder) run(src, dst string, idx int, args []string) error {
	_, stderr, err := t.Runner.Run("ffmpeg", args...)
	if err == nil {
		return nil
	}

	// A partial artifact must not survive: a downstream viewer would
	// treat its presence as a finished clip.
	os.Remove(dst)

	// ffmpeg reports a window past the end of input as a failed run that
	// produced zero frames.
	if idx > 0 && pastEndOfInput(stderr) {
		return ErrPastEndOfVideo
	}
	return fmt.Errorf("ffmpeg %s segment %d: %w\n%s", src, idx, err, stderr)
}

var zeroFrameRe = regexp.MustCompile(`frame= *0\b`)

func pastEndOfInput(stderr string) bool {
	return zeroFrameRe.MatchString(stderr)
}
