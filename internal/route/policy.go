// Package route turns a sorted CAN frame sequence into a segmented,
// compressed route log that a trace viewer can stream in sync with video.
package route

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SegmentNanos is the wall-clock length of one duration-policy segment.
	SegmentNanos = 60 * 1_000_000_000

	// VideoFPS is the fixed frame rate the companion video clips are cut at.
	VideoFPS = 20

	// FrameNanos is the display window of one video frame.
	FrameNanos = 1_000_000_000 / VideoFPS

	// FramesPerSegment is the nominal video frame count of one
	// duration-policy segment.
	FramesPerSegment = SegmentNanos / FrameNanos

	// DefaultSizeLimit is the size policy's uncompressed buffer threshold.
	DefaultSizeLimit = 4 << 20

	// SegmentFileName is the per-segment log file name under the
	// duration policy.
	SegmentFileName = "rlog.zst"

	// VideoFileName is the companion video artifact name the viewer
	// expects, per segment (duration policy) or per route (size policy).
	VideoFileName = "qcamera.ts"
)

// SegmentPolicy decides when the open segment closes and how the route
// directory is laid out. One policy is chosen per route at construction.
type SegmentPolicy interface {
	// Name identifies the policy in logs and the route index.
	Name() string

	// ShouldClose reports whether the open segment must close before a
	// batch anchored at anchorNs is admitted. bufferedBytes is the
	// uncompressed size of the events accumulated so far.
	ShouldClose(segmentStartNs, anchorNs int64, bufferedBytes int) bool

	// SegmentPath returns the log file path for segment n under the
	// route's base directory, creating parent directories as needed.
	SegmentPath(routeDir string, n int) (string, error)

	// IndexFrames reports whether video frame index events are emitted.
	IndexFrames() bool

	// Manifest reports whether the route directory gets a JSON manifest
	// enumerating its segment files.
	Manifest() bool
}

// DurationPolicy closes a segment once the next batch would start more
// than 60 s after the segment opened, matching the fixed-length video
// clips cut per segment. Each segment lives in its own "<route>--<n>"
// directory next to its clip.
type DurationPolicy struct{}

func (DurationPolicy) Name() string { return "duration" }

func (DurationPolicy) ShouldClose(segmentStartNs, anchorNs int64, _ int) bool {
	return anchorNs-segmentStartNs > SegmentNanos
}

func (DurationPolicy) SegmentPath(routeDir string, n int) (string, error) {
	dir := fmt.Sprintf("%s--%d", routeDir, n)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create segment directory: %w", err)
	}
	return filepath.Join(dir, SegmentFileName), nil
}

func (DurationPolicy) IndexFrames() bool { return true }
func (DurationPolicy) Manifest() bool    { return false }

// SizePolicy closes a segment when its uncompressed buffer outgrows Limit,
// independent of elapsed time. Segments are numbered files directly in the
// route directory. The companion video stays one continuous stream, so no
// frame index events are produced and a manifest enumerates the files.
type SizePolicy struct {
	// Limit is the uncompressed byte threshold; DefaultSizeLimit if zero.
	Limit int
}

func (SizePolicy) Name() string { return "size" }

func (p SizePolicy) ShouldClose(_, _ int64, bufferedBytes int) bool {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultSizeLimit
	}
	return bufferedBytes > limit
}

func (SizePolicy) SegmentPath(routeDir string, n int) (string, error) {
	if err := os.MkdirAll(routeDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create route directory: %w", err)
	}
	return filepath.Join(routeDir, fmt.Sprintf("rlog_%04d.zst", n)), nil
}

func (SizePolicy) IndexFrames() bool { return false }
func (SizePolicy) Manifest() bool    { return true }
