package route

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/banshee-data/busroute/internal/canlog"
	"github.com/banshee-data/busroute/internal/rlog"
	"github.com/banshee-data/busroute/internal/timeline"
)

const (
	// BatchWindowNs bounds how much bus time one CAN event may span.
	// Every frame in a batch is within this window of the batch anchor.
	BatchWindowNs = 10 * 1_000_000

	// batchWarnLen is the batch size above which a diagnostic is logged.
	// Even a busy multi-bus system should stay under this in 10 ms.
	batchWarnLen = 100
)

// Options configure one route encode.
type Options struct {
	// DataDir is the root output directory holding all routes.
	DataDir string

	// RouteName names this route's directory; see RouteName.
	RouteName string

	// Policy selects the segmentation strategy.
	Policy SegmentPolicy

	// Sync is the single correspondence between the log clock and the
	// video timeline.
	Sync timeline.SyncPoint

	// VideoDurationS bounds frame index emission under the duration
	// policy. Unused by the size policy.
	VideoDurationS float64

	// Car and CarDetails optionally describe the vehicle; when Car is
	// set a car info event opens the route.
	Car        string
	CarDetails string
}

// Result summarises a fully flushed route.
type Result struct {
	RouteName string
	// RouteDir is the route's base path. Under the duration policy the
	// segment directories are "<RouteDir>--<n>"; under the size policy
	// RouteDir itself holds the numbered segment files.
	RouteDir string
	Policy   string
	Segments int
	Dropped  int
}

// Encoder runs the single-pass batching and segmentation for one route.
// It is strictly sequential and owns all its state; independent routes can
// encode in parallel with separate encoders.
type Encoder struct {
	opts        Options
	w           *rlog.Writer
	routeInitNs int64
	videoEndNs  int64
	routeDir    string

	segment        int
	segmentStartNs int64
	nextFrameNs    int64
	nextFrameID    uint32
	batch          []canlog.Frame
	dropped        int
	lastNs         int64
}

// NewEncoder prepares an encoder for one route. Nothing is written until
// Encode runs; in particular no directories exist yet, so a route that
// fails validation up front leaves no trace on disk.
func NewEncoder(opts Options) *Encoder {
	routeInit := opts.Sync.RouteInitNanos()
	return &Encoder{
		opts:           opts,
		w:              rlog.NewWriter(),
		routeInitNs:    routeInit,
		videoEndNs:     routeInit + int64(opts.VideoDurationS*1e9),
		routeDir:       filepath.Join(opts.DataDir, opts.RouteName),
		segmentStartNs: routeInit,
		nextFrameNs:    routeInit,
		lastNs:         routeInit,
	}
}

// Encode consumes the sorted frame sequence and flushes every segment of
// the route. The pass is all-or-nothing: any write failure aborts with the
// partial segment file removed, and the caller must not index the route.
func (e *Encoder) Encode(frames []canlog.Frame) (*Result, error) {
	init := e.routeInitNs
	if err := e.w.WriteInit(init); err != nil {
		return nil, err
	}
	if e.opts.Car != "" {
		if err := e.w.WriteCarInfo(init+1, e.opts.Car, e.opts.CarDetails); err != nil {
			return nil, err
		}
	}
	if err := e.w.WriteSentinel(init+2, rlog.StartOfRoute); err != nil {
		return nil, err
	}

	for _, f := range frames {
		e.lastNs = f.TimestampNs

		if f.TimestampNs < e.routeInitNs {
			// The frame precedes 0:00.000 in the video; there is no
			// timeline position for it.
			e.dropped++
			continue
		}

		if len(e.batch) > 0 && f.TimestampNs-e.batch[0].TimestampNs > BatchWindowNs {
			if err := e.emitBatch(); err != nil {
				return nil, err
			}
		}
		if len(e.batch) == 0 {
			if err := e.openBoundary(f.TimestampNs); err != nil {
				return nil, err
			}
		}
		e.batch = append(e.batch, f)
	}

	if err := e.emitBatch(); err != nil {
		return nil, err
	}

	if e.dropped > 0 {
		log.Printf("route %s: dropped %d CAN messages from before 0:00.000 in the video",
			e.opts.RouteName, e.dropped)
	}

	if err := e.w.WriteSentinel(e.lastNs+1, rlog.EndOfRoute); err != nil {
		return nil, err
	}
	// The final segment flushes even when no closing threshold was hit;
	// segments are never left unflushed.
	if err := e.flushSegment(); err != nil {
		return nil, err
	}

	if e.opts.Policy.Manifest() {
		if err := e.writeManifest(); err != nil {
			return nil, err
		}
	}

	return &Result{
		RouteName: e.opts.RouteName,
		RouteDir:  e.routeDir,
		Policy:    e.opts.Policy.Name(),
		Segments:  e.segment,
		Dropped:   e.dropped,
	}, nil
}

// emitBatch writes the accumulated batch as one CAN event tagged with its
// anchor timestamp.
func (e *Encoder) emitBatch() error {
	if len(e.batch) == 0 {
		return nil
	}
	if len(e.batch) > batchWarnLen {
		log.Printf("route %s: warning: flushing %d CAN messages at %d",
			e.opts.RouteName, len(e.batch), e.batch[0].TimestampNs)
	}
	if err := e.w.WriteCAN(e.batch); err != nil {
		return err
	}
	e.batch = e.batch[:0]
	return nil
}

// openBoundary runs just before a batch anchored at anchorNs opens. Frame
// indexes and segment boundaries are only evaluated here, so neither can
// ever land inside a batch.
func (e *Encoder) openBoundary(anchorNs int64) error {
	if e.opts.Policy.IndexFrames() {
		if err := e.indexFramesThrough(anchorNs); err != nil {
			return err
		}
	}

	if !e.opts.Policy.ShouldClose(e.segmentStartNs, anchorNs, e.w.Len()) {
		return nil
	}

	// Close the segment strictly before the next segment's opening
	// events: the end sentinel sits two ticks under the anchor, the
	// start sentinel one.
	if err := e.w.WriteSentinel(anchorNs-2, rlog.EndOfSegment); err != nil {
		return err
	}
	if err := e.flushSegment(); err != nil {
		return err
	}
	if e.opts.Policy.IndexFrames() {
		// The clip boundary frame is left unindexed: the viewer's
		// file layout assigns it to the next segment's video clip.
		e.nextFrameNs += FrameNanos
		e.nextFrameID++
	}

	// Every segment replays the nominal route start in its init event so
	// a viewer opening the segment alone can resolve absolute time.
	if err := e.w.WriteInit(e.routeInitNs); err != nil {
		return err
	}
	if err := e.w.WriteSentinel(anchorNs-1, rlog.StartOfSegment); err != nil {
		return err
	}
	e.segmentStartNs = anchorNs
	return nil
}

// indexFramesThrough emits a frame index event for every video frame
// window elapsed up to anchorNs, stopping at the end of the video or at
// the current segment's frame budget.
func (e *Encoder) indexFramesThrough(anchorNs int64) error {
	for e.nextFrameNs <= anchorNs && e.nextFrameNs < e.videoEndNs {
		segID := int64(e.nextFrameID) - int64(FramesPerSegment)*int64(e.segment)
		if segID >= FramesPerSegment {
			// Out of frames for this segment's clip; the pending
			// window is handled when the segment rolls over.
			return nil
		}

		eofNs := e.nextFrameNs + FrameNanos - 1
		if segID >= 0 {
			err := e.w.WriteFrameIndex(rlog.FrameIndex{
				FrameID:      e.nextFrameID,
				SegmentNum:   uint32(e.segment),
				SegmentID:    uint32(segID),
				TimestampSOF: uint64(e.nextFrameNs),
				TimestampEOF: uint64(eofNs),
				Codec:        rlog.CodecHEVC,
			})
			if err != nil {
				return err
			}
		}
		e.nextFrameNs = eofNs + 1
		e.nextFrameID++
	}
	return nil
}

// flushSegment persists the buffered events as the next contiguous
// segment and advances the segment counter.
func (e *Encoder) flushSegment() error {
	path, err := e.opts.Policy.SegmentPath(e.routeDir, e.segment)
	if err != nil {
		return err
	}
	if err := e.w.Flush(path); err != nil {
		return fmt.Errorf("route %s: %w", e.opts.RouteName, err)
	}
	e.segment++
	return nil
}
