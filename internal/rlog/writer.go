package rlog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/busroute/internal/canlog"
)

// Writer accumulates the events of one segment in memory and flushes them
// as a compressed framed-record file. The writer is reused across all
// segments of a route; the monotonic timestamp clamp is scoped to one
// segment so every segment can open with the route's nominal start time.
type Writer struct {
	buf      bytes.Buffer
	lastMono int64
	events   int
}

// NewWriter returns an empty segment accumulator.
func NewWriter() *Writer {
	return &Writer{}
}

// writeEvent appends one length-prefixed record. Requested timestamps are
// clamped so MonoTime is strictly increasing within the segment.
func (w *Writer) writeEvent(monoTime int64, ev Event) error {
	if monoTime <= w.lastMono {
		monoTime = w.lastMono + 1
	}
	w.lastMono = monoTime

	ev.MonoTime = uint64(monoTime)
	ev.Valid = true

	body, err := cbor.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	w.buf.Write(lenBuf[:])
	w.buf.Write(body)
	w.events++
	return nil
}

// WriteInit writes the segment-opening init event.
func (w *Writer) WriteInit(monoTime int64) error {
	return w.writeEvent(monoTime, Event{Init: &InitData{}})
}

// WriteCarInfo writes the vehicle description event.
func (w *Writer) WriteCarInfo(monoTime int64, name, details string) error {
	return w.writeEvent(monoTime, Event{CarInfo: &CarInfo{Name: name, Details: details}})
}

// WriteSentinel writes a boundary marker event.
func (w *Writer) WriteSentinel(monoTime int64, kind SentinelKind) error {
	return w.writeEvent(monoTime, Event{Sentinel: &Sentinel{Kind: kind}})
}

// WriteCAN writes one batch of CAN frames as a single event, tagged with
// the timestamp of the batch's first frame. Empty batches are a no-op.
func (w *Writer) WriteCAN(frames []canlog.Frame) error {
	if len(frames) == 0 {
		return nil
	}

	batch := make([]CanData, len(frames))
	for i, f := range frames {
		batch[i] = CanData{
			Address: f.ArbitrationID,
			// BusTime counts 2ms ticks, truncated to 16 bits.
			BusTime: uint16((f.TimestampNs / 500_000) & 0xFFFF),
			Data:    f.Data,
			Src:     f.BusID,
		}
	}
	return w.writeEvent(frames[0].TimestampNs, Event{Can: batch})
}

// WriteFrameIndex writes a video frame index event at the frame's
// start-of-frame timestamp.
func (w *Writer) WriteFrameIndex(idx FrameIndex) error {
	return w.writeEvent(int64(idx.TimestampSOF), Event{FrameIndex: &idx})
}

// Len returns the number of uncompressed bytes currently buffered.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Events returns the number of events currently buffered.
func (w *Writer) Events() int {
	return w.events
}

// Flush compresses the buffered records to path and clears the buffer.
// On any write failure the partial file is removed: a downstream index
// must never reference a half-written segment.
func (w *Writer) Flush(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create segment file: %w", err)
	}

	if err := w.compressTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write segment %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close segment %s: %w", path, err)
	}

	w.buf.Reset()
	w.events = 0
	// The clamp restarts with the segment: the next segment's opening
	// init replays the nominal route start, which precedes everything
	// already written.
	w.lastMono = 0
	return nil
}

func (w *Writer) compressTo(f *os.File) error {
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if _, err := enc.Write(w.buf.Bytes()); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
