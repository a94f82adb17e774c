// Package canlog reads timestamped CSV captures of CAN bus traffic.
package canlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

var (
	// ErrMalformed reports a CSV header or row that cannot be parsed.
	ErrMalformed = errors.New("malformed CAN log")

	// ErrEmptyLog reports a log with a header but no data rows. Callers
	// need at least one frame to establish the route's time range.
	ErrEmptyLog = errors.New("CAN log contains no frames")
)

// MaxPayloadLen is the largest payload a single frame may carry (CAN FD).
const MaxPayloadLen = 64

// Rows carry timestamp, arbitration id, the extended-id flag, bus number
// and a length column before the variable payload bytes begin.
const payloadField = 5

// Frame is one observed CAN message. The capture stores microseconds;
// TimestampNs is that value converted to nanoseconds on the log clock.
// Frames are immutable once parsed.
type Frame struct {
	TimestampNs   int64
	ArbitrationID uint32
	BusID         uint8
	Data          []byte
}

// ReadFile parses a CSV capture and returns its frames sorted by timestamp.
//
// The sort is stable and global: busy periods interleave frames from
// different buses slightly out of timestamp order in the capture, and the
// downstream batching and segment-boundary logic requires a non-decreasing
// sequence.
func ReadFile(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CAN log: %w", err)
	}
	defer f.Close()

	frames, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

// Read parses CSV capture data from r. See ReadFile.
func Read(r io.Reader) ([]Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // payload length varies per row
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing header row", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var frames []Frame
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}

		frame, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		return nil, ErrEmptyLog
	}

	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].TimestampNs < frames[j].TimestampNs
	})
	return frames, nil
}

func parseRecord(record []string) (Frame, error) {
	if len(record) < payloadField {
		return Frame{}, fmt.Errorf("row has %d fields, want at least %d", len(record), payloadField)
	}

	tsUS, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("bad timestamp %q: %v", record[0], err)
	}

	arbID, err := strconv.ParseUint(record[1], 16, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("bad arbitration id %q: %v", record[1], err)
	}

	// record[2] is the extended-id flag; the event format carries the full
	// 32-bit id either way, so the flag is not retained.

	busID, err := strconv.ParseUint(record[3], 10, 8)
	if err != nil {
		return Frame{}, fmt.Errorf("bad bus id %q: %v", record[3], err)
	}

	payload := record[payloadField:]
	if len(payload) > MaxPayloadLen {
		return Frame{}, fmt.Errorf("payload has %d bytes, max %d", len(payload), MaxPayloadLen)
	}
	data := make([]byte, len(payload))
	for i, field := range payload {
		b, err := strconv.ParseUint(field, 16, 8)
		if err != nil {
			return Frame{}, fmt.Errorf("bad payload byte %q: %v", field, err)
		}
		data[i] = byte(b)
	}

	return Frame{
		TimestampNs:   tsUS * 1000,
		ArbitrationID: uint32(arbID),
		BusID:         uint8(busID),
		Data:          data,
	}, nil
}
