// Package rlog serializes route log events into framed, compressed
// segment files.
//
// A segment file is a zstd-compressed stream of records; each record is a
// 4-byte little-endian length prefix followed by one CBOR-encoded Event.
package rlog

// SentinelKind marks route and segment boundaries in the event stream.
type SentinelKind uint8

const (
	StartOfRoute SentinelKind = iota
	EndOfRoute
	StartOfSegment
	EndOfSegment
)

// String returns the sentinel name for logs and diagnostics.
func (k SentinelKind) String() string {
	switch k {
	case StartOfRoute:
		return "startOfRoute"
	case EndOfRoute:
		return "endOfRoute"
	case StartOfSegment:
		return "startOfSegment"
	case EndOfSegment:
		return "endOfSegment"
	}
	return "unknown"
}

// CodecHEVC is the codec tag carried by frame index events.
const CodecHEVC = "hevc"

// InitData opens every segment. The viewer reads only its MonoTime, which
// always repeats the route's nominal start so any segment opened alone can
// resolve absolute time.
type InitData struct{}

// CarInfo names the vehicle the log was captured from. The viewer matches
// Name against its signal database.
type CarInfo struct {
	Name    string `cbor:"1,keyasint"`
	Details string `cbor:"2,keyasint,omitempty"`
}

// Sentinel is a boundary marker event.
type Sentinel struct {
	Kind SentinelKind `cbor:"1,keyasint"`
}

// CanData is one CAN message inside a batch event.
type CanData struct {
	Address uint32 `cbor:"1,keyasint"`
	BusTime uint16 `cbor:"2,keyasint"`
	Data    []byte `cbor:"3,keyasint"`
	Src     uint8  `cbor:"4,keyasint"`
}

// FrameIndex correlates one video frame's 1/20 s window with its position
// in the segmented output.
type FrameIndex struct {
	// FrameID counts frames from the start of the route.
	FrameID uint32 `cbor:"1,keyasint"`
	// SegmentNum is the segment whose video clip contains the frame.
	SegmentNum uint32 `cbor:"2,keyasint"`
	// SegmentID counts frames from the start of that segment's clip.
	SegmentID uint32 `cbor:"3,keyasint"`
	// TimestampSOF and TimestampEOF bound the frame's display window.
	TimestampSOF uint64 `cbor:"4,keyasint"`
	TimestampEOF uint64 `cbor:"5,keyasint"`
	Codec        string `cbor:"6,keyasint"`
}

// Event is one record in a segment. Exactly one payload field is non-nil;
// events are append-only and ordered by MonoTime within a segment.
type Event struct {
	MonoTime   uint64      `cbor:"1,keyasint"`
	Valid      bool        `cbor:"2,keyasint"`
	Init       *InitData   `cbor:"3,keyasint,omitempty"`
	CarInfo    *CarInfo    `cbor:"4,keyasint,omitempty"`
	Sentinel   *Sentinel   `cbor:"5,keyasint,omitempty"`
	Can        []CanData   `cbor:"6,keyasint,omitempty"`
	FrameIndex *FrameIndex `cbor:"7,keyasint,omitempty"`
}
