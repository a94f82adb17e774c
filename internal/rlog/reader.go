package rlog

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// ReadSegment decodes all events from a compressed segment file.
func ReadSegment(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer dec.Close()

	var events []Event
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(dec, lenBuf[:]); err != nil {
			if err == io.EOF {
				return events, nil
			}
			return nil, fmt.Errorf("%s: truncated record length: %w", path, err)
		}

		body := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(dec, body); err != nil {
			return nil, fmt.Errorf("%s: truncated record: %w", path, err)
		}

		var ev Event
		if err := cbor.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("%s: failed to decode event: %w", path, err)
		}
		events = append(events, ev)
	}
}
