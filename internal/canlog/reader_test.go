package canlog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "time_us,arb_id,extended,bus,dlc,d1,d2,d3,d4,d5,d6,d7,d8\n"

func TestReadParsesFrames(t *testing.T) {
	t.Parallel()

	frames, err := Read(strings.NewReader(header +
		"1000,123,false,0,2,FF,0A\n" +
		"2000,7DF,false,1,0\n"))
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, int64(1_000_000), frames[0].TimestampNs)
	assert.Equal(t, uint32(0x123), frames[0].ArbitrationID)
	assert.Equal(t, uint8(0), frames[0].BusID)
	assert.Equal(t, []byte{0xFF, 0x0A}, frames[0].Data)

	assert.Equal(t, int64(2_000_000), frames[1].TimestampNs)
	assert.Equal(t, uint32(0x7DF), frames[1].ArbitrationID)
	assert.Equal(t, uint8(1), frames[1].BusID)
	assert.Empty(t, frames[1].Data)
}

// Busy periods interleave bus 0 and bus 1 rows slightly out of timestamp
// order; the reader must hand downstream a globally sorted sequence.
func TestReadSortsInterleavedBuses(t *testing.T) {
	t.Parallel()

	frames, err := Read(strings.NewReader(header +
		"3000,100,false,0,1,01\n" +
		"1000,200,false,1,1,02\n" +
		"2000,300,false,0,1,03\n" +
		"1500,400,false,1,1,04\n"))
	require.NoError(t, err)
	require.Len(t, frames, 4)

	for i := 1; i < len(frames); i++ {
		assert.LessOrEqual(t, frames[i-1].TimestampNs, frames[i].TimestampNs,
			"frames must be non-decreasing in timestamp")
	}
	assert.Equal(t, uint32(0x200), frames[0].ArbitrationID)
	assert.Equal(t, uint32(0x100), frames[3].ArbitrationID)
}

// Ties keep input order: the sort must be stable so same-timestamp frames
// from one bus stay in arrival order.
func TestReadStableSortOnEqualTimestamps(t *testing.T) {
	t.Parallel()

	frames, err := Read(strings.NewReader(header +
		"1000,AAA,false,0,1,01\n" +
		"1000,BBB,false,0,1,02\n" +
		"1000,CCC,false,0,1,03\n"))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, uint32(0xAAA), frames[0].ArbitrationID)
	assert.Equal(t, uint32(0xBBB), frames[1].ArbitrationID)
	assert.Equal(t, uint32(0xCCC), frames[2].ArbitrationID)
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty file is malformed", func(t *testing.T) {
		t.Parallel()
		_, err := Read(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("header only is empty input", func(t *testing.T) {
		t.Parallel()
		_, err := Read(strings.NewReader(header))
		assert.ErrorIs(t, err, ErrEmptyLog)
	})

	t.Run("short row", func(t *testing.T) {
		t.Parallel()
		_, err := Read(strings.NewReader(header + "1000,123,false\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		t.Parallel()
		_, err := Read(strings.NewReader(header + "abc,123,false,0,1,01\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("bad arbitration id", func(t *testing.T) {
		t.Parallel()
		_, err := Read(strings.NewReader(header + "1000,zz,false,0,1,01\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("bad payload byte", func(t *testing.T) {
		t.Parallel()
		_, err := Read(strings.NewReader(header + "1000,123,false,0,1,GG\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("bad bus id", func(t *testing.T) {
		t.Parallel()
		_, err := Read(strings.NewReader(header + "1000,123,false,300,1,01\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestReadFileMissing(t *testing.T) {
	t.Parallel()
	_, err := ReadFile("testdata/does-not-exist.csv")
	assert.Error(t, err)
}
