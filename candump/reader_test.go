package candump

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aldas/go-imucan-client"
	test_test "github.com/aldas/go-imucan-client/test"
	"github.com/stretchr/testify/assert"
)

func readAll(t *testing.T, r *Reader) []imucan.RawFrame {
	frames := make([]imucan.RawFrame, 0)
	for {
		frame, ok, err := r.ReadRawFrame(context.Background(), time.Second)
		if err == io.EOF {
			return frames
		}
		assert.NoError(t, err)
		assert.True(t, ok)
		frames = append(frames, frame)
	}
}

func TestReader_ReadRawFrame(t *testing.T) {
	r := NewReader(bytes.NewReader(test_test.LoadBytes(t, "imu.log")), Config{})

	frames := readAll(t, r)

	ids := make([]uint32, 0, len(frames))
	for _, f := range frames {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []uint32{0x0B0201B1, 0x0B0201B2, 0x123, 0x0B0201B4, 0x0B0201B5}, ids)
	assert.Equal(t, test_test.UTCTime(1665488842).Add(100*time.Microsecond), frames[0].Time)
}

func TestReader_ReadRawFrame_interfaceFilter(t *testing.T) {
	r := NewReader(bytes.NewReader(test_test.LoadBytes(t, "imu.log")), Config{Interface: "can1"})

	frames := readAll(t, r)

	assert.Len(t, frames, 1)
	assert.Equal(t, uint32(0x0B0201B2), frames[0].ID)
}

func TestReader_ReadRawFrame_decodesIntoState(t *testing.T) {
	r := NewReader(bytes.NewReader(test_test.LoadBytes(t, "imu.log")), Config{Interface: "can0"})

	state := imucan.State{}
	for _, f := range readAll(t, r) {
		_, report, err := imucan.DecodeFrame(f)
		if err != nil {
			continue // standard frame 0x123
		}
		state.Apply(report)
	}

	assert.Equal(t, [3]float64{1, -2, 3}, state.Angle)
	assert.InDelta(t, 0.707107, state.Quaternion[0], 1e-6)
	assert.InDelta(t, 0.707107, state.Quaternion[3], 1e-6)
}

func TestReader_ReadRawFrame_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewReader(bytes.NewReader(test_test.LoadBytes(t, "imu.log")), Config{})

	_, ok, err := r.ReadRawFrame(ctx, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestReader_WriteRawFrame(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), Config{})

	err := r.WriteRawFrame(context.Background(), imucan.EnableFrame(imucan.Device{Model: 2, Number: 1}))

	assert.ErrorIs(t, err, ErrReadOnly)
}
