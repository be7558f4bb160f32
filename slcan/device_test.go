package slcan

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aldas/go-imucan-client"
	test_test "github.com/aldas/go-imucan-client/test"
	"github.com/stretchr/testify/assert"
)

// fakePort returns one chunk per Read call and (0, io.EOF) like tarm/serial on read timeout when chunks run out
type fakePort struct {
	chunks  [][]byte
	repeat  []byte
	readErr error
	written bytes.Buffer
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		if p.repeat != nil {
			return copy(b, p.repeat), nil
		}
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, io.EOF
	}
	n := copy(b, p.chunks[0])
	if n < len(p.chunks[0]) {
		p.chunks[0] = p.chunks[0][n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newTestDevice(port io.ReadWriter, config Config) *Device {
	d := NewDevice(port, config)
	d.timeNow = func() time.Time {
		return test_test.UTCTime(1665488842)
	}
	return d
}

func TestDevice_Initialize(t *testing.T) {
	var testCases = []struct {
		name        string
		whenBitrate int
		expect      string
		expectError string
	}{
		{
			name:        "ok, with bitrate",
			whenBitrate: 500_000,
			expect:      "C\rS6\rO\r",
		},
		{
			name:   "ok, without bitrate",
			expect: "C\rO\r",
		},
		{
			name:        "nok, unsupported bitrate",
			whenBitrate: 1,
			expectError: "unsupported slcan bitrate: 1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			port := &fakePort{}
			d := newTestDevice(port, Config{Bitrate: tc.whenBitrate})

			err := d.Initialize()

			assert.Equal(t, tc.expect, port.written.String())
			if tc.expectError != "" {
				assert.EqualError(t, err, tc.expectError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDevice_ReadRawFrame(t *testing.T) {
	port := &fakePort{
		chunks: [][]byte{
			[]byte("0201B1664"), // started reading from the middle of line
			[]byte("\rT0B02"),
			[]byte("01B16640038FF2C01\rz\rT0B0201B2600000000000"),
			[]byte("0\r"),
		},
	}
	d := newTestDevice(port, Config{})
	now := test_test.UTCTime(1665488842)

	frame, ok, err := d.ReadRawFrame(context.Background(), 10*time.Millisecond)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, imucan.RawFrame{
		Time:   now,
		ID:     0x0B0201B1,
		Length: 6,
		Data:   [8]byte{0x64, 0x00, 0x38, 0xFF, 0x2C, 0x01},
	}, frame)

	frame, ok, err = d.ReadRawFrame(context.Background(), 10*time.Millisecond)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, imucan.RawFrame{Time: now, ID: 0x0B0201B2, Length: 6}, frame)
}

func TestDevice_ReadRawFrame_timeout(t *testing.T) {
	d := NewDevice(&fakePort{}, Config{})

	frame, ok, err := d.ReadRawFrame(context.Background(), 5*time.Millisecond)

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, imucan.RawFrame{}, frame)
}

func TestDevice_ReadRawFrame_timeoutErrorsAreNotFatal(t *testing.T) {
	var testCases = []struct {
		name    string
		whenErr error
	}{
		{
			name:    "ok, io.EOF from serial read timeout",
			whenErr: io.EOF,
		},
		{
			name:    "ok, deadline exceeded",
			whenErr: os.ErrDeadlineExceeded,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDevice(&fakePort{readErr: tc.whenErr}, Config{})

			_, ok, err := d.ReadRawFrame(context.Background(), 5*time.Millisecond)

			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDevice_ReadRawFrame_timeoutWhileOnlySkippedLinesArrive(t *testing.T) {
	port := &fakePort{repeat: []byte("z\r")}
	d := NewDevice(port, Config{})
	now := test_test.UTCTime(1665488842)
	d.timeNow = func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}

	frame, ok, err := d.ReadRawFrame(context.Background(), 20*time.Millisecond)

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, imucan.RawFrame{}, frame)
}

func TestDevice_ReadRawFrame_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDevice(&fakePort{}, Config{})

	_, ok, err := d.ReadRawFrame(ctx, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestDevice_ReadRawFrame_readError(t *testing.T) {
	d := NewDevice(&fakePort{readErr: io.ErrUnexpectedEOF}, Config{})

	_, ok, err := d.ReadRawFrame(context.Background(), time.Second)

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, ok)
}

func TestDevice_ReadRawFrame_discardsLongGarbage(t *testing.T) {
	port := &fakePort{
		chunks: [][]byte{
			bytes.Repeat([]byte{'x'}, maxLineLength+1),
			[]byte("T0B0201B00\r"),
		},
	}
	d := newTestDevice(port, Config{})

	frame, ok, err := d.ReadRawFrame(context.Background(), 10*time.Millisecond)

	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x0B0201B0), frame.ID)
}

func TestDevice_WriteRawFrame(t *testing.T) {
	port := &fakePort{}
	d := newTestDevice(port, Config{DebugLogRawFrameBytes: true})

	err := d.WriteRawFrame(context.Background(), imucan.EnableFrame(imucan.Device{Model: 2, Number: 1}))

	assert.NoError(t, err)
	assert.Equal(t, "T0B02010340B020101\r", port.written.String())
}

func TestDevice_WriteRawFrame_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	port := &fakePort{}
	d := newTestDevice(port, Config{})

	err := d.WriteRawFrame(ctx, imucan.EnableFrame(imucan.Device{Model: 2, Number: 1}))

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, port.written.Len())
}

func TestDevice_Close(t *testing.T) {
	port := &fakePort{}
	d := newTestDevice(port, Config{})

	err := d.Close()

	assert.NoError(t, err)
	assert.True(t, port.closed)
	assert.Equal(t, "C\r", port.written.String())
}

func TestDevice_streamRunsOnQuietPort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	d := NewDevice(&fakePort{}, Config{})
	stream := imucan.NewStream(d, imucan.StreamConfig{
		Device:      imucan.Device{Model: 2, Number: 1},
		PollTimeout: 10 * time.Millisecond,
	})

	err := stream.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var transportErr *imucan.TransportError
	assert.False(t, errors.As(err, &transportErr))
	assert.Equal(t, imucan.StreamStats{}, stream.Stats())
}
