//go:build linux

package socketcan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aldas/go-imucan-client"
	test_test "github.com/aldas/go-imucan-client/test"
	"github.com/stretchr/testify/assert"
)

type readResult struct {
	frame imucan.RawFrame
	err   error
}

// fakeConnection returns queued read results and errReadTimeout when queue runs out
type fakeConnection struct {
	reads        []readResult
	readTimeouts []time.Duration
	sent         []imucan.RawFrame
	closed       bool
	onRead       func()
}

func (c *fakeConnection) SetReadTimeout(timeout time.Duration) error {
	c.readTimeouts = append(c.readTimeouts, timeout)
	return nil
}

func (c *fakeConnection) SendFrame(frame imucan.RawFrame) error {
	c.sent = append(c.sent, frame)
	return nil
}

func (c *fakeConnection) ReadRawFrame() (imucan.RawFrame, error) {
	if c.onRead != nil {
		c.onRead()
	}
	if len(c.reads) == 0 {
		return imucan.RawFrame{}, errReadTimeout
	}
	r := c.reads[0]
	c.reads = c.reads[1:]
	return r.frame, r.err
}

func (c *fakeConnection) Close() error {
	c.closed = true
	return nil
}

// newTestDevice returns device with clock that advances 10ms on every read
func newTestDevice(conn *fakeConnection) *Device {
	d := NewDevice(DeviceConfig{InterfaceName: "can0"})
	d.conn = conn
	now := test_test.UTCTime(1665488842)
	d.timeNow = func() time.Time { return now }
	conn.onRead = func() { now = now.Add(10 * time.Millisecond) }
	return d
}

func TestDevice_ReadRawFrame(t *testing.T) {
	frame := imucan.RawFrame{ID: 0x0B0201B1, Length: 6, Data: [8]byte{0x64, 0x00, 0x38, 0xFF, 0x2C, 0x01}}
	var testCases = []struct {
		name               string
		whenReads          []readResult
		whenTimeout        time.Duration
		expect             imucan.RawFrame
		expectOK           bool
		expectReadTimeouts []time.Duration
		expectError        string
	}{
		{
			name:               "ok, frame",
			whenReads:          []readResult{{frame: frame}},
			whenTimeout:        time.Second,
			expect:             frame,
			expectOK:           true,
			expectReadTimeouts: []time.Duration{maxReadBlock},
		},
		{
			name: "ok, remote and error frames are skipped",
			whenReads: []readResult{
				{err: errSkipFrame},
				{err: errReadTimeout},
				{frame: frame},
			},
			whenTimeout:        time.Second,
			expect:             frame,
			expectOK:           true,
			expectReadTimeouts: []time.Duration{maxReadBlock, maxReadBlock, maxReadBlock},
		},
		{
			name:               "ok, no frame before timeout",
			whenTimeout:        25 * time.Millisecond,
			expectReadTimeouts: []time.Duration{25 * time.Millisecond, 15 * time.Millisecond, 5 * time.Millisecond},
		},
		{
			name:               "ok, only skipped frames before timeout",
			whenReads:          []readResult{{err: errSkipFrame}, {err: errSkipFrame}, {err: errSkipFrame}},
			whenTimeout:        20 * time.Millisecond,
			expectReadTimeouts: []time.Duration{20 * time.Millisecond, 10 * time.Millisecond},
		},
		{
			name:               "nok, read error",
			whenReads:          []readResult{{err: errors.New("network is down")}},
			whenTimeout:        time.Second,
			expectReadTimeouts: []time.Duration{maxReadBlock},
			expectError:        "network is down",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn := &fakeConnection{reads: tc.whenReads}
			d := newTestDevice(conn)

			result, ok, err := d.ReadRawFrame(context.Background(), tc.whenTimeout)

			assert.Equal(t, tc.expect, result)
			assert.Equal(t, tc.expectOK, ok)
			assert.Equal(t, tc.expectReadTimeouts, conn.readTimeouts)
			if tc.expectError != "" {
				assert.EqualError(t, err, tc.expectError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDevice_ReadRawFrame_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	conn := &fakeConnection{}
	d := newTestDevice(conn)

	_, ok, err := d.ReadRawFrame(ctx, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.Empty(t, conn.readTimeouts)
}

func TestDevice_notInitialized(t *testing.T) {
	d := NewDevice(DeviceConfig{InterfaceName: "can0"})

	_, _, err := d.ReadRawFrame(context.Background(), time.Second)
	assert.ErrorIs(t, err, errNotInitialized)

	err = d.WriteRawFrame(context.Background(), imucan.EnableFrame(imucan.Device{Model: 2, Number: 1}))
	assert.ErrorIs(t, err, errNotInitialized)

	assert.NoError(t, d.Close())
}

func TestDevice_WriteRawFrameAndClose(t *testing.T) {
	conn := &fakeConnection{}
	d := newTestDevice(conn)
	frame := imucan.EnableFrame(imucan.Device{Model: 2, Number: 1})

	err := d.WriteRawFrame(context.Background(), frame)
	assert.NoError(t, err)
	assert.Equal(t, []imucan.RawFrame{frame}, conn.sent)

	assert.NoError(t, d.Close())
	assert.True(t, conn.closed)
	assert.NoError(t, d.Close())
}
