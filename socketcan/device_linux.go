//go:build linux

package socketcan

import (
	"context"
	"errors"
	"time"

	"github.com/aldas/go-imucan-client"
)

// maxReadBlock limits how long single Read call blocks so context cancellation is noticed in reasonable time
const maxReadBlock = 50 * time.Millisecond

// DeviceConfig configures SocketCAN device
type DeviceConfig struct {
	// InterfaceName is SocketCAN interface name. For example: can0
	InterfaceName string
	// IMUFilterOnly installs kernel filter so only IMU class extended frames are received
	IMUFilterOnly bool
	// SendTimeout limits how long write may block when socket send buffer is full
	SendTimeout time.Duration
}

// connection is the part of *Connection that Device uses
type connection interface {
	SetReadTimeout(timeout time.Duration) error
	SendFrame(frame imucan.RawFrame) error
	ReadRawFrame() (imucan.RawFrame, error)
	Close() error
}

// Device is SocketCAN transport
type Device struct {
	conn   connection
	config DeviceConfig

	timeNow func() time.Time
}

// NewDevice creates new instance of SocketCAN device. Initialize must be called to open the socket.
func NewDevice(config DeviceConfig) *Device {
	if config.SendTimeout <= 0 {
		config.SendTimeout = 1 * time.Second
	}
	return &Device{
		config:  config,
		timeNow: time.Now,
	}
}

// Initialize opens and binds the socket
func (d *Device) Initialize() error {
	conn, err := NewConnection(d.config.InterfaceName)
	if err != nil {
		return err
	}
	if d.config.IMUFilterOnly {
		if err := conn.SetIMUFilter(); err != nil {
			_ = conn.Close()
			return err
		}
	}
	if err := conn.SetSendTimeout(d.config.SendTimeout); err != nil {
		_ = conn.Close()
		return err
	}
	d.conn = conn
	return nil
}

// Close closes the socket. Closing already closed device is no-op.
func (d *Device) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

var errNotInitialized = errors.New("socketcan device is not initialized")

func (d *Device) WriteRawFrame(ctx context.Context, frame imucan.RawFrame) error {
	if d.conn == nil {
		return errNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.conn.SendFrame(frame)
}

// ReadRawFrame waits up to timeout for next data frame. Remote transmission requests and error frames are skipped.
func (d *Device) ReadRawFrame(ctx context.Context, timeout time.Duration) (imucan.RawFrame, bool, error) {
	if d.conn == nil {
		return imucan.RawFrame{}, false, errNotInitialized
	}
	deadline := d.timeNow().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			return imucan.RawFrame{}, false, ctx.Err()
		default:
		}

		remaining := deadline.Sub(d.timeNow())
		if remaining <= 0 {
			return imucan.RawFrame{}, false, nil
		}
		if remaining > maxReadBlock {
			remaining = maxReadBlock
		}
		if err := d.conn.SetReadTimeout(remaining); err != nil {
			return imucan.RawFrame{}, false, err
		}

		frame, err := d.conn.ReadRawFrame()
		if err != nil {
			if errors.Is(err, errReadTimeout) || errors.Is(err, errSkipFrame) {
				continue
			}
			return imucan.RawFrame{}, false, err
		}
		return frame, true, nil
	}
}
