package imucan

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultCapturePollTimeout is how long single receive waits for a frame during capture
const DefaultCapturePollTimeout = 1 * time.Second

// ErrNoDeviceFound is returned when capture limits were exhausted before any IMU frame was seen
var ErrNoDeviceFound = errors.New("no IMU device found on bus")

// CaptureConfig limits how long device capture is allowed to scan the bus. Zero Timeout/MaxFrames means no limit.
type CaptureConfig struct {
	// PollTimeout is how long single receive call may block. Defaults to DefaultCapturePollTimeout
	PollTimeout time.Duration
	// Timeout is overall time capture is allowed to take
	Timeout time.Duration
	// MaxFrames is how many frames (valid or not) capture examines before giving up
	MaxFrames int

	Logger log.FieldLogger
}

// CaptureDevice scans the bus until first frame with valid IMU identifier is received and returns the device that
// sent it. Frames with invalid identifiers are skipped.
func CaptureDevice(ctx context.Context, reader FrameReader, config CaptureConfig) (Device, error) {
	pollTimeout := config.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultCapturePollTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	framesSeen := 0
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && config.Timeout > 0 {
				return Device{}, ErrNoDeviceFound
			}
			return Device{}, ctx.Err()
		default:
		}
		if config.MaxFrames > 0 && framesSeen >= config.MaxFrames {
			return Device{}, ErrNoDeviceFound
		}

		frame, ok, err := reader.ReadRawFrame(ctx, pollTimeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				continue // let the select above decide between timeout and cancellation
			}
			return Device{}, &TransportError{Op: "read", Err: err}
		}
		if !ok {
			continue
		}
		framesSeen++

		addr, err := ParseCANID(frame.ID)
		if err != nil {
			logger.WithField("id", frame.ID).Debugf("capture skipped frame: %v", err)
			continue
		}
		device := addr.Device()
		logger.WithField("device", device).Info("captured IMU device")
		return device, nil
	}
}

// ResolveDevice returns device from selector when it has model and number set, otherwise device is captured from bus.
func ResolveDevice(ctx context.Context, reader FrameReader, selector DeviceSelector, config CaptureConfig) (Device, error) {
	if device, ok := selector.Resolve(); ok {
		return device, nil
	}
	return CaptureDevice(ctx, reader, config)
}
