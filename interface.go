package imucan

import (
	"context"
	"time"
)

// FrameReader reads frames from CAN bus.
type FrameReader interface {
	// ReadRawFrame waits up to timeout for next frame. When no frame was received in time `ok` is false and error is
	// nil. ReadRawFrame never blocks past timeout.
	ReadRawFrame(ctx context.Context, timeout time.Duration) (frame RawFrame, ok bool, err error)
}

// FrameWriter sends frames to CAN bus. Controller returns write failures as *TransportError.
type FrameWriter interface {
	WriteRawFrame(ctx context.Context, frame RawFrame) error
}

// Transport is CAN bus connection. Initialize must be called before reading/writing and Close releases the bus.
type Transport interface {
	FrameReader
	FrameWriter
	Initialize() error
	Close() error
}
