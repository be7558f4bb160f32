package imucan

import (
	"context"
	"time"
)

// mockBus is in-memory transport. Reads return queued frames (nil entries are "no frame" polls) and after queue is
// empty onEmpty is called and readErr returned.
type mockBus struct {
	frames   []*RawFrame
	readErr  error
	onEmpty  func()
	reads    int
	timeouts []time.Duration

	written  []RawFrame
	writeErr error

	initialized bool
	closed      bool
}

func (b *mockBus) queue(frames ...RawFrame) {
	for i := range frames {
		b.frames = append(b.frames, &frames[i])
	}
}

func (b *mockBus) queueEmptyPoll() {
	b.frames = append(b.frames, nil)
}

func (b *mockBus) ReadRawFrame(ctx context.Context, timeout time.Duration) (RawFrame, bool, error) {
	b.reads++
	b.timeouts = append(b.timeouts, timeout)
	if err := ctx.Err(); err != nil {
		return RawFrame{}, false, err
	}
	if len(b.frames) == 0 {
		if b.onEmpty != nil {
			b.onEmpty()
		}
		return RawFrame{}, false, b.readErr
	}
	f := b.frames[0]
	b.frames = b.frames[1:]
	if f == nil {
		return RawFrame{}, false, nil
	}
	return *f, true, nil
}

func (b *mockBus) WriteRawFrame(_ context.Context, frame RawFrame) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	b.written = append(b.written, frame)
	return nil
}

func (b *mockBus) Initialize() error {
	b.initialized = true
	return nil
}

func (b *mockBus) Close() error {
	b.closed = true
	return nil
}

func mustFrame(canID uint32, data []byte) RawFrame {
	f, err := NewRawFrame(canID, data)
	if err != nil {
		panic(err)
	}
	return f
}
