package imucan

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultStreamPollTimeout is how long single receive waits for a frame while streaming
const DefaultStreamPollTimeout = 100 * time.Millisecond

// StreamConfig configures Stream
type StreamConfig struct {
	// Device is the IMU whose reports are applied to state. Frames from other IMUs are skipped unless AcceptAnyDevice
	// is set.
	Device          Device
	AcceptAnyDevice bool

	// PollTimeout is how long single receive call may block. Defaults to DefaultStreamPollTimeout
	PollTimeout time.Duration

	// Reporter receives state after each frame that changed state. Can be nil.
	Reporter Reporter

	Logger log.FieldLogger
}

// StreamStats are counters of frames seen by Stream
type StreamStats struct {
	Frames            uint64 `json:"frames"`
	Applied           uint64 `json:"applied"`
	Unknown           uint64 `json:"unknown"`
	InvalidIdentifier uint64 `json:"invalid_identifier"`
	OtherDevice       uint64 `json:"other_device"`
	MalformedPayload  uint64 `json:"malformed_payload"`
}

// Stream reads frames from bus, decodes them and keeps IMU state. Stream is single consumer: state is only touched
// by goroutine executing Run.
type Stream struct {
	reader FrameReader
	config StreamConfig
	logger log.FieldLogger

	state State
	stats StreamStats
}

// NewStream creates new instance of Stream
func NewStream(reader FrameReader, config StreamConfig) *Stream {
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultStreamPollTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Stream{
		reader: reader,
		config: config,
		logger: logger,
	}
}

// Run receives and processes frames until context is cancelled or transport fails. Context cancellation returns
// context error, transport failures are returned as *TransportError.
func (s *Stream) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, ok, err := s.reader.ReadRawFrame(ctx, s.config.PollTimeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			return &TransportError{Op: "read", Err: err}
		}
		if !ok {
			continue
		}
		if err := s.Process(ctx, frame); err != nil {
			return err
		}
	}
}

// Process decodes single frame and applies it to state. Only reporter errors are returned, frames that can not be
// decoded are dropped.
func (s *Stream) Process(ctx context.Context, frame RawFrame) error {
	s.stats.Frames++

	addr, err := ParseCANID(frame.ID)
	if err != nil {
		s.stats.InvalidIdentifier++
		s.logger.WithField("id", fmt.Sprintf("%08X", frame.ID)).Debugf("skipped frame: %v", err)
		return nil
	}
	if !s.config.AcceptAnyDevice && addr.Device() != s.config.Device {
		s.stats.OtherDevice++
		s.logger.WithField("address", addr).Debug("skipped frame from other device")
		return nil
	}

	report, err := DecodePayload(addr.Function, frame.Payload())
	if err != nil {
		s.stats.MalformedPayload++
		s.logger.WithField("frame", frame).Warnf("dropped frame: %v", err)
		return nil
	}
	// unknown functions (heartbeat etc.) do not change state so state is not reported for them
	if _, isUnknown := report.(UnknownReport); isUnknown {
		s.stats.Unknown++
		return nil
	}
	s.state.Apply(report)
	s.stats.Applied++

	if s.config.Reporter == nil {
		return nil
	}
	update := Update{
		Time:     frame.Time,
		Device:   addr.Device(),
		Function: addr.Function,
		State:    s.state,
	}
	if err := s.config.Reporter.Report(ctx, update); err != nil {
		return fmt.Errorf("stream failed to report state: %w", err)
	}
	return nil
}

// State returns copy of current state. Must not be called concurrently with Run.
func (s *Stream) State() State {
	return s.state
}

// Stats returns copy of frame counters. Must not be called concurrently with Run.
func (s *Stream) Stats() StreamStats {
	return s.stats
}
