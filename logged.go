package imucan

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// LogOption is a bitmask for selecting which operations LoggedTransport logs
type LogOption uint8

const (
	LogRead LogOption = 1 << iota
	LogWrite
)

const (
	LogNone LogOption = 0
	LogAll  LogOption = LogRead | LogWrite
)

// FrameFormatter converts frame to text for logging
type FrameFormatter func(frame RawFrame) string

// LoggedTransport is Transport decorator that logs read and written frames at debug level
type LoggedTransport struct {
	inner  Transport
	logger log.FieldLogger
	opts   LogOption
	format FrameFormatter
}

// NewLoggedTransport wraps transport and logs selected operations. Nil format uses RawFrame.String.
func NewLoggedTransport(inner Transport, logger log.FieldLogger, opts LogOption, format FrameFormatter) *LoggedTransport {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if format == nil {
		format = RawFrame.String
	}
	return &LoggedTransport{
		inner:  inner,
		logger: logger,
		opts:   opts,
		format: format,
	}
}

func (l *LoggedTransport) Initialize() error {
	return l.inner.Initialize()
}

func (l *LoggedTransport) Close() error {
	return l.inner.Close()
}

func (l *LoggedTransport) ReadRawFrame(ctx context.Context, timeout time.Duration) (RawFrame, bool, error) {
	frame, ok, err := l.inner.ReadRawFrame(ctx, timeout)
	if l.opts&LogRead != 0 && ok {
		l.logger.Debugf("read frame: %v", l.format(frame))
	}
	return frame, ok, err
}

func (l *LoggedTransport) WriteRawFrame(ctx context.Context, frame RawFrame) error {
	err := l.inner.WriteRawFrame(ctx, frame)
	if l.opts&LogWrite != 0 {
		if err != nil {
			l.logger.WithError(err).Debugf("failed to write frame: %v", l.format(frame))
		} else {
			l.logger.Debugf("wrote frame: %v", l.format(frame))
		}
	}
	return err
}
