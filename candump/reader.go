package candump

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aldas/go-imucan-client"
	log "github.com/sirupsen/logrus"
)

// ErrReadOnly is returned when frame is written to candump log reader
var ErrReadOnly = errors.New("candump reader is read-only")

// Config configures candump log reader
type Config struct {
	// Interface limits frames to given interface name (ala `can0`). Empty means all interfaces.
	Interface string
	// Logger is used for diagnostic logging. Defaults to logrus standard logger.
	Logger log.FieldLogger
}

// Reader replays frames from candump log file as fast as they can be read
type Reader struct {
	reader  io.Reader
	scanner *bufio.Scanner
	timeNow func() time.Time
	logger  log.FieldLogger
	config  Config
}

// NewReader creates new candump log reader
func NewReader(reader io.Reader, config Config) *Reader {
	logger := config.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Reader{
		reader:  reader,
		scanner: bufio.NewScanner(reader),
		timeNow: time.Now,
		logger:  logger,
		config:  config,
	}
}

func (r *Reader) Initialize() error {
	return nil // do nothing
}

// ReadRawFrame returns next frame from log. Unparseable lines are logged and skipped. End of log is returned as io.EOF.
func (r *Reader) ReadRawFrame(ctx context.Context, _ time.Duration) (imucan.RawFrame, bool, error) {
	for r.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return imucan.RawFrame{}, false, err
		}
		entry, skip, err := ParseLine(r.scanner.Text(), r.timeNow())
		if err != nil {
			r.logger.WithError(err).Warn("skipping candump line")
			continue
		}
		if skip {
			continue
		}
		if r.config.Interface != "" && entry.Interface != r.config.Interface {
			continue
		}
		return entry.Frame, true, nil
	}
	if err := r.scanner.Err(); err != nil {
		return imucan.RawFrame{}, false, err
	}
	return imucan.RawFrame{}, false, io.EOF
}

func (r *Reader) WriteRawFrame(context.Context, imucan.RawFrame) error {
	return ErrReadOnly
}

func (r *Reader) Close() error {
	closer, ok := r.reader.(io.Closer)
	if ok {
		return closer.Close()
	}
	return nil
}
