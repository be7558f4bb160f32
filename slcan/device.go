package slcan

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/aldas/go-imucan-client"
	"github.com/aldas/go-imucan-client/internal/utils"
	log "github.com/sirupsen/logrus"
)

// maxLineLength is longest SLCAN line we expect (`T` + 8 id + dlc + 16 data + 4 timestamp + `\r`). Buffer without line
// end longer than that is garbage and is discarded.
const maxLineLength = 64

var (
	closeChannelCommand = []byte("C\r")
	openChannelCommand  = []byte("O\r")
)

// Config configures SLCAN device
type Config struct {
	// Bitrate is CAN bus bitrate set on Initialize. 0 leaves adapter bitrate as it is.
	Bitrate int
	// DebugLogRawFrameBytes instructs device to log all read/written lines
	DebugLogRawFrameBytes bool
	// Logger is used for diagnostic logging. Defaults to logrus standard logger.
	Logger log.FieldLogger
}

// Device is SLCAN (Lawicel ASCII) adapter connected over serial port
type Device struct {
	device  io.ReadWriter
	timeNow func() time.Time
	logger  log.FieldLogger

	pending []byte
	config  Config
}

// NewDevice creates new instance of SLCAN device. Initialize must be called to open CAN channel.
func NewDevice(device io.ReadWriter, config Config) *Device {
	logger := config.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Device{
		device:  device,
		timeNow: time.Now,
		logger:  logger,
		pending: make([]byte, 0, maxLineLength),
		config:  config,
	}
}

// Initialize closes possibly opened channel, sets bitrate and opens channel
func (d *Device) Initialize() error {
	commands := [][]byte{closeChannelCommand}
	if d.config.Bitrate != 0 {
		cmd, err := BitrateCommand(d.config.Bitrate)
		if err != nil {
			return err
		}
		commands = append(commands, cmd)
	}
	commands = append(commands, openChannelCommand)

	for _, cmd := range commands {
		if err := d.write(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Close closes CAN channel and underlying port
func (d *Device) Close() error {
	err := d.write(closeChannelCommand)
	if c, ok := d.device.(io.Closer); ok {
		return errors.Join(err, c.Close())
	}
	return err
}

func (d *Device) write(b []byte) error {
	if d.config.DebugLogRawFrameBytes {
		d.logger.Debugf("writing SLCAN bytes: `%v`", utils.FormatControlChars(b))
	}
	_, err := d.device.Write(b)
	return err
}

func (d *Device) WriteRawFrame(ctx context.Context, frame imucan.RawFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.write(EncodeFrame(frame))
}

// ReadRawFrame reads lines until data frame is assembled or timeout elapses. Underlying port is expected to have read
// timeout set (serial ports return 0 bytes with io.EOF on timeout) so context and timeout are checked between reads.
func (d *Device) ReadRawFrame(ctx context.Context, timeout time.Duration) (imucan.RawFrame, bool, error) {
	deadline := d.timeNow().Add(timeout)
	buf := make([]byte, maxLineLength)
	for {
		if frame, ok := d.nextFrame(); ok {
			return frame, true, nil
		}

		select {
		case <-ctx.Done():
			return imucan.RawFrame{}, false, ctx.Err()
		default:
		}
		if !d.timeNow().Before(deadline) {
			return imucan.RawFrame{}, false, nil
		}

		n, err := d.device.Read(buf)
		// serial port read timeout is reported as io.EOF (tarm/serial) or os.ErrDeadlineExceeded
		if err != nil && !(errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded)) {
			return imucan.RawFrame{}, false, err
		}
		d.pending = append(d.pending, buf[:n]...)
	}
}

// nextFrame extracts frames from complete lines in pending buffer
func (d *Device) nextFrame() (imucan.RawFrame, bool) {
	for {
		endIndex := bytes.IndexByte(d.pending, '\r')
		if endIndex == -1 {
			if len(d.pending) > maxLineLength {
				d.logger.Debugf("discarding SLCAN bytes without line end: `%v`", utils.FormatControlChars(d.pending))
				d.pending = d.pending[:0]
			}
			return imucan.RawFrame{}, false
		}
		line := d.pending[:endIndex+1]
		if d.config.DebugLogRawFrameBytes {
			d.logger.Debugf("read SLCAN line: `%v`", utils.FormatControlChars(line))
		}
		frame, skip, err := ParseFrame(line, d.timeNow())

		// keep whatever was read past current line end. probably nothing but could be start of next line
		rest := copy(d.pending, d.pending[endIndex+1:])
		d.pending = d.pending[:rest]

		if err != nil {
			d.logger.WithError(err).Debug("skipping SLCAN line")
			continue
		}
		if skip {
			continue
		}
		return frame, true
	}
}
