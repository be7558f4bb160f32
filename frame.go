package imucan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// MaxFrameDataLength is maximum data length of classical CAN frame
const MaxFrameDataLength = 8

// ErrDataTooLong is returned when frame is created from more than 8 bytes of data
var ErrDataTooLong = errors.New("frame data longer than 8 bytes")

// RawFrame is single CAN frame as read from or written to the bus.
type RawFrame struct {
	// Time is when frame was read from CAN bus. Filled by transport.
	Time time.Time `json:"time"`

	// ID is 29 bit extended (or 11 bit standard) CAN identifier
	ID     uint32  `json:"id"`
	Length uint8   `json:"length"` // 0-8
	Data   [8]byte `json:"data"`
}

// NewRawFrame creates frame with given ID and data. Data can be up to 8 bytes long.
func NewRawFrame(canID uint32, data []byte) (RawFrame, error) {
	if len(data) > MaxFrameDataLength {
		return RawFrame{}, ErrDataTooLong
	}
	f := RawFrame{
		ID:     canID,
		Length: uint8(len(data)),
	}
	copy(f.Data[:], data)
	return f, nil
}

// Payload returns data bytes that frame actually carries
func (f RawFrame) Payload() []byte {
	l := f.Length
	if l > MaxFrameDataLength {
		l = MaxFrameDataLength
	}
	return f.Data[:l]
}

func (f RawFrame) String() string {
	return fmt.Sprintf("%08X#%s", f.ID, hex.EncodeToString(f.Payload()))
}

// DecodeFrame decodes frame CAN ID to address and frame payload to report. Frames with InvalidIdentifier never reach
// payload decoding.
func DecodeFrame(frame RawFrame) (Address, Report, error) {
	addr, err := ParseCANID(frame.ID)
	if err != nil {
		return Address{}, nil, err
	}
	report, err := DecodePayload(addr.Function, frame.Payload())
	if err != nil {
		return addr, nil, err
	}
	return addr, report, nil
}
