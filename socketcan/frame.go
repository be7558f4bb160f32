package socketcan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/aldas/go-imucan-client"
)

const (
	// frameSize is size of Linux `struct can_frame`. https://github.com/linux-can/can-utils/blob/affdc1b79973c7497bb8607603c24734e11a91aa/include/linux/can.h#L107
	frameSize = 16

	// canEFFMask is bitmask to get 0-28bits belonging to extended CAN ID from socketCAN struct
	canEFFMask = uint32(0x1FFFFFFF)
	// canSFFMask is bitmask to get 0-10bits belonging to standard CAN ID from socketCAN struct
	canSFFMask = uint32(0x7FF)
	// canIDERRFlag is bit 29 in CAN ID and means ERR error message flag (0 = data frame, 1 = error message)
	canIDERRFlag = uint32(1 << 29)
	// canIDRTRFlag is bit 30 in CAN ID and means RTR remote transmission request (1 = rtr frame)
	canIDRTRFlag = uint32(1 << 30)
	// canIDEFFFlag is bit 31 in CAN ID and means EFF extended frame format / IDE identifier extension flag (0 = standard 11 bit, 1 = extended 29 bit)
	canIDEFFFlag = uint32(1 << 31)
)

// errSkipFrame is returned for frames that are not data frames (remote transmission requests and error frames). These
// are not interpreted and reader should continue with next frame.
var errSkipFrame = errors.New("not a data frame")

// MarshalFrame converts frame to Linux `struct can_frame` bytes. Identifiers larger than 0x7FF are sent as extended
// frames.
func MarshalFrame(frame imucan.RawFrame) []byte {
	canFrame := make([]byte, frameSize)

	// bits 0-28 is CAN ID
	// bit 29 is ERR error message flag (0 = data frame, 1 = error message)
	// bit 30 is RTR remote transmission request (1 = rtr frame)
	// bit 31 is EFF extended frame format / IDE identifier extension flag (0 = standard 11 bit, 1 = extended 29 bit)
	canID := frame.ID & canSFFMask
	if frame.ID > canSFFMask {
		canID = frame.ID&canEFFMask | canIDEFFFlag // canID + EFF flag
	}
	binary.LittleEndian.PutUint32(canFrame[0:4], canID) // FIXME: for big-endian arch (mips64, ppc64) we should use big-endian

	// bits 32-40 data length
	payload := frame.Payload()
	canFrame[4] = uint8(len(payload))
	copy(canFrame[8:], payload)
	return canFrame
}

// UnmarshalFrame converts Linux `struct can_frame` bytes to frame.
func UnmarshalFrame(canFrame []byte, now time.Time) (imucan.RawFrame, error) {
	if len(canFrame) < frameSize {
		return imucan.RawFrame{}, fmt.Errorf("socketcan frame too short, got %d bytes", len(canFrame))
	}
	canID := binary.LittleEndian.Uint32(canFrame[0:4])
	if canID&canIDRTRFlag != 0 {
		return imucan.RawFrame{}, fmt.Errorf("%w: remote transmission request frame", errSkipFrame)
	} else if canID&canIDERRFlag != 0 {
		return imucan.RawFrame{}, fmt.Errorf("%w: error message frame", errSkipFrame)
	}

	if canID&canIDEFFFlag != 0 {
		canID &= canEFFMask
	} else {
		canID &= canSFFMask
	}
	length := canFrame[4]
	if length > imucan.MaxFrameDataLength {
		length = imucan.MaxFrameDataLength
	}
	f := imucan.RawFrame{
		Time:   now,
		ID:     canID,
		Length: length,
	}
	copy(f.Data[:], canFrame[8:8+length])
	return f, nil
}
