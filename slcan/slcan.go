// Package slcan implements Lawicel ASCII protocol (SLCAN) used by USB-CAN serial adapters (CANable, CANUSB, etc).
package slcan

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aldas/go-imucan-client"
)

const (
	// extendedIDLength is number of hex characters in 29bit identifier of `T` message
	extendedIDLength = 8
	// standardIDLength is number of hex characters in 11bit identifier of `t` message
	standardIDLength = 3

	maxStandardID = 0x7FF
	maxExtendedID = 0x1FFFFFFF
)

var errUnsupportedMessage = errors.New("unsupported slcan message")

// bitrateCommands maps CAN bus bitrate to SLCAN setup command `S0`..`S8`
var bitrateCommands = map[int]string{
	10_000:    "S0",
	20_000:    "S1",
	50_000:    "S2",
	100_000:   "S3",
	125_000:   "S4",
	250_000:   "S5",
	500_000:   "S6",
	800_000:   "S7",
	1_000_000: "S8",
}

// BitrateCommand returns setup command for given bitrate. Example: 500000 -> `S6\r`
func BitrateCommand(bitrate int) ([]byte, error) {
	cmd, ok := bitrateCommands[bitrate]
	if !ok {
		return nil, fmt.Errorf("unsupported slcan bitrate: %v", bitrate)
	}
	return []byte(cmd + "\r"), nil
}

const hextable = "0123456789ABCDEF"

// EncodeFrame converts frame to SLCAN transmit command. Identifiers larger than 0x7FF are sent as extended frames.
//
// Example: `T0B02010340B020101\r`
func EncodeFrame(frame imucan.RawFrame) []byte {
	payload := frame.Payload()

	b := make([]byte, 0, 1+extendedIDLength+1+len(payload)*2+1)
	if frame.ID > maxStandardID {
		b = append(b, 'T')
		b = appendHexID(b, frame.ID&maxExtendedID, extendedIDLength)
	} else {
		b = append(b, 't')
		b = appendHexID(b, frame.ID, standardIDLength)
	}
	b = append(b, '0'+byte(len(payload)))
	for _, v := range payload {
		b = append(b, hextable[v>>4], hextable[v&0x0f])
	}
	return append(b, '\r')
}

func appendHexID(dst []byte, id uint32, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, hextable[(id>>(uint(i)*4))&0x0f])
	}
	return dst
}

// ParseFrame parses single SLCAN line into frame. Remote frames (`r`, `R`), empty lines and command acknowledgements
// are reported as skippable.
//
// Example: `T0B0201B16640038FF2C01\r`
func ParseFrame(line []byte, now time.Time) (imucan.RawFrame, bool, error) {
	line = bytes.Trim(line, "\r\n\a")
	if len(line) == 0 {
		return imucan.RawFrame{}, true, nil
	}

	idLength := 0
	switch line[0] {
	case 'T':
		idLength = extendedIDLength
	case 't':
		idLength = standardIDLength
	case 'r', 'R':
		return imucan.RawFrame{}, true, nil
	case 'z', 'Z': // transmit acknowledgement
		return imucan.RawFrame{}, true, nil
	default:
		return imucan.RawFrame{}, true, fmt.Errorf("%w: %q", errUnsupportedMessage, line[0])
	}

	headerLength := 1 + idLength + 1 // type + identifier + dlc
	if len(line) < headerLength {
		return imucan.RawFrame{}, false, fmt.Errorf("slcan frame too short: %q", line)
	}
	canID, err := strconv.ParseUint(string(line[1:1+idLength]), 16, 32)
	if err != nil {
		return imucan.RawFrame{}, false, fmt.Errorf("slcan frame has invalid identifier: %w", err)
	}
	if idLength == extendedIDLength && canID > maxExtendedID {
		return imucan.RawFrame{}, false, fmt.Errorf("slcan frame identifier out of range: %#x", canID)
	}

	dlc := line[headerLength-1]
	if dlc < '0' || dlc > '8' {
		return imucan.RawFrame{}, false, fmt.Errorf("slcan frame has invalid data length code: %q", dlc)
	}
	length := int(dlc - '0')

	// adapters with timestamps enabled append 4 hex characters after data. these are ignored.
	dataHex := line[headerLength:]
	if len(dataHex) < length*2 {
		return imucan.RawFrame{}, false, fmt.Errorf("slcan frame data shorter than data length code: %q", line)
	}
	f := imucan.RawFrame{
		Time:   now,
		ID:     uint32(canID),
		Length: uint8(length),
	}
	if _, err := hex.Decode(f.Data[:], dataHex[:length*2]); err != nil {
		return imucan.RawFrame{}, false, fmt.Errorf("slcan frame has invalid data: %w", err)
	}
	return f, false, nil
}
