// Package candump reads and writes CAN frames in can-utils `candump` text formats.
package candump

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aldas/go-imucan-client"
)

// Entry is single parsed candump line
type Entry struct {
	Interface string
	Frame     imucan.RawFrame
}

// MarshalFrame converts frame to `candump -l` log line.
//
// Example: `(1665488842.000000) can0 0B0201B1#640038FF2C01`
func MarshalFrame(frame imucan.RawFrame, iface string) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "(%d.%06d) %v ", frame.Time.Unix(), frame.Time.Nanosecond()/1000, iface)
	if frame.ID > 0x7FF {
		fmt.Fprintf(&b, "%08X#", frame.ID)
	} else {
		fmt.Fprintf(&b, "%03X#", frame.ID)
	}
	fmt.Fprintf(&b, "%X", frame.Payload())
	return b.String()
}

// ParseLine parses `candump -l` log line or `candump` console line. Empty lines, comments and remote request frames
// are reported as skippable. Lines without timestamp get `now` as frame time.
//
// Examples:
// `(1665488842.123456) can0 0B0201B1#640038FF2C01`
// `  can0  0B0201B1   [6]  64 00 38 FF 2C 01`
// `(1665488842.123456)  can0  0B0201B1   [6]  64 00 38 FF 2C 01`
func ParseLine(line string, now time.Time) (Entry, bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0][0] == '#' {
		return Entry{}, true, nil
	}

	frameTime := now
	if strings.HasPrefix(fields[0], "(") {
		t, err := parseTimestamp(fields[0])
		if err != nil {
			return Entry{}, false, err
		}
		frameTime = t
		fields = fields[1:]
	}
	if len(fields) < 2 {
		return Entry{}, false, errors.New("candump line has fewer components than expected")
	}

	entry := Entry{Interface: fields[0]}
	var err error
	skip := false
	if strings.Contains(fields[1], "#") {
		entry.Frame, skip, err = parseCompactFrame(fields[1])
	} else {
		entry.Frame, skip, err = parseConsoleFrame(fields[1:])
	}
	if err != nil || skip {
		return Entry{}, skip, err
	}
	entry.Frame.Time = frameTime
	return entry, false, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if len(raw) < 3 || raw[len(raw)-1] != ')' {
		return time.Time{}, fmt.Errorf("candump line has invalid timestamp: %v", raw)
	}
	secPart, fracPart, _ := strings.Cut(raw[1:len(raw)-1], ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("candump line has invalid timestamp seconds, err: %w", err)
	}
	nsec := int64(0)
	if fracPart != "" {
		if len(fracPart) > 9 {
			fracPart = fracPart[:9]
		}
		nsec, err = strconv.ParseInt(fracPart+strings.Repeat("0", 9-len(fracPart)), 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("candump line has invalid timestamp fraction, err: %w", err)
		}
	}
	return time.Unix(sec, nsec).In(time.UTC), nil
}

// parseCompactFrame parses `<id>#<data>` notation. `<id>#R` is remote request frame.
func parseCompactFrame(raw string) (imucan.RawFrame, bool, error) {
	idPart, dataPart, _ := strings.Cut(raw, "#")
	if strings.HasPrefix(dataPart, "R") {
		return imucan.RawFrame{}, true, nil
	}
	if strings.HasPrefix(dataPart, "#") {
		return imucan.RawFrame{}, false, fmt.Errorf("candump CAN FD frames are not supported: %v", raw)
	}
	canID, err := parseID(idPart)
	if err != nil {
		return imucan.RawFrame{}, false, err
	}
	data, err := hex.DecodeString(strings.ReplaceAll(dataPart, ".", ""))
	if err != nil {
		return imucan.RawFrame{}, false, fmt.Errorf("candump line failure to convert hex into bytes, err: %w", err)
	}
	frame, err := imucan.NewRawFrame(canID, data)
	return frame, false, err
}

// parseConsoleFrame parses `<id> [<len>] <byte> <byte> ...` notation
func parseConsoleFrame(fields []string) (imucan.RawFrame, bool, error) {
	if len(fields) < 2 {
		return imucan.RawFrame{}, false, errors.New("candump line has fewer components than expected")
	}
	canID, err := parseID(fields[0])
	if err != nil {
		return imucan.RawFrame{}, false, err
	}
	lenPart := fields[1]
	if len(lenPart) < 3 || lenPart[0] != '[' || lenPart[len(lenPart)-1] != ']' {
		return imucan.RawFrame{}, false, fmt.Errorf("candump line has invalid data length: %v", lenPart)
	}
	dLen, err := strconv.ParseUint(lenPart[1:len(lenPart)-1], 10, 8)
	if err != nil {
		return imucan.RawFrame{}, false, fmt.Errorf("candump line has invalid data length, err: %w", err)
	}
	rest := fields[2:]
	if len(rest) > 0 && rest[0] == "remote" {
		return imucan.RawFrame{}, true, nil
	}
	if len(rest) < int(dLen) {
		return imucan.RawFrame{}, false, errors.New("candump line data length does not match bytes count")
	}
	data, err := hex.DecodeString(strings.Join(rest[:dLen], ""))
	if err != nil {
		return imucan.RawFrame{}, false, fmt.Errorf("candump line failure to convert hex into bytes, err: %w", err)
	}
	frame, err := imucan.NewRawFrame(canID, data)
	return frame, false, err
}

func parseID(raw string) (uint32, error) {
	if len(raw) != 3 && len(raw) != 8 {
		return 0, fmt.Errorf("candump line has invalid identifier length: %v", raw)
	}
	canID, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("candump line has invalid identifier, err: %w", err)
	}
	if canID > 0x1FFFFFFF {
		return 0, fmt.Errorf("candump line identifier out of range: %v", raw)
	}
	return uint32(canID), nil
}
