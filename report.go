package imucan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedPayload is returned when payload is too short for function fixed layout. Use errors.Is to check for it,
// actual returned error is *PayloadError.
var ErrMalformedPayload = errors.New("malformed payload")

// PayloadError describes payload that could not be decoded for given function.
type PayloadError struct {
	Function Function
	Length   int
	Need     int
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed payload for function %v: got %d bytes, need at least %d", e.Function, e.Length, e.Need)
}

// Is allows errors.Is(err, ErrMalformedPayload)
func (e *PayloadError) Is(target error) bool {
	return target == ErrMalformedPayload
}

const (
	// vectorPayloadLength is 3 signed 16 bit little-endian values
	vectorPayloadLength = 6
	// floatPairPayloadLength is 2 IEEE-754 32 bit little-endian floats
	floatPairPayloadLength = 8
	// vectorScale converts vector raw values to physical units (deg, deg/s, m/s²)
	vectorScale = 100.0
)

// Report is decoded IMU telemetry payload. Set of reports is closed: AngleReport, AngleRateReport, AccelReport,
// QuaternionReport and UnknownReport.
type Report interface {
	Function() Function
	isReport()
}

// AngleReport is orientation in degrees
type AngleReport struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// AngleRateReport is angular rate in deg/s
type AngleRateReport struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// AccelReport is acceleration in m/s². Device names this function "angle acc" but values are linear acceleration.
type AccelReport struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// QuaternionHalf tells which half of quaternion report carries. 8 byte payload can not fit 4 floats so quaternion is
// sent as 2 frames.
type QuaternionHalf uint8

const (
	// QuaternionFirst carries w and x components
	QuaternionFirst QuaternionHalf = iota
	// QuaternionSecond carries y and z components
	QuaternionSecond
)

func (h QuaternionHalf) String() string {
	if h == QuaternionFirst {
		return "first"
	}
	return "second"
}

// QuaternionReport is half of quaternion. First half A,B are (w,x) and second half A,B are (y,z).
type QuaternionReport struct {
	Half QuaternionHalf `json:"half"`
	A    float64        `json:"a"`
	B    float64        `json:"b"`
}

// UnknownReport is report for function that decoder does not understand. Applying it to state is no-op.
type UnknownReport struct {
	Func Function `json:"function"`
}

func (AngleReport) Function() Function     { return FunctionAngleReport }
func (AngleRateReport) Function() Function { return FunctionAngleSpeedReport }
func (AccelReport) Function() Function     { return FunctionAngleAccReport }
func (r QuaternionReport) Function() Function {
	if r.Half == QuaternionFirst {
		return FunctionQuaternionReport1
	}
	return FunctionQuaternionReport2
}
func (r UnknownReport) Function() Function { return r.Func }

func (AngleReport) isReport()      {}
func (AngleRateReport) isReport()  {}
func (AccelReport) isReport()      {}
func (QuaternionReport) isReport() {}
func (UnknownReport) isReport()    {}

// DecodePayload decodes frame payload for given function code. Payload is little-endian. Unknown function codes
// result UnknownReport without error. Payloads shorter than function layout result *PayloadError, longer payloads
// are accepted and extra bytes are ignored.
func DecodePayload(function Function, payload []byte) (Report, error) {
	switch function {
	case FunctionAngleReport:
		v, err := decodeVector(function, payload)
		if err != nil {
			return nil, err
		}
		return AngleReport{Roll: v[0], Pitch: v[1], Yaw: v[2]}, nil
	case FunctionAngleSpeedReport:
		v, err := decodeVector(function, payload)
		if err != nil {
			return nil, err
		}
		return AngleRateReport{X: v[0], Y: v[1], Z: v[2]}, nil
	case FunctionAngleAccReport:
		v, err := decodeVector(function, payload)
		if err != nil {
			return nil, err
		}
		return AccelReport{X: v[0], Y: v[1], Z: v[2]}, nil
	case FunctionQuaternionReport1:
		a, b, err := decodeFloatPair(function, payload)
		if err != nil {
			return nil, err
		}
		return QuaternionReport{Half: QuaternionFirst, A: a, B: b}, nil
	case FunctionQuaternionReport2:
		a, b, err := decodeFloatPair(function, payload)
		if err != nil {
			return nil, err
		}
		return QuaternionReport{Half: QuaternionSecond, A: a, B: b}, nil
	}
	return UnknownReport{Func: function}, nil
}

func decodeVector(function Function, payload []byte) ([3]float64, error) {
	if len(payload) < vectorPayloadLength {
		return [3]float64{}, &PayloadError{Function: function, Length: len(payload), Need: vectorPayloadLength}
	}
	return [3]float64{
		float64(int16(binary.LittleEndian.Uint16(payload[0:2]))) / vectorScale,
		float64(int16(binary.LittleEndian.Uint16(payload[2:4]))) / vectorScale,
		float64(int16(binary.LittleEndian.Uint16(payload[4:6]))) / vectorScale,
	}, nil
}

func decodeFloatPair(function Function, payload []byte) (float64, float64, error) {
	if len(payload) < floatPairPayloadLength {
		return 0, 0, &PayloadError{Function: function, Length: len(payload), Need: floatPairPayloadLength}
	}
	a := math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4]))
	b := math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8]))
	return float64(a), float64(b), nil
}
