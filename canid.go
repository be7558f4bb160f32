package imucan

import (
	"errors"
	"fmt"
)

// ClassIMU is device class reserved for inertial measurement units. Class is the highest byte of CAN ID.
const ClassIMU = uint8(0x0B)

// maxStandardID is the largest 11 bit (standard frame) identifier. Everything above it needs extended 29 bit frame.
const maxStandardID = uint32(0x7FF)

var (
	// ErrInvalidIdentifier is returned when CAN ID is standard frame identifier or belongs to other than IMU class.
	// On shared bus this is expected and high-frequency error.
	ErrInvalidIdentifier = errors.New("invalid CAN identifier")
)

// Address is device address and function decoded from extended CAN ID.
//
// Bit layout of CAN ID:
// * bits 24-31 device class
// * bits 16-23 device model
// * bits 8-15 device number
// * bits 0-7 function code
type Address struct {
	Class    uint8    `json:"class"`
	Model    uint8    `json:"model"`
	Number   uint8    `json:"number"`
	Function Function `json:"function"`
}

// Device returns model+number pair without class and function
func (a Address) Device() Device {
	return Device{Model: a.Model, Number: a.Number}
}

// Uint32 packs address back to CAN ID
func (a Address) Uint32() uint32 {
	return EncodeCANID(a.Class, a.Model, a.Number, uint8(a.Function))
}

func (a Address) String() string {
	return fmt.Sprintf("class=%#02x model=%d number=%d func=%v", a.Class, a.Model, a.Number, a.Function)
}

// EncodeCANID packs address fields to CAN ID.
func EncodeCANID(class uint8, model uint8, number uint8, function uint8) uint32 {
	canID := uint32(function)    // bits 0-7
	canID |= uint32(number) << 8 // bits 8-15
	canID |= uint32(model) << 16 // bits 16-23
	canID |= uint32(class) << 24 // bits 24-31
	return canID
}

// ParseCANID parses address fields from CAN ID. Only extended frame identifiers (larger than 0x7FF) of IMU class are
// accepted, everything else results ErrInvalidIdentifier.
func ParseCANID(canID uint32) (Address, error) {
	if canID <= maxStandardID { // 0x7FF itself is still standard frame
		return Address{}, fmt.Errorf("%w: %#x is standard frame identifier", ErrInvalidIdentifier, canID)
	}
	class := uint8(canID >> 24) // bits 24-31
	if class != ClassIMU {
		return Address{}, fmt.Errorf("%w: class %#02x is not IMU class", ErrInvalidIdentifier, class)
	}
	return Address{
		Class:    class,
		Model:    uint8(canID >> 16), // bits 16-23
		Number:   uint8(canID >> 8),  // bits 8-15
		Function: Function(canID),    // bits 0-7
	}, nil
}
