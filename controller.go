package imucan

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	enableFlag  = 0x01
	disableFlag = 0x00

	// minReportPeriod and maxReportPeriod limit report period that fits into single byte (milliseconds)
	minReportPeriod = 10 * time.Millisecond
	maxReportPeriod = 255 * time.Millisecond
)

// ErrInvalidFunction is returned when report period is being set with function that is not *Set function
var ErrInvalidFunction = errors.New("function is not report period setting function")

// Device identifies single IMU on the bus
type Device struct {
	Model  uint8 `json:"model"`
	Number uint8 `json:"number"`
}

func (d Device) String() string {
	return fmt.Sprintf("model=%d number=%d", d.Model, d.Number)
}

// CANID returns CAN ID for given function sent to/from this device
func (d Device) CANID(function Function) uint32 {
	return EncodeCANID(ClassIMU, d.Model, d.Number, uint8(function))
}

// DeviceSelector is configured target device. When Model or Number is unset (nil) device is captured from the bus
// by first valid IMU frame.
type DeviceSelector struct {
	Model  *uint8
	Number *uint8
}

// SelectDevice creates selector with fixed model and number
func SelectDevice(model uint8, number uint8) DeviceSelector {
	return DeviceSelector{Model: &model, Number: &number}
}

// Resolve returns selected device when both model and number are set
func (s DeviceSelector) Resolve() (Device, bool) {
	if s.Model == nil || s.Number == nil {
		return Device{}, false
	}
	return Device{Model: *s.Model, Number: *s.Number}, true
}

func generalSettingFrame(device Device, flag uint8) RawFrame {
	f := RawFrame{
		ID:     device.CANID(FunctionGeneralSetting),
		Length: 4,
	}
	f.Data[0] = ClassIMU
	f.Data[1] = device.Model
	f.Data[2] = device.Number
	f.Data[3] = flag
	return f
}

// EnableFrame creates GENERAL_SETTING frame that enables device. Device does not send reports before it is enabled.
func EnableFrame(device Device) RawFrame {
	return generalSettingFrame(device, enableFlag)
}

// DisableFrame creates GENERAL_SETTING frame that disables device.
func DisableFrame(device Device) RawFrame {
	return generalSettingFrame(device, disableFlag)
}

// ReportPeriodFrame creates frame that sets how often device sends report. Function must be one of `*Set` functions
// (FunctionAngleSet etc). Period 0 turns report off, other periods are clamped to 10-255ms.
func ReportPeriodFrame(device Device, function Function, period time.Duration) (RawFrame, error) {
	if !function.IsSetter() {
		return RawFrame{}, fmt.Errorf("%w: %v", ErrInvalidFunction, function)
	}
	var value uint8
	switch {
	case period <= 0:
		value = 0
	case period > maxReportPeriod:
		value = uint8(maxReportPeriod / time.Millisecond)
	case period < minReportPeriod:
		value = uint8(minReportPeriod / time.Millisecond)
	default:
		value = uint8(period / time.Millisecond)
	}
	f := RawFrame{
		ID:     device.CANID(function),
		Length: 1,
	}
	f.Data[0] = value
	return f, nil
}

// Controller sends control frames to devices
type Controller struct {
	writer FrameWriter
}

// NewController creates new instance of Controller writing to given bus
func NewController(writer FrameWriter) *Controller {
	return &Controller{writer: writer}
}

// Enable sends enable frame to device
func (c *Controller) Enable(ctx context.Context, device Device) error {
	return c.write(ctx, EnableFrame(device))
}

// Disable sends disable frame to device
func (c *Controller) Disable(ctx context.Context, device Device) error {
	return c.write(ctx, DisableFrame(device))
}

// SetReportPeriod sends report period frame to device
func (c *Controller) SetReportPeriod(ctx context.Context, device Device, function Function, period time.Duration) error {
	f, err := ReportPeriodFrame(device, function, period)
	if err != nil {
		return err
	}
	return c.write(ctx, f)
}

func (c *Controller) write(ctx context.Context, frame RawFrame) error {
	if err := c.writer.WriteRawFrame(ctx, frame); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}
