package imucan

import (
	"encoding/json"
	"fmt"
)

// Function is function code - lowest byte of CAN ID. Function selects report or command type.
type Function uint8

// Standard functions that are shared by all device classes. List is not exhaustive, devices may have their own
// functions.
const (
	// FunctionGeneralSetting sets the enable state of the device
	FunctionGeneralSetting = Function(0x03)
	// FunctionClearError clears device error
	FunctionClearError = Function(0x04)
	// FunctionClearKineState clears kinematic state (resets odometry)
	FunctionClearKineState = Function(0x05)
	// FunctionFindDevice finds device, not all devices support this
	FunctionFindDevice = Function(0x07)
	// FunctionHeartbeat is periodic heartbeat sent by device
	FunctionHeartbeat = Function(0xB0)
)

// IMU class (ClassIMU) functions. `*Set` functions are outbound (setting report period) and `*Report` functions are
// inbound telemetry.
const (
	FunctionAngleSet          = Function(0x11)
	FunctionAngleSpeedSet     = Function(0x12)
	FunctionAngleAccSet       = Function(0x13)
	FunctionQuaternionSet     = Function(0x14)
	FunctionAngleReport       = Function(0xB1)
	FunctionAngleSpeedReport  = Function(0xB2)
	FunctionAngleAccReport    = Function(0xB3)
	FunctionQuaternionReport1 = Function(0xB4)
	FunctionQuaternionReport2 = Function(0xB5)
)

var functionNames = map[Function]string{
	FunctionGeneralSetting:    "GENERAL_SETTING",
	FunctionClearError:        "CLEAR_ERROR",
	FunctionClearKineState:    "CLEAR_KINESTATE",
	FunctionFindDevice:        "FIND_DEVICE",
	FunctionHeartbeat:         "HEARTBEAT",
	FunctionAngleSet:          "ANGLE_SET",
	FunctionAngleSpeedSet:     "ANGLE_SPEED_SET",
	FunctionAngleAccSet:       "ANGLE_ACC_SET",
	FunctionQuaternionSet:     "QUATERNION_SET",
	FunctionAngleReport:       "ANGLE_REPORT",
	FunctionAngleSpeedReport:  "ANGLE_SPEED_REPORT",
	FunctionAngleAccReport:    "ANGLE_ACC_REPORT",
	FunctionQuaternionReport1: "QUATERNION_REPORT1",
	FunctionQuaternionReport2: "QUATERNION_REPORT2",
}

func (f Function) String() string {
	if name, ok := functionNames[f]; ok {
		return name
	}
	return fmt.Sprintf("%#02x", uint8(f))
}

// IsSetter returns true for IMU report period setting functions (0x11-0x14)
func (f Function) IsSetter() bool {
	return f >= FunctionAngleSet && f <= FunctionQuaternionSet
}

// MarshalJSON outputs function as its name
func (f Function) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}
