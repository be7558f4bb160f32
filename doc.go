// Package imucan decodes IMU telemetry sent over CAN bus with extended (29 bit) identifiers.
//
// CAN ID carries device address and function code:
//
//	bits 24-31 class (0x0B for IMU)
//	bits 16-23 model
//	bits 8-15  number
//	bits 0-7   function
//
// Report payloads are little-endian. Angle, angular rate and acceleration are sent as 3 signed 16 bit integers
// scaled by 100. Quaternion does not fit into 8 bytes and is sent as 2 frames of 2 float32 values each.
//
// Transports (socketcan, slcan, candump) implement FrameReader/FrameWriter, Stream turns frames into State and
// Controller sends enable/disable and report period frames to device.
package imucan
