package imucan

import "fmt"

// State is current snapshot of IMU telemetry. Field groups are refreshed independently by whichever report arrives,
// so there is no guarantee that angle, rate, acceleration and quaternion are from the same instant. Quaternion halves
// are also refreshed separately.
type State struct {
	// Angle is roll, pitch, yaw in degrees
	Angle [3]float64 `json:"angle"`
	// AngleRate is angular rate around x, y, z in deg/s
	AngleRate [3]float64 `json:"angle_rate"`
	// Accel is linear acceleration along x, y, z in m/s²
	Accel [3]float64 `json:"accel"`
	// Quaternion is w, x, y, z
	Quaternion [4]float64 `json:"quaternion"`
}

// Apply updates state with decoded report. Last write wins per field group. UnknownReport does not change state.
func (s *State) Apply(report Report) {
	switch r := report.(type) {
	case AngleReport:
		s.Angle = [3]float64{r.Roll, r.Pitch, r.Yaw}
	case AngleRateReport:
		s.AngleRate = [3]float64{r.X, r.Y, r.Z}
	case AccelReport:
		s.Accel = [3]float64{r.X, r.Y, r.Z}
	case QuaternionReport:
		if r.Half == QuaternionFirst {
			s.Quaternion[0] = r.A
			s.Quaternion[1] = r.B
		} else {
			s.Quaternion[2] = r.A
			s.Quaternion[3] = r.B
		}
	case UnknownReport:
	case nil:
	}
}

func (s State) String() string {
	return fmt.Sprintf(
		"Angle: %v, Angle Speed: %v, Angle Acc: %v, Quaternion: %v",
		s.Angle, s.AngleRate, s.Accel, s.Quaternion,
	)
}
