package dissect

import "math"

// DefaultGravity is the engine default, in world units per second squared.
const DefaultGravity = 800.0

// TrajectoryType selects the closed-form motion primitive.
type TrajectoryType int32

const (
	TrStationary TrajectoryType = iota
	TrInterpolate
	TrLinear
	TrLinearStop
	TrNonLinearStop
	TrSine
	TrGravity
)

func (t TrajectoryType) String() string {
	switch t {
	case TrStationary:
		return "stationary"
	case TrInterpolate:
		return "interpolate"
	case TrLinear:
		return "linear"
	case TrLinearStop:
		return "linear_stop"
	case TrNonLinearStop:
		return "nonlinear_stop"
	case TrSine:
		return "sine"
	case TrGravity:
		return "gravity"
	}
	return "unknown"
}

// Trajectory is a parametric motion primitive. Base and Delta are held in
// the network-quantized form they arrive in; evaluation converts through
// CoordScale. Time and Duration are milliseconds; Duration 0 means no end.
type Trajectory struct {
	Type     TrajectoryType `json:"trType"`
	Time     int32          `json:"trTime"`
	Duration int32          `json:"trDuration"`
	Base     Vec3i          `json:"trBase"`
	Delta    Vec3i          `json:"trDelta"`
}

// phase returns the normalized progress through [Time, Time+Duration],
// clamped to [0, 1].
func (tr *Trajectory) phase(at int32) float32 {
	if tr.Duration <= 0 {
		return 0
	}
	f := float32(at-tr.Time) / float32(tr.Duration)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// PositionAt evaluates the trajectory position at the given time.
func (tr *Trajectory) PositionAt(at int32, gravity float32) Vec3 {
	base := tr.Base.World()
	delta := tr.Delta.World()
	dt := float32(at-tr.Time) / 1000.0

	switch tr.Type {
	case TrInterpolate:
		return base.Add(delta.Sub(base).Scale(tr.phase(at)))
	case TrLinear:
		return base.Add(delta.Scale(dt))
	case TrLinearStop:
		if tr.Duration > 0 && at > tr.Time+tr.Duration {
			return base.Add(delta.Scale(float32(tr.Duration) / 1000.0))
		}
		return base.Add(delta.Scale(dt))
	case TrNonLinearStop:
		if tr.Duration > 0 && at > tr.Time+tr.Duration {
			return base.Add(delta.Scale(float32(tr.Duration) / 1000.0))
		}
		frac := tr.phase(at)
		eased := 1 - (1-frac)*(1-frac)
		return base.Add(delta.Scale(float32(tr.Duration) / 1000.0 * eased))
	case TrSine:
		if tr.Duration <= 0 {
			return base
		}
		phase := math.Sin(float64(dt) / (float64(tr.Duration) / 1000.0) * 2 * math.Pi)
		return base.Add(delta.Scale(float32(phase)))
	case TrGravity:
		p := base.Add(delta.Scale(dt))
		p[2] -= 0.5 * gravity * dt * dt
		return p
	}
	return base
}

// VelocityAt evaluates the analytic derivative of PositionAt.
func (tr *Trajectory) VelocityAt(at int32, gravity float32) Vec3 {
	base := tr.Base.World()
	delta := tr.Delta.World()
	dt := float32(at-tr.Time) / 1000.0

	switch tr.Type {
	case TrInterpolate:
		if tr.Duration <= 0 {
			return Vec3{}
		}
		return delta.Sub(base).Scale(1000.0 / float32(tr.Duration))
	case TrLinear:
		return delta
	case TrLinearStop:
		if tr.Duration > 0 && at > tr.Time+tr.Duration {
			return Vec3{}
		}
		return delta
	case TrNonLinearStop:
		if tr.Duration <= 0 {
			return delta
		}
		if at > tr.Time+tr.Duration {
			return Vec3{}
		}
		frac := tr.phase(at)
		return delta.Scale(2 * (1 - frac))
	case TrSine:
		if tr.Duration <= 0 {
			return Vec3{}
		}
		w := 2 * math.Pi / (float64(tr.Duration) / 1000.0)
		return delta.Scale(float32(w * math.Cos(float64(dt)*w)))
	case TrGravity:
		v := delta
		v[2] -= gravity * dt
		return v
	}
	return Vec3{}
}
