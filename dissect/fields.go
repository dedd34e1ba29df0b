package dissect

// The delta tables below are the DM_26 wire contract: entry order, bit
// widths and divisors must never change. Compound vector fields are
// expanded into one entry per component, named name[0..2] on the wire.

type fieldKind uint8

const (
	fieldInt fieldKind = iota
	fieldFloat
	fieldAngle
	fieldEntity
	fieldOrigin
	fieldVector
	fieldTime
)

// isFloatCoded reports whether the field payload uses the one-bit
// integer-or-float form of the delta codec.
func (k fieldKind) isFloatCoded() bool {
	return k == fieldFloat || k == fieldOrigin || k == fieldVector
}

// signed reports whether raw bit payloads sign-extend.
func (k fieldKind) signed() bool {
	return k == fieldInt || k == fieldTime
}

type playerField struct {
	name    string
	kind    fieldKind
	bits    int
	divisor int
	get     func(*PlayerState) int32
	set     func(*PlayerState, int32)
}

type entityField struct {
	name    string
	kind    fieldKind
	bits    int
	divisor int
	get     func(*EntityState) int32
	set     func(*EntityState, int32)
}

var playerFields = []playerField{
	{"commandTime", fieldTime, 32, 1,
		func(p *PlayerState) int32 { return p.CommandTime },
		func(p *PlayerState, v int32) { p.CommandTime = v }},
	{"pm_type", fieldInt, 8, 1,
		func(p *PlayerState) int32 { return p.PMType },
		func(p *PlayerState, v int32) { p.PMType = v }},
	{"origin[0]", fieldOrigin, 24, CoordScale,
		func(p *PlayerState) int32 { return p.Origin[0] },
		func(p *PlayerState, v int32) { p.Origin[0] = v }},
	{"origin[1]", fieldOrigin, 24, CoordScale,
		func(p *PlayerState) int32 { return p.Origin[1] },
		func(p *PlayerState, v int32) { p.Origin[1] = v }},
	{"origin[2]", fieldOrigin, 24, CoordScale,
		func(p *PlayerState) int32 { return p.Origin[2] },
		func(p *PlayerState, v int32) { p.Origin[2] = v }},
	{"velocity[0]", fieldVector, 24, CoordScale,
		func(p *PlayerState) int32 { return p.Velocity[0] },
		func(p *PlayerState, v int32) { p.Velocity[0] = v }},
	{"velocity[1]", fieldVector, 24, CoordScale,
		func(p *PlayerState) int32 { return p.Velocity[1] },
		func(p *PlayerState, v int32) { p.Velocity[1] = v }},
	{"velocity[2]", fieldVector, 24, CoordScale,
		func(p *PlayerState) int32 { return p.Velocity[2] },
		func(p *PlayerState, v int32) { p.Velocity[2] = v }},
	{"weaponTime", fieldInt, 16, 1,
		func(p *PlayerState) int32 { return p.WeaponTime },
		func(p *PlayerState, v int32) { p.WeaponTime = v }},
	{"gravity", fieldInt, 16, 1,
		func(p *PlayerState) int32 { return p.Gravity },
		func(p *PlayerState, v int32) { p.Gravity = v }},
	{"speed", fieldInt, 16, 1,
		func(p *PlayerState) int32 { return p.Speed },
		func(p *PlayerState, v int32) { p.Speed = v }},
	{"delta_angles[0]", fieldAngle, 24, 360,
		func(p *PlayerState) int32 { return p.DeltaAngles[0] },
		func(p *PlayerState, v int32) { p.DeltaAngles[0] = v }},
	{"delta_angles[1]", fieldAngle, 24, 360,
		func(p *PlayerState) int32 { return p.DeltaAngles[1] },
		func(p *PlayerState, v int32) { p.DeltaAngles[1] = v }},
	{"delta_angles[2]", fieldAngle, 24, 360,
		func(p *PlayerState) int32 { return p.DeltaAngles[2] },
		func(p *PlayerState, v int32) { p.DeltaAngles[2] = v }},
	{"groundEntityNum", fieldEntity, GEntityNumBits, 1,
		func(p *PlayerState) int32 { return p.GroundEntityNum },
		func(p *PlayerState, v int32) { p.GroundEntityNum = v }},
	{"legsAnim", fieldInt, 10, 1,
		func(p *PlayerState) int32 { return p.LegsAnim },
		func(p *PlayerState, v int32) { p.LegsAnim = v }},
	{"torsoAnim", fieldInt, 10, 1,
		func(p *PlayerState) int32 { return p.TorsoAnim },
		func(p *PlayerState, v int32) { p.TorsoAnim = v }},
	{"movementDir", fieldInt, 8, 1,
		func(p *PlayerState) int32 { return p.MovementDir },
		func(p *PlayerState, v int32) { p.MovementDir = v }},
	{"eventSequence", fieldInt, 16, 1,
		func(p *PlayerState) int32 { return p.EventSequence },
		func(p *PlayerState, v int32) { p.EventSequence = v }},
	{"events", fieldInt, 16, 1,
		func(p *PlayerState) int32 { return p.Events },
		func(p *PlayerState, v int32) { p.Events = v }},
	{"eventParms", fieldInt, 16, 1,
		func(p *PlayerState) int32 { return p.EventParms },
		func(p *PlayerState, v int32) { p.EventParms = v }},
	{"externalEvent", fieldInt, 16, 1,
		func(p *PlayerState) int32 { return p.ExternalEvent },
		func(p *PlayerState, v int32) { p.ExternalEvent = v }},
	{"externalEventParm", fieldInt, 16, 1,
		func(p *PlayerState) int32 { return p.ExternalEventParm },
		func(p *PlayerState, v int32) { p.ExternalEventParm = v }},
	{"clientNum", fieldInt, 8, 1,
		func(p *PlayerState) int32 { return p.ClientNum },
		func(p *PlayerState, v int32) { p.ClientNum = v }},
	{"weapon", fieldInt, 8, 1,
		func(p *PlayerState) int32 { return p.Weapon },
		func(p *PlayerState, v int32) { p.Weapon = v }},
	{"viewangles[0]", fieldAngle, 24, 360,
		func(p *PlayerState) int32 { return p.ViewAngles[0] },
		func(p *PlayerState, v int32) { p.ViewAngles[0] = v }},
	{"viewangles[1]", fieldAngle, 24, 360,
		func(p *PlayerState) int32 { return p.ViewAngles[1] },
		func(p *PlayerState, v int32) { p.ViewAngles[1] = v }},
	{"viewangles[2]", fieldAngle, 24, 360,
		func(p *PlayerState) int32 { return p.ViewAngles[2] },
		func(p *PlayerState, v int32) { p.ViewAngles[2] = v }},
}

var entityFields = []entityField{
	{"pos.trTime", fieldTime, 32, 1,
		func(e *EntityState) int32 { return e.Pos.Time },
		func(e *EntityState, v int32) { e.Pos.Time = v }},
	{"pos.trType", fieldInt, 8, 1,
		func(e *EntityState) int32 { return int32(e.Pos.Type) },
		func(e *EntityState, v int32) { e.Pos.Type = TrajectoryType(v) }},
	{"pos.trDuration", fieldInt, 32, 1,
		func(e *EntityState) int32 { return e.Pos.Duration },
		func(e *EntityState, v int32) { e.Pos.Duration = v }},
	{"pos.trBase[0]", fieldOrigin, 24, CoordScale,
		func(e *EntityState) int32 { return e.Pos.Base[0] },
		func(e *EntityState, v int32) { e.Pos.Base[0] = v }},
	{"pos.trBase[1]", fieldOrigin, 24, CoordScale,
		func(e *EntityState) int32 { return e.Pos.Base[1] },
		func(e *EntityState, v int32) { e.Pos.Base[1] = v }},
	{"pos.trBase[2]", fieldOrigin, 24, CoordScale,
		func(e *EntityState) int32 { return e.Pos.Base[2] },
		func(e *EntityState, v int32) { e.Pos.Base[2] = v }},
	{"pos.trDelta[0]", fieldVector, 24, CoordScale,
		func(e *EntityState) int32 { return e.Pos.Delta[0] },
		func(e *EntityState, v int32) { e.Pos.Delta[0] = v }},
	{"pos.trDelta[1]", fieldVector, 24, CoordScale,
		func(e *EntityState) int32 { return e.Pos.Delta[1] },
		func(e *EntityState, v int32) { e.Pos.Delta[1] = v }},
	{"pos.trDelta[2]", fieldVector, 24, CoordScale,
		func(e *EntityState) int32 { return e.Pos.Delta[2] },
		func(e *EntityState, v int32) { e.Pos.Delta[2] = v }},
	{"apos.trTime", fieldTime, 32, 1,
		func(e *EntityState) int32 { return e.APos.Time },
		func(e *EntityState, v int32) { e.APos.Time = v }},
	{"apos.trType", fieldInt, 8, 1,
		func(e *EntityState) int32 { return int32(e.APos.Type) },
		func(e *EntityState, v int32) { e.APos.Type = TrajectoryType(v) }},
	{"apos.trDuration", fieldInt, 32, 1,
		func(e *EntityState) int32 { return e.APos.Duration },
		func(e *EntityState, v int32) { e.APos.Duration = v }},
	{"apos.trBase[0]", fieldAngle, 24, 360,
		func(e *EntityState) int32 { return e.APos.Base[0] },
		func(e *EntityState, v int32) { e.APos.Base[0] = v }},
	{"apos.trBase[1]", fieldAngle, 24, 360,
		func(e *EntityState) int32 { return e.APos.Base[1] },
		func(e *EntityState, v int32) { e.APos.Base[1] = v }},
	{"apos.trBase[2]", fieldAngle, 24, 360,
		func(e *EntityState) int32 { return e.APos.Base[2] },
		func(e *EntityState, v int32) { e.APos.Base[2] = v }},
	{"apos.trDelta[0]", fieldVector, 24, CoordScale,
		func(e *EntityState) int32 { return e.APos.Delta[0] },
		func(e *EntityState, v int32) { e.APos.Delta[0] = v }},
	{"apos.trDelta[1]", fieldVector, 24, CoordScale,
		func(e *EntityState) int32 { return e.APos.Delta[1] },
		func(e *EntityState, v int32) { e.APos.Delta[1] = v }},
	{"apos.trDelta[2]", fieldVector, 24, CoordScale,
		func(e *EntityState) int32 { return e.APos.Delta[2] },
		func(e *EntityState, v int32) { e.APos.Delta[2] = v }},
	{"time", fieldTime, 32, 1,
		func(e *EntityState) int32 { return e.Time },
		func(e *EntityState, v int32) { e.Time = v }},
	{"time2", fieldTime, 32, 1,
		func(e *EntityState) int32 { return e.Time2 },
		func(e *EntityState, v int32) { e.Time2 = v }},
	{"origin[0]", fieldOrigin, 24, CoordScale,
		func(e *EntityState) int32 { return e.Origin[0] },
		func(e *EntityState, v int32) { e.Origin[0] = v }},
	{"origin[1]", fieldOrigin, 24, CoordScale,
		func(e *EntityState) int32 { return e.Origin[1] },
		func(e *EntityState, v int32) { e.Origin[1] = v }},
	{"origin[2]", fieldOrigin, 24, CoordScale,
		func(e *EntityState) int32 { return e.Origin[2] },
		func(e *EntityState, v int32) { e.Origin[2] = v }},
	{"origin2[0]", fieldOrigin, 24, CoordScale,
		func(e *EntityState) int32 { return e.Origin2[0] },
		func(e *EntityState, v int32) { e.Origin2[0] = v }},
	{"origin2[1]", fieldOrigin, 24, CoordScale,
		func(e *EntityState) int32 { return e.Origin2[1] },
		func(e *EntityState, v int32) { e.Origin2[1] = v }},
	{"origin2[2]", fieldOrigin, 24, CoordScale,
		func(e *EntityState) int32 { return e.Origin2[2] },
		func(e *EntityState, v int32) { e.Origin2[2] = v }},
	{"angles[0]", fieldAngle, 24, 360,
		func(e *EntityState) int32 { return e.Angles[0] },
		func(e *EntityState, v int32) { e.Angles[0] = v }},
	{"angles[1]", fieldAngle, 24, 360,
		func(e *EntityState) int32 { return e.Angles[1] },
		func(e *EntityState, v int32) { e.Angles[1] = v }},
	{"angles[2]", fieldAngle, 24, 360,
		func(e *EntityState) int32 { return e.Angles[2] },
		func(e *EntityState, v int32) { e.Angles[2] = v }},
	{"angles2[0]", fieldAngle, 24, 360,
		func(e *EntityState) int32 { return e.Angles2[0] },
		func(e *EntityState, v int32) { e.Angles2[0] = v }},
	{"angles2[1]", fieldAngle, 24, 360,
		func(e *EntityState) int32 { return e.Angles2[1] },
		func(e *EntityState, v int32) { e.Angles2[1] = v }},
	{"angles2[2]", fieldAngle, 24, 360,
		func(e *EntityState) int32 { return e.Angles2[2] },
		func(e *EntityState, v int32) { e.Angles2[2] = v }},
	{"eType", fieldInt, 8, 1,
		func(e *EntityState) int32 { return e.EType },
		func(e *EntityState, v int32) { e.EType = v }},
	{"eFlags", fieldInt, 32, 1,
		func(e *EntityState) int32 { return e.EFlags },
		func(e *EntityState, v int32) { e.EFlags = v }},
	{"event", fieldInt, 10, 1,
		func(e *EntityState) int32 { return e.Event },
		func(e *EntityState, v int32) { e.Event = v }},
	{"eventParm", fieldInt, 8, 1,
		func(e *EntityState) int32 { return e.EventParm },
		func(e *EntityState, v int32) { e.EventParm = v }},
	{"otherEntityNum", fieldEntity, GEntityNumBits, 1,
		func(e *EntityState) int32 { return e.OtherEntityNum },
		func(e *EntityState, v int32) { e.OtherEntityNum = v }},
	{"otherEntityNum2", fieldEntity, GEntityNumBits, 1,
		func(e *EntityState) int32 { return e.OtherEntityNum2 },
		func(e *EntityState, v int32) { e.OtherEntityNum2 = v }},
	{"groundEntityNum", fieldEntity, GEntityNumBits, 1,
		func(e *EntityState) int32 { return e.GroundEntityNum },
		func(e *EntityState, v int32) { e.GroundEntityNum = v }},
	{"loopSound", fieldInt, 8, 1,
		func(e *EntityState) int32 { return e.LoopSound },
		func(e *EntityState, v int32) { e.LoopSound = v }},
	{"constantLight", fieldInt, 32, 1,
		func(e *EntityState) int32 { return e.ConstantLight },
		func(e *EntityState, v int32) { e.ConstantLight = v }},
	{"modelindex", fieldInt, 8, 1,
		func(e *EntityState) int32 { return e.ModelIndex },
		func(e *EntityState, v int32) { e.ModelIndex = v }},
	{"modelindex2", fieldInt, 8, 1,
		func(e *EntityState) int32 { return e.ModelIndex2 },
		func(e *EntityState, v int32) { e.ModelIndex2 = v }},
	{"clientNum", fieldInt, 8, 1,
		func(e *EntityState) int32 { return e.ClientNum },
		func(e *EntityState, v int32) { e.ClientNum = v }},
	{"frame", fieldInt, 16, 1,
		func(e *EntityState) int32 { return e.Frame },
		func(e *EntityState, v int32) { e.Frame = v }},
	{"solid", fieldInt, 24, 1,
		func(e *EntityState) int32 { return e.Solid },
		func(e *EntityState, v int32) { e.Solid = v }},
	{"powerups", fieldInt, 16, 1,
		func(e *EntityState) int32 { return e.Powerups },
		func(e *EntityState, v int32) { e.Powerups = v }},
	{"weapon", fieldInt, 8, 1,
		func(e *EntityState) int32 { return e.Weapon },
		func(e *EntityState, v int32) { e.Weapon = v }},
	{"legsAnim", fieldInt, 10, 1,
		func(e *EntityState) int32 { return e.LegsAnim },
		func(e *EntityState, v int32) { e.LegsAnim = v }},
	{"torsoAnim", fieldInt, 10, 1,
		func(e *EntityState) int32 { return e.TorsoAnim },
		func(e *EntityState, v int32) { e.TorsoAnim = v }},
	{"generic1", fieldInt, 8, 1,
		func(e *EntityState) int32 { return e.Generic1 },
		func(e *EntityState, v int32) { e.Generic1 = v }},
}

// userCmdFieldCount is the width of the user-command change mask; field
// order is serverTime, angles[0..2], forwardmove, rightmove, upmove,
// buttons, weapon.
const userCmdFieldCount = 9
