package dissect

import (
	"errors"
	"testing"
)

func testPlayerState() PlayerState {
	ps := PlayerState{
		CommandTime:     12000,
		PMType:          2,
		Origin:          Vec3i{800, -640, 128},
		Velocity:        Vec3i{40, 0, -8},
		WeaponTime:      -200,
		Gravity:         800,
		Speed:           250,
		DeltaAngles:     Vec3i{100, 4000, 0},
		GroundEntityNum: EntityNumNone,
		LegsAnim:        17,
		TorsoAnim:       21,
		MovementDir:     3,
		EventSequence:   9,
		Events:          4,
		EventParms:      1,
		ClientNum:       5,
		Weapon:          8,
		ViewAngles:      Vec3i{0, 1 << 20, 0},
	}
	ps.Stats[0] = 100
	ps.Stats[3] = -10
	ps.Ammo[8] = 60
	ps.Powerups[1] = 30000
	return ps
}

func TestPlayerDeltaRoundTrip(t *testing.T) {
	var from PlayerState
	to := testPlayerState()

	m := NewMsg(MaxMsgLen)
	if err := WritePlayerDelta(m, &from, &to); err != nil {
		t.Fatalf("WritePlayerDelta: %v", err)
	}
	got, err := ReadPlayerDelta(m, &from, ParseOptions{})
	if err != nil {
		t.Fatalf("ReadPlayerDelta: %v", err)
	}
	if !got.Equal(&to) {
		t.Fatalf("player delta round trip mismatch:\n got %+v\nwant %+v", got, to)
	}
}

func TestPlayerDeltaAgainstNonZeroBaseline(t *testing.T) {
	from := testPlayerState()
	to := from
	to.Origin[2] += 64
	to.Weapon = 2
	to.Stats[0] = 55

	m := NewMsg(MaxMsgLen)
	if err := WritePlayerDelta(m, &from, &to); err != nil {
		t.Fatalf("WritePlayerDelta: %v", err)
	}
	got, err := ReadPlayerDelta(m, &from, ParseOptions{})
	if err != nil {
		t.Fatalf("ReadPlayerDelta: %v", err)
	}
	if !got.Equal(&to) {
		t.Fatal("delta against non-zero baseline mismatch")
	}
}

func TestPlayerDeltaUnchangedIsOneBitPerField(t *testing.T) {
	from := testPlayerState()
	m := NewMsg(MaxMsgLen)
	if err := WritePlayerDelta(m, &from, &from); err != nil {
		t.Fatalf("WritePlayerDelta: %v", err)
	}
	// one changed bit per scalar field, one array-block bit, one
	// extension bit
	wantBits := len(playerFields) + 2
	if m.writeBit != wantBits {
		t.Fatalf("no-change delta used %d bits, want %d", m.writeBit, wantBits)
	}
}

func TestPlayerDeltaExtensions(t *testing.T) {
	var from PlayerState
	to := testPlayerState()
	to.Extra = map[string]int32{"forcePower": 50, "saberHolstered": 1}

	m := NewMsg(MaxMsgLen)
	if err := WritePlayerDelta(m, &from, &to); err != nil {
		t.Fatalf("WritePlayerDelta: %v", err)
	}
	got, err := ReadPlayerDelta(m, &from, ParseOptions{})
	if err != nil {
		t.Fatalf("ReadPlayerDelta: %v", err)
	}
	if !got.Equal(&to) {
		t.Fatal("extension fields did not round trip")
	}

	m.readBit = 0
	if _, err := ReadPlayerDelta(m, &from, ParseOptions{Strict: true}); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("strict mode error = %v, want ErrInvalidField", err)
	}
}

func testEntity(num int32) EntityState {
	return EntityState{
		Number: num,
		EType:  4,
		EFlags: 0x20,
		Pos: Trajectory{
			Type:     TrLinear,
			Time:     4000,
			Duration: 0,
			Base:     Vec3i{800, 0, 0},
			Delta:    Vec3i{80, 0, 0},
		},
		APos:            Trajectory{Type: TrStationary, Base: Vec3i{0, 1 << 18, 0}},
		Origin:          Vec3i{800, 0, 0},
		OtherEntityNum:  EntityNumNone,
		GroundEntityNum: EntityNumNone,
		ModelIndex:      12,
		ClientNum:       3,
		Event:           5,
		Weapon:          6,
	}
}

func TestEntityDeltaRoundTrip(t *testing.T) {
	var zero EntityState
	to := testEntity(5)

	m := NewMsg(MaxMsgLen)
	if err := WriteEntityDelta(m, &zero, &to); err != nil {
		t.Fatalf("WriteEntityDelta: %v", err)
	}
	got, err := ReadEntityDelta(m, &zero, ParseOptions{})
	if err != nil {
		t.Fatalf("ReadEntityDelta: %v", err)
	}
	got.Number = to.Number // number rides the framing, not the table
	if !got.Equal(&to) {
		t.Fatalf("entity delta round trip mismatch:\n got %+v\nwant %+v", got, to)
	}
}

func TestEntityListRoundTrip(t *testing.T) {
	from := map[int32]EntityState{
		1: testEntity(1),
		5: testEntity(5),
		7: testEntity(7),
	}

	changed := testEntity(1)
	changed.Origin[2] += 64
	to := map[int32]EntityState{
		1: changed,       // changed
		7: from[7],       // carried forward
		9: testEntity(9), // added with no baseline
	}
	// 5 removed

	baseline := func(num int32) *EntityState { return nil }

	m := NewMsg(MaxMsgLen)
	if err := WriteEntityList(m, from, to, baseline); err != nil {
		t.Fatalf("WriteEntityList: %v", err)
	}
	got, err := ReadEntityList(m, from, baseline, ParseOptions{})
	if err != nil {
		t.Fatalf("ReadEntityList: %v", err)
	}
	if len(got) != len(to) {
		t.Fatalf("entity count = %d, want %d", len(got), len(to))
	}
	for num, want := range to {
		g, ok := got[num]
		if !ok {
			t.Fatalf("entity %d missing after round trip", num)
		}
		if !g.Equal(&want) {
			t.Fatalf("entity %d mismatch:\n got %+v\nwant %+v", num, g, want)
		}
	}
	if _, ok := got[5]; ok {
		t.Fatal("removed entity 5 still present")
	}
}

func TestEntityListUsesGamestateBaseline(t *testing.T) {
	base := testEntity(20)
	baseline := func(num int32) *EntityState {
		if num == 20 {
			b := base
			return &b
		}
		return nil
	}

	to := base
	to.Origin[0] += 8
	m := NewMsg(MaxMsgLen)
	if err := WriteEntityList(m, nil, map[int32]EntityState{20: to}, baseline); err != nil {
		t.Fatalf("WriteEntityList: %v", err)
	}
	got, err := ReadEntityList(m, nil, baseline, ParseOptions{})
	if err != nil {
		t.Fatalf("ReadEntityList: %v", err)
	}
	g := got[20]
	if !g.Equal(&to) {
		t.Fatal("baseline-backed entity mismatch")
	}
}

func TestFloatCodedForms(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 4095, -4096, 4096, -4097, 100000, -250000} {
		m := NewMsg(64)
		if err := writeFloatCoded(m, v); err != nil {
			t.Fatalf("writeFloatCoded(%d): %v", v, err)
		}
		got, err := readFloatCoded(m)
		if err != nil {
			t.Fatalf("readFloatCoded(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("float-coded %d came back %d", v, got)
		}
		short := v >= -floatIntBias && v < floatIntBias
		wantBits := 1 + 32
		if short {
			wantBits = 1 + floatIntBits
		}
		if m.writeBit != wantBits {
			t.Fatalf("value %d used %d bits, want %d", v, m.writeBit, wantBits)
		}
	}
}

func TestUserCmdDeltaRoundTrip(t *testing.T) {
	base := UserCommand{ServerTime: 1000, Weapon: 1}
	cmd := UserCommand{
		ServerTime: 1050,
		Angles:     [3]int16{100, -3000, 0},
		Forward:    127,
		Right:      -127,
		Up:         15,
		Buttons:    uint32(ButtonAttack | ButtonAltAttack),
		Weapon:     4,
	}

	for _, key := range []byte{0, 0x5A} {
		m := NewMsg(1024)
		if err := WriteUserCmdDelta(m, base, cmd, key); err != nil {
			t.Fatalf("key %#x: WriteUserCmdDelta: %v", key, err)
		}
		got, err := ReadUserCmdDelta(m, base, key)
		if err != nil {
			t.Fatalf("key %#x: ReadUserCmdDelta: %v", key, err)
		}
		if got != cmd {
			t.Fatalf("key %#x: round trip mismatch: %+v", key, got)
		}
	}
}

func TestUserCmdDeltaWrongKeyScrambles(t *testing.T) {
	base := UserCommand{}
	cmd := UserCommand{ServerTime: 123456}
	m := NewMsg(1024)
	if err := WriteUserCmdDelta(m, base, cmd, 0x33); err != nil {
		t.Fatalf("WriteUserCmdDelta: %v", err)
	}
	got, err := ReadUserCmdDelta(m, base, 0)
	if err != nil {
		t.Fatalf("ReadUserCmdDelta: %v", err)
	}
	if got.ServerTime == cmd.ServerTime {
		t.Fatal("decoding with the wrong key should scramble the payload")
	}
}

// Shuffling the declared field order must break decoding: the tables are
// part of the wire contract.
func TestFieldOrderIsWireContract(t *testing.T) {
	var from PlayerState
	to := testPlayerState()
	m := NewMsg(MaxMsgLen)
	if err := WritePlayerDelta(m, &from, &to); err != nil {
		t.Fatalf("WritePlayerDelta: %v", err)
	}

	// commandTime (32-bit) and pm_type (8-bit) trade places
	playerFields[0], playerFields[1] = playerFields[1], playerFields[0]
	defer func() {
		playerFields[0], playerFields[1] = playerFields[1], playerFields[0]
	}()

	got, err := ReadPlayerDelta(m, &from, ParseOptions{})
	if err == nil && got.Equal(&to) {
		t.Fatal("decode succeeded against a shuffled field table")
	}
}
