package dissect

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

// ParseOptions tune decoding behavior for one Demo.
type ParseOptions struct {
	// Strict converts mod-extended delta fields into ErrInvalidField
	// instead of storing them in the state's side map.
	Strict bool

	// UserCmdKey derives the user-command obfuscation key from the server
	// time of the enclosing message. The default derivation returns 0,
	// which disables obfuscation.
	UserCmdKey func(serverTime int32) byte
}

func (o ParseOptions) key(serverTime int32) byte {
	if o.UserCmdKey == nil {
		return 0
	}
	return o.UserCmdKey(serverTime)
}

// writeFloatCoded emits a quantized value in the one-bit integer-or-float
// form: a 0 bit and a 13-bit biased integer when the value lies in
// [-4096, 4095], else a 1 bit and the raw IEEE-754 bits.
func writeFloatCoded(m *Msg, v int32) error {
	if v >= -floatIntBias && v < floatIntBias {
		if err := m.WriteBits(0, 1); err != nil {
			return err
		}
		return m.WriteBits(uint32(v+floatIntBias), floatIntBits)
	}
	if err := m.WriteBits(1, 1); err != nil {
		return err
	}
	return m.WriteBits(math.Float32bits(float32(v)), 32)
}

func readFloatCoded(m *Msg) (int32, error) {
	form, err := m.ReadBits(1)
	if err != nil {
		return 0, err
	}
	if form == 0 {
		v, err := m.ReadBits(floatIntBits)
		if err != nil {
			return 0, err
		}
		return int32(v) - floatIntBias, nil
	}
	v, err := m.ReadBits(32)
	if err != nil {
		return 0, err
	}
	return int32(math.Float32frombits(v)), nil
}

func writeFieldPayload(m *Msg, kind fieldKind, bits int, v int32) error {
	switch {
	case kind.isFloatCoded():
		return writeFloatCoded(m, v)
	case kind == fieldEntity:
		if v < 0 || v >= MaxGEntities {
			return fmt.Errorf("%w: entity number %d", ErrProtocolViolation, v)
		}
		return m.WriteBits(uint32(v), GEntityNumBits)
	default:
		return m.WriteBits(uint32(v), bits)
	}
}

func readFieldPayload(m *Msg, kind fieldKind, bits int) (int32, error) {
	switch {
	case kind.isFloatCoded():
		return readFloatCoded(m)
	case kind == fieldEntity:
		v, err := m.ReadBits(GEntityNumBits)
		return int32(v), err
	case kind.signed():
		return m.ReadBitsSigned(bits)
	default:
		v, err := m.ReadBits(bits)
		return int32(v), err
	}
}

// ----- extension fields (mod-extended trailing deltas) -----

func writeExtraFields(m *Msg, extra map[string]int32) error {
	if len(extra) == 0 {
		return m.WriteBits(0, 1)
	}
	if err := m.WriteBits(1, 1); err != nil {
		return err
	}
	ordered := sortedKeys(extra)
	if err := m.WriteByte(byte(len(ordered))); err != nil {
		return err
	}
	for _, name := range ordered {
		if err := m.WriteString(name); err != nil {
			return err
		}
		if err := m.WriteLong(extra[name]); err != nil {
			return err
		}
	}
	return nil
}

func readExtraFields(m *Msg, opts ParseOptions) (map[string]int32, error) {
	present, err := m.ReadBits(1)
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	count, err := m.ReadByte()
	if err != nil {
		return nil, err
	}
	extra := make(map[string]int32, count)
	for i := 0; i < int(count); i++ {
		name, err := m.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := m.ReadLong()
		if err != nil {
			return nil, err
		}
		if opts.Strict {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, name)
		}
		extra[name] = v
	}
	return extra, nil
}

// ----- player state -----

// WritePlayerDelta encodes to against from: for each table entry in
// declared order, one changed bit followed by that field's payload when it
// changed; then the fixed array blocks, then any mod-extension fields.
func WritePlayerDelta(m *Msg, from, to *PlayerState) error {
	for i := range playerFields {
		f := &playerFields[i]
		fv, tv := f.get(from), f.get(to)
		if fv == tv {
			if err := m.WriteBits(0, 1); err != nil {
				return err
			}
			continue
		}
		if err := m.WriteBits(1, 1); err != nil {
			return err
		}
		if err := writeFieldPayload(m, f.kind, f.bits, tv); err != nil {
			return err
		}
	}

	anyArray := from.Stats != to.Stats || from.Persistent != to.Persistent ||
		from.Ammo != to.Ammo || from.Powerups != to.Powerups
	if !anyArray {
		if err := m.WriteBits(0, 1); err != nil {
			return err
		}
	} else {
		if err := m.WriteBits(1, 1); err != nil {
			return err
		}
		if err := writeArrayBlock(m, &from.Stats, &to.Stats, 16); err != nil {
			return err
		}
		if err := writeArrayBlock(m, &from.Persistent, &to.Persistent, 16); err != nil {
			return err
		}
		if err := writeArrayBlock(m, &from.Ammo, &to.Ammo, 16); err != nil {
			return err
		}
		if err := writeArrayBlock(m, &from.Powerups, &to.Powerups, 32); err != nil {
			return err
		}
	}

	return writeExtraFields(m, to.Extra)
}

// ReadPlayerDelta decodes a player-state delta against from.
func ReadPlayerDelta(m *Msg, from *PlayerState, opts ParseOptions) (PlayerState, error) {
	to := *from
	for i := range playerFields {
		f := &playerFields[i]
		changed, err := m.ReadBits(1)
		if err != nil {
			return to, err
		}
		if changed == 0 {
			continue
		}
		v, err := readFieldPayload(m, f.kind, f.bits)
		if err != nil {
			return to, err
		}
		f.set(&to, v)
	}

	arrays, err := m.ReadBits(1)
	if err != nil {
		return to, err
	}
	if arrays != 0 {
		if err := readArrayBlock(m, &to.Stats, 16); err != nil {
			return to, err
		}
		if err := readArrayBlock(m, &to.Persistent, 16); err != nil {
			return to, err
		}
		if err := readArrayBlock(m, &to.Ammo, 16); err != nil {
			return to, err
		}
		if err := readArrayBlock(m, &to.Powerups, 32); err != nil {
			return to, err
		}
	}

	extra, err := readExtraFields(m, opts)
	if err != nil {
		return to, err
	}
	if extra != nil {
		to.Extra = extra
	} else if from.Extra != nil {
		to.Extra = make(map[string]int32, len(from.Extra))
		for k, v := range from.Extra {
			to.Extra[k] = v
		}
	}
	return to, nil
}

// writeArrayBlock emits a changed bit, a 16-slot change mask, and the
// payloads of the changed slots.
func writeArrayBlock(m *Msg, from, to *[16]int32, bits int) error {
	if *from == *to {
		return m.WriteBits(0, 1)
	}
	if err := m.WriteBits(1, 1); err != nil {
		return err
	}
	var mask uint32
	for i := 0; i < 16; i++ {
		if from[i] != to[i] {
			mask |= 1 << i
		}
	}
	if err := m.WriteBits(mask, 16); err != nil {
		return err
	}
	for i := 0; i < 16; i++ {
		if mask&(1<<i) != 0 {
			if err := m.WriteBits(uint32(to[i]), bits); err != nil {
				return err
			}
		}
	}
	return nil
}

func readArrayBlock(m *Msg, arr *[16]int32, bits int) error {
	changed, err := m.ReadBits(1)
	if err != nil {
		return err
	}
	if changed == 0 {
		return nil
	}
	mask, err := m.ReadBits(16)
	if err != nil {
		return err
	}
	for i := 0; i < 16; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		v, err := m.ReadBitsSigned(bits)
		if err != nil {
			return err
		}
		arr[i] = v
	}
	return nil
}

// ----- entity state -----

// WriteEntityDelta encodes to against from (field bits only; the entity
// number and remove bit belong to the list framing).
func WriteEntityDelta(m *Msg, from, to *EntityState) error {
	for i := range entityFields {
		f := &entityFields[i]
		fv, tv := f.get(from), f.get(to)
		if fv == tv {
			if err := m.WriteBits(0, 1); err != nil {
				return err
			}
			continue
		}
		if err := m.WriteBits(1, 1); err != nil {
			return err
		}
		if err := writeFieldPayload(m, f.kind, f.bits, tv); err != nil {
			return err
		}
	}
	return writeExtraFields(m, to.Extra)
}

// ReadEntityDelta decodes an entity-state delta against from.
func ReadEntityDelta(m *Msg, from *EntityState, opts ParseOptions) (EntityState, error) {
	to := *from
	for i := range entityFields {
		f := &entityFields[i]
		changed, err := m.ReadBits(1)
		if err != nil {
			return to, err
		}
		if changed == 0 {
			continue
		}
		v, err := readFieldPayload(m, f.kind, f.bits)
		if err != nil {
			return to, err
		}
		f.set(&to, v)
	}
	extra, err := readExtraFields(m, opts)
	if err != nil {
		return to, err
	}
	if extra != nil {
		to.Extra = extra
	} else if from.Extra != nil {
		to.Extra = make(map[string]int32, len(from.Extra))
		for k, v := range from.Extra {
			to.Extra[k] = v
		}
	}
	return to, nil
}

// ----- entity list -----

// baselineLookup resolves a gamestate baseline entity, or nil.
type baselineLookup func(num int32) *EntityState

// ReadEntityList applies a snapshot's entity operations over the previous
// snapshot's entity set. Entities absent from the stream carry forward
// unchanged; the sentinel number EntityNumNone ends the list.
func ReadEntityList(m *Msg, from map[int32]EntityState, baseline baselineLookup, opts ParseOptions) (map[int32]EntityState, error) {
	to := make(map[int32]EntityState, len(from)+8)
	for n, e := range from {
		to[n] = e
	}

	last := int32(-1)
	for {
		raw, err := m.ReadBits(GEntityNumBits)
		if err != nil {
			return nil, err
		}
		num := int32(raw)
		if num == EntityNumNone {
			return to, nil
		}
		if num <= last {
			log.Warn().Int32("entity", num).Int32("after", last).
				Msg("entity list out of ascending order")
		}
		last = num

		remove, err := m.ReadBits(1)
		if err != nil {
			return nil, err
		}
		if remove != 0 {
			delete(to, num)
			continue
		}

		var base EntityState
		if prev, ok := to[num]; ok {
			base = prev
		} else if bl := baseline(num); bl != nil {
			base = *bl
		}
		es, err := ReadEntityDelta(m, &base, opts)
		if err != nil {
			return nil, err
		}
		es.Number = num
		to[num] = es
	}
}

// WriteEntityList encodes the difference between two entity sets: removals
// for entities present only in from, deltas for new or changed entities,
// nothing for carried entities.
func WriteEntityList(m *Msg, from, to map[int32]EntityState, baseline baselineLookup) error {
	nums := make([]int32, 0, len(from)+len(to))
	seen := make(map[int32]bool, len(from)+len(to))
	for n := range from {
		nums = append(nums, n)
		seen[n] = true
	}
	for n := range to {
		if !seen[n] {
			nums = append(nums, n)
		}
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	for _, num := range nums {
		if num < 0 || num >= EntityNumNone {
			return fmt.Errorf("%w: entity number %d", ErrProtocolViolation, num)
		}
		fromEnt, inFrom := from[num]
		toEnt, inTo := to[num]
		switch {
		case inFrom && !inTo:
			if err := m.WriteBits(uint32(num), GEntityNumBits); err != nil {
				return err
			}
			if err := m.WriteBits(1, 1); err != nil {
				return err
			}
		case inTo:
			var base EntityState
			if inFrom {
				if fromEnt.Equal(&toEnt) {
					continue // carried forward
				}
				base = fromEnt
			} else if bl := baseline(num); bl != nil {
				base = *bl
			}
			if err := m.WriteBits(uint32(num), GEntityNumBits); err != nil {
				return err
			}
			if err := m.WriteBits(0, 1); err != nil {
				return err
			}
			if err := WriteEntityDelta(m, &base, &toEnt); err != nil {
				return err
			}
		}
	}
	return m.WriteBits(EntityNumNone, GEntityNumBits)
}

// ----- user commands -----

// ReadUserCmdDelta decodes one user command against its per-client
// baseline. Payload bytes are XORed with key; key 0 is a no-op.
func ReadUserCmdDelta(m *Msg, base UserCommand, key byte) (UserCommand, error) {
	cmd := base
	mask, err := m.ReadBits(userCmdFieldCount)
	if err != nil {
		return cmd, err
	}
	if mask&(1<<0) != 0 {
		v, err := readKeyed(m, 4, key)
		if err != nil {
			return cmd, err
		}
		cmd.ServerTime = int32(v)
	}
	for i := 0; i < 3; i++ {
		if mask&(1<<(1+i)) != 0 {
			v, err := readKeyed(m, 2, key)
			if err != nil {
				return cmd, err
			}
			cmd.Angles[i] = int16(v)
		}
	}
	if mask&(1<<4) != 0 {
		v, err := readKeyed(m, 1, key)
		if err != nil {
			return cmd, err
		}
		cmd.Forward = int8(v)
	}
	if mask&(1<<5) != 0 {
		v, err := readKeyed(m, 1, key)
		if err != nil {
			return cmd, err
		}
		cmd.Right = int8(v)
	}
	if mask&(1<<6) != 0 {
		v, err := readKeyed(m, 1, key)
		if err != nil {
			return cmd, err
		}
		cmd.Up = int8(v)
	}
	if mask&(1<<7) != 0 {
		v, err := readKeyed(m, 4, key)
		if err != nil {
			return cmd, err
		}
		cmd.Buttons = v
	}
	if mask&(1<<8) != 0 {
		v, err := readKeyed(m, 1, key)
		if err != nil {
			return cmd, err
		}
		cmd.Weapon = byte(v)
	}
	return cmd, nil
}

// WriteUserCmdDelta encodes cmd against its per-client baseline.
func WriteUserCmdDelta(m *Msg, base, cmd UserCommand, key byte) error {
	var mask uint32
	if cmd.ServerTime != base.ServerTime {
		mask |= 1 << 0
	}
	for i := 0; i < 3; i++ {
		if cmd.Angles[i] != base.Angles[i] {
			mask |= 1 << (1 + i)
		}
	}
	if cmd.Forward != base.Forward {
		mask |= 1 << 4
	}
	if cmd.Right != base.Right {
		mask |= 1 << 5
	}
	if cmd.Up != base.Up {
		mask |= 1 << 6
	}
	if cmd.Buttons != base.Buttons {
		mask |= 1 << 7
	}
	if cmd.Weapon != base.Weapon {
		mask |= 1 << 8
	}
	if err := m.WriteBits(mask, userCmdFieldCount); err != nil {
		return err
	}
	if mask&(1<<0) != 0 {
		if err := writeKeyed(m, uint32(cmd.ServerTime), 4, key); err != nil {
			return err
		}
	}
	for i := 0; i < 3; i++ {
		if mask&(1<<(1+i)) != 0 {
			if err := writeKeyed(m, uint32(uint16(cmd.Angles[i])), 2, key); err != nil {
				return err
			}
		}
	}
	if mask&(1<<4) != 0 {
		if err := writeKeyed(m, uint32(uint8(cmd.Forward)), 1, key); err != nil {
			return err
		}
	}
	if mask&(1<<5) != 0 {
		if err := writeKeyed(m, uint32(uint8(cmd.Right)), 1, key); err != nil {
			return err
		}
	}
	if mask&(1<<6) != 0 {
		if err := writeKeyed(m, uint32(uint8(cmd.Up)), 1, key); err != nil {
			return err
		}
	}
	if mask&(1<<7) != 0 {
		if err := writeKeyed(m, cmd.Buttons, 4, key); err != nil {
			return err
		}
	}
	if mask&(1<<8) != 0 {
		if err := writeKeyed(m, uint32(cmd.Weapon), 1, key); err != nil {
			return err
		}
	}
	return nil
}

func readKeyed(m *Msg, nbytes int, key byte) (uint32, error) {
	var v uint32
	for i := 0; i < nbytes; i++ {
		b, err := m.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b^key) << (8 * i)
	}
	return v, nil
}

func writeKeyed(m *Msg, v uint32, nbytes int, key byte) error {
	for i := 0; i < nbytes; i++ {
		if err := m.WriteByte(byte(v>>(8*i)) ^ key); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]int32) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
