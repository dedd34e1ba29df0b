package dissect

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// decoder turns decoded payload bytes into instructions and back. It leans
// on the assembler for everything stateful: gamestate baselines, the
// snapshot window and user-command baselines.
type decoder struct {
	opts ParseOptions
	asm  *assembler
}

func newDecoder(opts ParseOptions) *decoder {
	return &decoder{opts: opts, asm: newAssembler(opts)}
}

// decodeMessage parses one already-Huffman-decoded payload into its
// instruction sequence, stopping at the end-of-file opcode. Instructions
// are emitted exactly in wire order.
func (d *decoder) decodeMessage(msgIndex int, payload []byte) ([]Instruction, error) {
	m := NewMsgFrom(payload)
	var out []Instruction
	for {
		op, err := m.ReadByte()
		if err != nil {
			return out, err
		}
		switch Opcode(op) {
		case OpNop:
			out = append(out, Nop{})
		case OpGamestate:
			gs, err := d.readGameState(m)
			if err != nil {
				return out, err
			}
			d.asm.setGameState(gs)
			out = append(out, gs)
		case OpConfigString:
			cs, err := d.readConfigString(m)
			if err != nil {
				return out, err
			}
			if d.asm.gamestate != nil {
				d.asm.gamestate.SetConfigString(cs.Index, cs.Value)
			}
			out = append(out, cs)
		case OpBaseline:
			bl, err := d.readBaseline(m)
			if err != nil {
				return out, err
			}
			if d.asm.gamestate != nil {
				d.asm.gamestate.Baselines[bl.Index] = bl.Entity
			}
			out = append(out, bl)
		case OpServerCommand:
			seq, err := m.ReadLong()
			if err != nil {
				return out, err
			}
			cmd, err := m.ReadString()
			if err != nil {
				return out, err
			}
			out = append(out, &ServerCommand{Sequence: seq, Command: cmd})
		case OpDownload:
			size, err := m.ReadShort()
			if err != nil {
				return out, err
			}
			data, err := m.ReadData(int(size))
			if err != nil {
				return out, err
			}
			out = append(out, &Download{Data: data})
		case OpSnapshot:
			snap, err := d.asm.readSnapshot(m, msgIndex)
			if err != nil {
				return out, err
			}
			out = append(out, &SnapshotInstr{Snap: snap})
		case OpSetGame:
			name, err := m.ReadString()
			if err != nil {
				return out, err
			}
			out = append(out, &SetGame{Name: name})
		case OpMapChange:
			out = append(out, MapChange{})
		case OpEOF:
			out = append(out, EndOfFile{})
			return out, nil
		default:
			return out, fmt.Errorf("%w: %d at message %d", ErrInvalidOpcode, op, msgIndex)
		}
	}
}

func (d *decoder) readGameState(m *Msg) (*GameState, error) {
	gs := &GameState{
		ConfigStrings: make(map[int]string),
		Baselines:     make(map[int32]EntityState),
	}
	seq, err := m.ReadLong()
	if err != nil {
		return nil, err
	}
	gs.CommandSequence = seq

	for {
		op, err := m.ReadByte()
		if err != nil {
			return nil, err
		}
		done := false
		switch Opcode(op) {
		case OpConfigString:
			index, err := m.ReadShort()
			if err != nil {
				return nil, err
			}
			if int(index) >= MaxConfigStrings {
				return nil, fmt.Errorf("%w: configstring index %d", ErrProtocolViolation, index)
			}
			value, err := m.ReadBigString()
			if err != nil {
				return nil, err
			}
			gs.ConfigStrings[int(index)] = value
		case OpBaseline:
			bl, err := d.readBaseline(m)
			if err != nil {
				return nil, err
			}
			gs.Baselines[bl.Index] = bl.Entity
		case OpEOF:
			done = true
		default:
			return nil, fmt.Errorf("%w: %d inside gamestate", ErrInvalidOpcode, op)
		}
		if done {
			break
		}
	}

	if gs.ClientNum, err = m.ReadLong(); err != nil {
		return nil, err
	}
	if gs.ChecksumFeed, err = m.ReadLong(); err != nil {
		return nil, err
	}
	log.Debug().Int("configStrings", len(gs.ConfigStrings)).
		Int("baselines", len(gs.Baselines)).
		Int32("clientNum", gs.ClientNum).
		Msg("gamestate")
	return gs, nil
}

func (d *decoder) readConfigString(m *Msg) (*ConfigStringUpdate, error) {
	index, err := m.ReadShort()
	if err != nil {
		return nil, err
	}
	if int(index) >= MaxConfigStrings {
		return nil, fmt.Errorf("%w: configstring index %d", ErrProtocolViolation, index)
	}
	value, err := m.ReadBigString()
	if err != nil {
		return nil, err
	}
	return &ConfigStringUpdate{Index: int(index), Value: value}, nil
}

// readBaseline reads an entity baseline: the state is a delta from zero.
func (d *decoder) readBaseline(m *Msg) (*Baseline, error) {
	raw, err := m.ReadBits(GEntityNumBits)
	if err != nil {
		return nil, err
	}
	num := int32(raw)
	if num >= MaxGEntities {
		return nil, fmt.Errorf("%w: baseline entity %d", ErrProtocolViolation, num)
	}
	var zero EntityState
	es, err := ReadEntityDelta(m, &zero, d.opts)
	if err != nil {
		return nil, err
	}
	es.Number = num
	return &Baseline{Index: num, Entity: es}, nil
}

// encodeMessage re-emits an instruction sequence as decoded payload bytes;
// the inverse of decodeMessage.
func (d *decoder) encodeMessage(msgIndex int, instructions []Instruction) ([]byte, error) {
	m := NewMsg(MaxMsgLen)
	sawEOF := false
	for _, instr := range instructions {
		if err := m.WriteByte(byte(instr.Op())); err != nil {
			return nil, err
		}
		switch v := instr.(type) {
		case Nop:
		case *GameState:
			if err := d.writeGameState(m, v); err != nil {
				return nil, err
			}
			d.asm.setGameState(v)
		case *ConfigStringUpdate:
			if err := m.WriteShort(uint16(v.Index)); err != nil {
				return nil, err
			}
			if err := m.WriteBigString(v.Value); err != nil {
				return nil, err
			}
		case *Baseline:
			if err := d.writeBaseline(m, v.Index, &v.Entity); err != nil {
				return nil, err
			}
		case *ServerCommand:
			if err := m.WriteLong(v.Sequence); err != nil {
				return nil, err
			}
			if err := m.WriteString(v.Command); err != nil {
				return nil, err
			}
		case *Download:
			if err := m.WriteShort(uint16(len(v.Data))); err != nil {
				return nil, err
			}
			if err := m.WriteData(v.Data); err != nil {
				return nil, err
			}
		case *SnapshotInstr:
			if err := d.asm.writeSnapshot(m, msgIndex, v.Snap); err != nil {
				return nil, err
			}
			d.asm.retain(msgIndex, v.Snap.clone())
		case *SetGame:
			if err := m.WriteString(v.Name); err != nil {
				return nil, err
			}
		case MapChange:
		case EndOfFile:
			sawEOF = true
		default:
			return nil, fmt.Errorf("%w: %T", ErrInvalidOpcode, instr)
		}
	}
	if !sawEOF {
		if err := m.WriteByte(byte(OpEOF)); err != nil {
			return nil, err
		}
	}
	return m.Bytes(), nil
}

func (d *decoder) writeGameState(m *Msg, gs *GameState) error {
	if err := m.WriteLong(gs.CommandSequence); err != nil {
		return err
	}
	indices := make([]int, 0, len(gs.ConfigStrings))
	for i := range gs.ConfigStrings {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		if err := m.WriteByte(byte(OpConfigString)); err != nil {
			return err
		}
		if err := m.WriteShort(uint16(i)); err != nil {
			return err
		}
		if err := m.WriteBigString(gs.ConfigStrings[i]); err != nil {
			return err
		}
	}
	nums := make([]int32, 0, len(gs.Baselines))
	for n := range gs.Baselines {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, n := range nums {
		es := gs.Baselines[n]
		if err := m.WriteByte(byte(OpBaseline)); err != nil {
			return err
		}
		if err := d.writeBaseline(m, n, &es); err != nil {
			return err
		}
	}
	if err := m.WriteByte(byte(OpEOF)); err != nil {
		return err
	}
	if err := m.WriteLong(gs.ClientNum); err != nil {
		return err
	}
	return m.WriteLong(gs.ChecksumFeed)
}

func (d *decoder) writeBaseline(m *Msg, num int32, es *EntityState) error {
	if num < 0 || num >= MaxGEntities {
		return fmt.Errorf("%w: baseline entity %d", ErrProtocolViolation, num)
	}
	if err := m.WriteBits(uint32(num), GEntityNumBits); err != nil {
		return err
	}
	var zero EntityState
	return WriteEntityDelta(m, &zero, es)
}
