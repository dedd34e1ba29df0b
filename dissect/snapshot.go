package dissect

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// baselineWindow is how many decoded snapshots stay addressable as delta
// baselines. Eviction is strict FIFO; a demo whose deltas reach further
// back than this is unreadable, which matches the protocol constraint.
const baselineWindow = 64

// maxAreaMaskLen bounds the visibility area mask carried by a snapshot.
const maxAreaMaskLen = 32

// userCmdClientBits is the width of the client slot in a command block.
const userCmdClientBits = 5

// assembler resolves wire snapshots into complete world states. It owns
// the long-lived per-demo mutable state: gamestate baselines, the bounded
// ring of decoded snapshots, and per-client user-command baselines.
type assembler struct {
	opts ParseOptions

	gamestate *GameState

	window map[int]*Snapshot
	order  []int // FIFO of window keys

	// decode- and encode-side command baselines advance independently so a
	// re-encode pass does not disturb decoding state.
	cmdBaselines    map[int32]UserCommand
	encCmdBaselines map[int32]UserCommand
}

func newAssembler(opts ParseOptions) *assembler {
	return &assembler{
		opts:            opts,
		window:          make(map[int]*Snapshot, baselineWindow),
		cmdBaselines:    make(map[int32]UserCommand),
		encCmdBaselines: make(map[int32]UserCommand),
	}
}

// resetEncodeState clears the encode-side command baselines ahead of a
// save pass.
func (a *assembler) resetEncodeState() {
	a.encCmdBaselines = make(map[int32]UserCommand)
}

// setGameState installs a fresh full reference whose baselines back
// entities that a snapshot's source does not hold. The snapshot window is
// left as it is.
func (a *assembler) setGameState(gs *GameState) {
	a.gamestate = gs
}

func (a *assembler) baseline(num int32) *EntityState {
	if a.gamestate == nil {
		return nil
	}
	if es, ok := a.gamestate.Baselines[num]; ok {
		return &es
	}
	return nil
}

// retain stores a successfully decoded snapshot, evicting FIFO past the
// window size.
func (a *assembler) retain(msgIndex int, s *Snapshot) {
	if _, ok := a.window[msgIndex]; !ok {
		a.order = append(a.order, msgIndex)
	}
	a.window[msgIndex] = s
	for len(a.order) > baselineWindow {
		evict := a.order[0]
		a.order = a.order[1:]
		delete(a.window, evict)
	}
}

func (a *assembler) lookup(msgIndex int) *Snapshot {
	return a.window[msgIndex]
}

// readSnapshot decodes one wire snapshot at msgIndex and resolves it
// against its baseline chain.
func (a *assembler) readSnapshot(m *Msg, msgIndex int) (*Snapshot, error) {
	serverTime, err := m.ReadLong()
	if err != nil {
		return nil, err
	}
	wireDelta, err := m.ReadByte()
	if err != nil {
		return nil, err
	}
	flags, err := m.ReadByte()
	if err != nil {
		return nil, err
	}
	areaLen, err := m.ReadByte()
	if err != nil {
		return nil, err
	}
	if int(areaLen) > maxAreaMaskLen {
		return nil, fmt.Errorf("%w: areaMask length %d", ErrProtocolViolation, areaLen)
	}
	areaMask, err := m.ReadData(int(areaLen))
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ServerTime: serverTime,
		DeltaNum:   -1,
		SnapFlags:  flags,
		AreaMask:   areaMask,
	}

	var from *Snapshot
	if wireDelta != 0 {
		snap.DeltaNum = int32(msgIndex - int(wireDelta))
		from = a.lookup(int(snap.DeltaNum))
		if from == nil {
			// Baseline evicted or never decoded: consume the wire bits
			// against a zero state and surface the condition instead of
			// guessing.
			snap.Unresolved = true
			log.Warn().Int("message", msgIndex).Int32("deltaNum", snap.DeltaNum).
				Msg("snapshot delta baseline unavailable")
		}
	}

	var fromPlayer PlayerState
	var fromVehicle *PlayerState
	fromEntities := map[int32]EntityState{}
	if from != nil {
		fromPlayer = from.Player
		fromVehicle = from.Vehicle
		fromEntities = from.Entities
	}

	snap.Player, err = ReadPlayerDelta(m, &fromPlayer, a.opts)
	if err != nil {
		return nil, err
	}

	hasVehicle, err := m.ReadBits(1)
	if err != nil {
		return nil, err
	}
	if hasVehicle != 0 {
		var base PlayerState
		if fromVehicle != nil {
			base = *fromVehicle
		}
		veh, err := ReadPlayerDelta(m, &base, a.opts)
		if err != nil {
			return nil, err
		}
		snap.Vehicle = &veh
	}

	snap.Entities, err = ReadEntityList(m, fromEntities, a.baseline, a.opts)
	if err != nil {
		return nil, err
	}

	hasCmds, err := m.ReadBits(1)
	if err != nil {
		return nil, err
	}
	if hasCmds != 0 {
		count, err := m.ReadByte()
		if err != nil {
			return nil, err
		}
		key := a.opts.key(serverTime)
		for i := 0; i < int(count); i++ {
			clientRaw, err := m.ReadBits(userCmdClientBits)
			if err != nil {
				return nil, err
			}
			clientNum := int32(clientRaw)
			cmd, err := ReadUserCmdDelta(m, a.cmdBaselines[clientNum], key)
			if err != nil {
				return nil, err
			}
			a.cmdBaselines[clientNum] = cmd
			snap.Commands = append(snap.Commands, ClientCommand{ClientNum: clientNum, Cmd: cmd})
		}
	}

	if !snap.Unresolved {
		a.retain(msgIndex, snap.clone())
	}
	return snap, nil
}

// writeSnapshot re-encodes a resolved snapshot at msgIndex. The baseline
// it was decoded against must still be in the window.
func (a *assembler) writeSnapshot(m *Msg, msgIndex int, snap *Snapshot) error {
	if err := m.WriteLong(snap.ServerTime); err != nil {
		return err
	}
	wireDelta := byte(0)
	var from *Snapshot
	if snap.DeltaNum >= 0 {
		offset := msgIndex - int(snap.DeltaNum)
		if offset < 1 || offset > 255 {
			return fmt.Errorf("%w: delta offset %d", ErrProtocolViolation, offset)
		}
		from = a.lookup(int(snap.DeltaNum))
		if from == nil {
			return fmt.Errorf("%w: message %d", ErrDeltaUnresolved, snap.DeltaNum)
		}
		wireDelta = byte(offset)
	}
	if err := m.WriteByte(wireDelta); err != nil {
		return err
	}
	if err := m.WriteByte(snap.SnapFlags); err != nil {
		return err
	}
	if len(snap.AreaMask) > maxAreaMaskLen {
		return fmt.Errorf("%w: areaMask length %d", ErrProtocolViolation, len(snap.AreaMask))
	}
	if err := m.WriteByte(byte(len(snap.AreaMask))); err != nil {
		return err
	}
	if err := m.WriteData(snap.AreaMask); err != nil {
		return err
	}

	var fromPlayer PlayerState
	var fromVehicle *PlayerState
	fromEntities := map[int32]EntityState{}
	if from != nil {
		fromPlayer = from.Player
		fromVehicle = from.Vehicle
		fromEntities = from.Entities
	}

	if err := WritePlayerDelta(m, &fromPlayer, &snap.Player); err != nil {
		return err
	}

	if snap.Vehicle == nil {
		if err := m.WriteBits(0, 1); err != nil {
			return err
		}
	} else {
		if err := m.WriteBits(1, 1); err != nil {
			return err
		}
		var base PlayerState
		if fromVehicle != nil {
			base = *fromVehicle
		}
		if err := WritePlayerDelta(m, &base, snap.Vehicle); err != nil {
			return err
		}
	}

	if err := WriteEntityList(m, fromEntities, snap.Entities, a.baseline); err != nil {
		return err
	}

	if len(snap.Commands) == 0 {
		return m.WriteBits(0, 1)
	}
	if err := m.WriteBits(1, 1); err != nil {
		return err
	}
	if err := m.WriteByte(byte(len(snap.Commands))); err != nil {
		return err
	}
	key := a.opts.key(snap.ServerTime)
	for _, cc := range snap.Commands {
		if err := m.WriteBits(uint32(cc.ClientNum), userCmdClientBits); err != nil {
			return err
		}
		base := a.encCmdBaselines[cc.ClientNum]
		if err := WriteUserCmdDelta(m, base, cc.Cmd, key); err != nil {
			return err
		}
		a.encCmdBaselines[cc.ClientNum] = cc.Cmd
	}
	return nil
}
