package dissect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
)

// Configuration string slots with a defined meaning for analysis.
const (
	csServerInfo     = 2
	csLevelStartTime = 21
)

// VehicleCheck reports whether the viewed entity pilots a vehicle within a
// message.
type VehicleCheck int

const (
	VehicleNotChecked VehicleCheck = iota
	VehicleInside
	VehicleNotInside
)

// MapTransition is one record of the map-transition index: a new map, a
// restart of the current one, or a bare map-change boundary.
type MapTransition struct {
	MessageIndex  int    `json:"messageIndex"`
	FirstSnapshot int    `json:"firstSnapshot"` // message index, -1 until one is seen
	Name          string `json:"name"`
	StartTime     int    `json:"startTime"`
	EndTime       int    `json:"endTime"`
	Restart       bool   `json:"restart"`
}

// Incremental configstring server commands, as issued by the engine:
// `cs <index> "<value>"` replaces a slot, `bcs0/1/2 <index> "<chunk>"`
// streams a big one in pieces.
var (
	csCommandRe  = regexp.MustCompile(`^cs (\d+) "(.*)"`)
	bcsCommandRe = regexp.MustCompile(`^bcs(\d) (\d+) "(.*)"`)
)

// infoValue extracts a key from a backslash-separated info string.
func infoValue(info, key string) string {
	parts := strings.Split(strings.TrimPrefix(info, "\\"), "\\")
	for i := 0; i+1 < len(parts); i += 2 {
		if parts[i] == key {
			return parts[i+1]
		}
	}
	return ""
}

// analysis is the outcome of one forward pass over the message stream.
type analysis struct {
	transitions []*MapTransition
	vehicle     []VehicleCheck
	init        []bool // message carries a gamestate
}

// analyzer walks instructions in stream order, maintaining the live view
// of the configuration strings and an open map segment.
type analyzer struct {
	res analysis

	cfg    map[int]string
	cfgTmp map[int]string

	prevName       string
	awaitGamestate bool // last transition came from a MapChange boundary
	restartPushed  bool // last transition came from a map_restart command
	lastServerTime int
	sawSnapshot    bool
}

func newAnalyzer(messageCount int) *analyzer {
	return &analyzer{
		res: analysis{
			vehicle: make([]VehicleCheck, messageCount),
			init:    make([]bool, messageCount),
		},
		cfg:    make(map[int]string),
		cfgTmp: make(map[int]string),
	}
}

func (an *analyzer) last() *MapTransition {
	if len(an.res.transitions) == 0 {
		return nil
	}
	return an.res.transitions[len(an.res.transitions)-1]
}

func (an *analyzer) push(t *MapTransition) {
	t.FirstSnapshot = -1
	an.res.transitions = append(an.res.transitions, t)
}

func (an *analyzer) startTime() int {
	v, err := strconv.Atoi(an.cfg[csLevelStartTime])
	if err != nil {
		return 0
	}
	return v
}

// message feeds one materialized message to the analyzer. A multierror of
// per-instruction annotations is returned; the pass itself never aborts.
func (an *analyzer) message(index int, instructions []Instruction) error {
	var errs *multierror.Error
	vehicle := VehicleNotChecked

	for _, instr := range instructions {
		switch v := instr.(type) {
		case *GameState:
			an.cfg = make(map[int]string, len(v.ConfigStrings))
			for i, s := range v.ConfigStrings {
				an.cfg[i] = s
			}
			if index < len(an.res.init) {
				an.res.init[index] = true
			}
			an.gamestate(index)
		case *ConfigStringUpdate:
			an.cfg[v.Index] = v.Value
		case *ServerCommand:
			if err := an.serverCommand(index, v.Command); err != nil {
				errs = multierror.Append(errs, err)
			}
		case MapChange:
			an.push(&MapTransition{
				MessageIndex: index,
				Name:         infoValue(an.cfg[csServerInfo], "mapname"),
				StartTime:    an.startTime(),
			})
			an.awaitGamestate = true
			an.restartPushed = false
		case *SnapshotInstr:
			an.snapshot(index, v.Snap)
			if v.Snap.Vehicle != nil {
				vehicle = VehicleInside
			} else if vehicle == VehicleNotChecked {
				vehicle = VehicleNotInside
			}
		}
	}

	if index < len(an.res.vehicle) {
		an.res.vehicle[index] = vehicle
	}
	return errs.ErrorOrNil()
}

func (an *analyzer) gamestate(index int) {
	name := infoValue(an.cfg[csServerInfo], "mapname")
	start := an.startTime()

	switch {
	case an.awaitGamestate:
		// A bare map-change boundary announced this transition; the
		// gamestate fills in its identity.
		t := an.last()
		t.Name = name
		t.StartTime = start
		t.Restart = name == an.prevName && an.prevName != ""
	case an.restartPushed && name == an.prevName:
		// The map_restart command already pushed the record.
		t := an.last()
		t.StartTime = start
	default:
		an.push(&MapTransition{
			MessageIndex: index,
			Name:         name,
			StartTime:    start,
			Restart:      name == an.prevName && an.prevName != "",
		})
	}

	an.prevName = name
	an.awaitGamestate = false
	an.restartPushed = false
}

func (an *analyzer) serverCommand(index int, command string) error {
	trimmed := strings.TrimSpace(command)
	if strings.HasPrefix(trimmed, "map_restart") {
		an.push(&MapTransition{
			MessageIndex: index,
			Name:         infoValue(an.cfg[csServerInfo], "mapname"),
			StartTime:    an.startTime(),
			Restart:      true,
		})
		an.restartPushed = true
		an.awaitGamestate = false
		return nil
	}

	if m := csCommandRe.FindStringSubmatch(trimmed); m != nil {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return err
		}
		an.cfg[idx] = m[2]
		return nil
	}
	if m := bcsCommandRe.FindStringSubmatch(trimmed); m != nil {
		part, err := strconv.Atoi(m[1])
		if err != nil {
			return err
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return err
		}
		switch part {
		case 0:
			an.cfgTmp[idx] = m[3]
		case 1:
			an.cfgTmp[idx] += m[3]
		case 2:
			an.cfg[idx] = an.cfgTmp[idx] + m[3]
			delete(an.cfgTmp, idx)
		default:
			log.Warn().Int("part", part).Int("index", idx).Msg("unexpected bcs chunk")
		}
	}
	return nil
}

func (an *analyzer) snapshot(index int, snap *Snapshot) {
	an.sawSnapshot = true
	an.lastServerTime = int(snap.ServerTime)
	if t := an.last(); t != nil && t.FirstSnapshot < 0 {
		t.FirstSnapshot = index
	}
	an.awaitGamestate = false
	an.restartPushed = false
}

// finish seals segment end times: each map ends where the next begins, the
// last at the final snapshot time.
func (an *analyzer) finish() analysis {
	ts := an.res.transitions
	for i, t := range ts {
		if i+1 < len(ts) {
			t.EndTime = ts[i+1].StartTime
		} else if an.sawSnapshot {
			t.EndTime = an.lastServerTime
		} else {
			t.EndTime = t.StartTime
		}
	}
	return an.res
}
