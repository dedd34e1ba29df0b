package dissect

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Message is one on-disk frame: its sequence number, the raw Huffman
// payload, and, once materialized, the decoded instruction stream. The raw
// payload is kept so an unmodified demo saves byte-identically.
type Message struct {
	Seq    int32
	Offset int64

	raw          []byte
	instructions []Instruction
	loaded       bool
	modified     bool
	vehicle      VehicleCheck
	init         bool
}

// Size is the stored (compressed) payload length in bytes.
func (m *Message) Size() int { return len(m.raw) }

// IsLoaded reports whether the instruction stream is materialized.
func (m *Message) IsLoaded() bool { return m.loaded }

// Instructions returns the decoded instruction stream; empty until the
// message is loaded or when decoding failed.
func (m *Message) Instructions() []Instruction { return m.instructions }

// SetInstructions replaces the instruction stream and marks the message
// for re-encoding on the next save.
func (m *Message) SetInstructions(instructions []Instruction) {
	m.instructions = instructions
	m.loaded = true
	m.modified = true
}

// MarkModified flags in-place instruction edits so the next save
// re-encodes this message instead of reusing its raw payload.
func (m *Message) MarkModified() { m.modified = true }

// Vehicle reports the per-message vehicle state derived by analysis.
func (m *Message) Vehicle() VehicleCheck { return m.vehicle }

// IsInit reports whether analysis found a gamestate in this message.
func (m *Message) IsInit() bool { return m.init }

// Demo is the facade over one demo recording: the message index, the
// Huffman codec pair, the snapshot assembler and the analysis results.
// A Demo is single-threaded; distinct Demo values are independent.
type Demo struct {
	opts ParseOptions

	huff *Huffman
	dec  *decoder

	messages          []*Message
	trailingSentinels int

	// nextDecode is the lowest message index not yet materialized; lazy
	// loading always proceeds in stream order so delta baselines resolve.
	nextDecode int

	analyzed    bool
	transitions []*MapTransition
}

// Open loads the message index from path and, when analyze is set, runs
// the map-transition analysis pass. Files carrying the zstd magic are
// decompressed transparently.
func Open(path string, analyze bool) (*Demo, error) {
	return OpenOptions(path, analyze, ParseOptions{})
}

// OpenOptions is Open with explicit parse options.
func OpenOptions(path string, analyze bool, opts ParseOptions) (*Demo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIo, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var src io.Reader = br
	if magic, err := br.Peek(4); err == nil && bytes.Equal(magic, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIo, err)
		}
		defer zr.Close()
		src = zr
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIo, err)
	}

	d := &Demo{opts: opts, huff: NewHuffman(), dec: newDecoder(opts)}
	if err := d.parseFrames(data); err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Int("messages", len(d.messages)).Msg("demo opened")

	if analyze {
		if err := d.Analyze(); err != nil {
			log.Warn().Err(err).Msg("analysis degraded")
		}
	}
	return d, nil
}

func (d *Demo) parseFrames(data []byte) error {
	offset := int64(0)
	rest := data
	for {
		if len(rest) == 0 {
			return nil
		}
		if len(rest) < 4 {
			return fmt.Errorf("%w: truncated frame header", ErrIo)
		}
		seq := int32(binary.LittleEndian.Uint32(rest))
		if seq == -1 {
			d.trailingSentinels++
			rest = rest[4:]
			offset += 4
			continue
		}
		if d.trailingSentinels > 0 {
			// frames after a sentinel are not part of the stream
			return nil
		}
		if len(rest) < 8 {
			return fmt.Errorf("%w: truncated frame length", ErrIo)
		}
		length := int32(binary.LittleEndian.Uint32(rest[4:]))
		if length == -1 {
			d.trailingSentinels++
			return nil
		}
		if length < 0 || length > MaxMsgLen {
			return fmt.Errorf("%w: frame length %d", ErrProtocolViolation, length)
		}
		if len(rest) < 8+int(length) {
			return fmt.Errorf("%w: truncated frame payload", ErrIo)
		}
		raw := make([]byte, length)
		copy(raw, rest[8:8+length])
		d.messages = append(d.messages, &Message{Seq: seq, Offset: offset, raw: raw})
		rest = rest[8+int(length):]
		offset += 8 + int64(length)
	}
}

// Close releases all resources.
func (d *Demo) Close() {
	d.messages = nil
	d.transitions = nil
	d.analyzed = false
	d.dec = newDecoder(d.opts)
	d.nextDecode = 0
}

// MessageCount returns the number of messages in the demo.
func (d *Demo) MessageCount() int { return len(d.messages) }

// EndSigned reports whether the source stream carried the doubled end
// sentinel; pass it back to Save to preserve the trailer.
func (d *Demo) EndSigned() bool { return d.trailingSentinels >= 2 }

// Message lazily materializes and returns message i, or nil when out of
// range. A message that fails to decode keeps an empty instruction list.
func (d *Demo) Message(i int) *Message {
	if i < 0 || i >= len(d.messages) {
		return nil
	}
	if !d.messages[i].loaded {
		if err := d.LoadMessage(i); err != nil {
			log.Warn().Int("message", i).Err(err).Msg("message failed to decode")
		}
	}
	return d.messages[i]
}

// LoadMessage materializes message i, decoding every earlier message first
// so snapshot baselines resolve in stream order.
func (d *Demo) LoadMessage(i int) error {
	if i < 0 || i >= len(d.messages) {
		return fmt.Errorf("%w: message %d out of range", ErrIo, i)
	}
	if d.messages[i].loaded {
		return nil
	}
	if i < d.nextDecode {
		// reloading behind the cursor: baselines may have been evicted,
		// which the snapshot assembler will surface as unresolved
		return d.decodeOne(i)
	}
	var errs *multierror.Error
	for j := d.nextDecode; j <= i; j++ {
		if err := d.decodeOne(j); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("message %d: %w", j, err))
		}
		d.nextDecode = j + 1
	}
	return errs.ErrorOrNil()
}

func (d *Demo) decodeOne(i int) error {
	msg := d.messages[i]
	d.huff.Reset()
	payload, err := d.huff.Decompress(msg.raw, MaxMsgLen)
	if err != nil {
		msg.loaded = true
		msg.instructions = nil
		return err
	}
	instructions, err := d.dec.decodeMessage(i, payload)
	msg.loaded = true
	if err != nil {
		msg.instructions = nil
		return err
	}
	msg.instructions = instructions
	return nil
}

// IsMessageLoaded reports whether message i is materialized.
func (d *Demo) IsMessageLoaded(i int) bool {
	return i >= 0 && i < len(d.messages) && d.messages[i].loaded
}

// UnloadMessage drops message i's instruction stream, keeping metadata and
// the raw payload.
func (d *Demo) UnloadMessage(i int) {
	if i < 0 || i >= len(d.messages) {
		return
	}
	d.messages[i].instructions = nil
	d.messages[i].loaded = false
	d.messages[i].modified = false
}

// DeleteMessage removes messages [first, last] from the in-memory
// sequence. The analyzer and every cached baseline are invalidated; the
// remaining messages are unloaded and decode fresh on next access.
func (d *Demo) DeleteMessage(first, last int) {
	if last < first {
		last = first
	}
	if first < 0 || first >= len(d.messages) {
		return
	}
	if last >= len(d.messages) {
		last = len(d.messages) - 1
	}
	d.messages = append(d.messages[:first], d.messages[last+1:]...)
	for _, m := range d.messages {
		m.instructions = nil
		m.loaded = false
		m.modified = false
	}
	d.dec = newDecoder(d.opts)
	d.nextDecode = 0
	d.analyzed = false
	d.transitions = nil
}

// Save re-emits the demo to path. Unmodified messages are written from
// their raw payload byte-for-byte; modified ones are re-encoded through
// the codec stack. endSign appends a second end sentinel.
func (d *Demo) Save(path string, endSign bool) error {
	var buf bytes.Buffer
	d.dec.asm.resetEncodeState()
	encHuff := NewHuffman()
	for i, msg := range d.messages {
		raw := msg.raw
		if msg.modified && msg.loaded {
			payload, err := d.dec.encodeMessage(i, msg.instructions)
			if err != nil {
				return fmt.Errorf("message %d: %w", i, err)
			}
			encHuff.Reset()
			raw, err = encHuff.Compress(payload)
			if err != nil {
				return fmt.Errorf("message %d: %w", i, err)
			}
		}
		var hdr [8]byte
		binary.LittleEndian.PutUint32(hdr[:4], uint32(msg.Seq))
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(raw)))
		buf.Write(hdr[:])
		buf.Write(raw)
	}
	var sentinel [4]byte
	binary.LittleEndian.PutUint32(sentinel[:], uint32(0xFFFFFFFF))
	buf.Write(sentinel[:])
	if endSign {
		buf.Write(sentinel[:])
	}

	out := buf.Bytes()
	if strings.HasSuffix(path, ".zst") {
		var zbuf bytes.Buffer
		zw, err := zstd.NewWriter(&zbuf)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIo, err)
		}
		if _, err := zw.Write(out); err != nil {
			zw.Close()
			return fmt.Errorf("%w: %v", ErrIo, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrIo, err)
		}
		out = zbuf.Bytes()
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIo, err)
	}
	return nil
}

// Analyze runs the forward analysis pass: it materializes every message,
// builds the map-transition index and the per-message vehicle flags.
// Per-message failures degrade gracefully and come back aggregated.
func (d *Demo) Analyze() error {
	an := newAnalyzer(len(d.messages))
	var errs *multierror.Error
	for i := range d.messages {
		msg := d.Message(i)
		if msg == nil || len(msg.instructions) == 0 {
			continue
		}
		if err := an.message(i, msg.instructions); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("message %d: %w", i, err))
		}
	}
	res := an.finish()
	d.transitions = res.transitions
	for i, v := range res.vehicle {
		d.messages[i].vehicle = v
		d.messages[i].init = res.init[i]
	}
	d.analyzed = true
	return errs.ErrorOrNil()
}

// MapsCount returns the number of map transitions found by analysis.
func (d *Demo) MapsCount() int { return len(d.transitions) }

func (d *Demo) transition(j int) *MapTransition {
	if j < 0 || j >= len(d.transitions) {
		return nil
	}
	return d.transitions[j]
}

// MapName returns the map name of segment j, or "".
func (d *Demo) MapName(j int) string {
	if t := d.transition(j); t != nil {
		return t.Name
	}
	return ""
}

// MapID returns the message index of the first snapshot in segment j, or
// -1 when the segment has none.
func (d *Demo) MapID(j int) int {
	if t := d.transition(j); t != nil {
		return t.FirstSnapshot
	}
	return -1
}

// MapStartTime returns the level start time of segment j.
func (d *Demo) MapStartTime(j int) int {
	if t := d.transition(j); t != nil {
		return t.StartTime
	}
	return 0
}

// MapEndTime returns the end time of segment j: the next segment's start,
// or the last snapshot time for the final segment.
func (d *Demo) MapEndTime(j int) int {
	if t := d.transition(j); t != nil {
		return t.EndTime
	}
	return 0
}

// IsMapRestart reports whether segment j is a restart of the previous map
// rather than a new one.
func (d *Demo) IsMapRestart(j int) bool {
	if t := d.transition(j); t != nil {
		return t.Restart
	}
	return false
}
