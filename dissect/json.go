package dissect

import "encoding/json"

// MessageJSON is the export shape of one message.
type MessageJSON struct {
	Index        int               `json:"index"`
	Size         int               `json:"size"`
	Instructions []InstructionJSON `json:"instructions"`
}

// InstructionJSON tags an instruction with its opcode name for export.
type InstructionJSON struct {
	Type string      `json:"type"`
	Body Instruction `json:"-"`
}

// MarshalJSON inlines the instruction body next to its type tag.
func (ij InstructionJSON) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(ij.Body)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(ij.Type)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		// instructions without payload marshal as {}
		body = []byte("{}")
	}
	out := make([]byte, 0, len(body)+len(tag)+10)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:len(body)-1]...)
	}
	out = append(out, '}')
	return out, nil
}

// ExportJSON projects the whole demo into the export shape, materializing
// messages as needed.
func (d *Demo) ExportJSON() []MessageJSON {
	out := make([]MessageJSON, 0, d.MessageCount())
	for i := 0; i < d.MessageCount(); i++ {
		msg := d.Message(i)
		mj := MessageJSON{Index: i, Size: msg.Size()}
		for _, instr := range msg.Instructions() {
			mj.Instructions = append(mj.Instructions, InstructionJSON{
				Type: instr.Op().String(),
				Body: instr,
			})
		}
		out = append(out, mj)
	}
	return out
}
