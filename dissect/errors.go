package dissect

import "errors"

// Decoding errors are surfaced at the message boundary: a message that fails
// to decode is reported failed and never retried. Callers classify with
// errors.Is against the sentinels below.
var (
	// ErrIo means the byte source read/write failed or was truncated.
	ErrIo = errors.New("dissect: i/o failure")

	// ErrOverflow means a write exceeded the message buffer capacity.
	ErrOverflow = errors.New("dissect: message buffer overflow")

	// ErrUnderflow means a read ran past the end of the message buffer.
	ErrUnderflow = errors.New("dissect: read past end of message")

	// ErrInvalidOpcode means an unknown or Bad opcode was encountered.
	ErrInvalidOpcode = errors.New("dissect: invalid opcode")

	// ErrInvalidField means a field index was out of range for the active
	// table while strict mode is on.
	ErrInvalidField = errors.New("dissect: unknown delta field")

	// ErrDeltaUnresolved means a delta snapshot references a baseline that
	// was evicted or never decoded.
	ErrDeltaUnresolved = errors.New("dissect: delta baseline unavailable")

	// ErrHuffmanStream means Huffman tree navigation reached a null node or
	// the node pool overflowed.
	ErrHuffmanStream = errors.New("dissect: corrupt huffman stream")

	// ErrStringTooLong means a string field exceeded its bounded maximum.
	ErrStringTooLong = errors.New("dissect: string exceeds maximum length")

	// ErrProtocolViolation means the stream encodes a structural
	// impossibility, e.g. an entity number >= MaxGEntities.
	ErrProtocolViolation = errors.New("dissect: protocol violation")
)
