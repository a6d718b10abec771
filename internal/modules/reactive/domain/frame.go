package domain

// FrameType mirrors the WebSocket data opcodes the runtime cares about.
type FrameType int

const (
	TextFrame   FrameType = 1
	BinaryFrame FrameType = 2
)

func (t FrameType) String() string {
	switch t {
	case TextFrame:
		return "text"
	case BinaryFrame:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is a single WebSocket data message.
type Frame struct {
	Type FrameType
	Data []byte
}

// Text builds a text frame carrying s verbatim.
func Text(s string) Frame {
	return Frame{Type: TextFrame, Data: []byte(s)}
}

// Binary builds a binary frame.
func Binary(b []byte) Frame {
	return Frame{Type: BinaryFrame, Data: b}
}

// PayloadText returns the frame payload decoded as UTF-8.
func (f Frame) PayloadText() string {
	return string(f.Data)
}

