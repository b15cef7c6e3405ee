package msgctx

import (
	"bytes"

	"github.com/wippyai/nativeguard"
)

const (
	// Magic marks a live Message.
	Magic uint32 = 0xC001C0DE
	// MessageLen is the size of the native buffer.
	MessageLen = 1024
	// Greeting is written at the start of every new buffer.
	Greeting = "This is some super cool native memory"
)

// Message is the native resource behind a context.
type Message struct {
	Magic uint32
	block nativeguard.Block
}

// Bytes returns the whole native buffer. It aliases native memory and is only
// valid until the message is released.
func (m *Message) Bytes() []byte {
	return m.block.Data
}

// Text returns the NUL terminated string at the start of the buffer.
func (m *Message) Text() string {
	data := m.block.Data
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

// Len returns the buffer size.
func (m *Message) Len() int {
	return m.block.Len()
}
