// Package wire encodes and decodes the APNs binary notification frame
// (command 2).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// CommandNotification is the command byte of a framed notification.
const CommandNotification uint8 = 2

// ItemID identifies a frame item.
type ItemID uint8

const (
	ItemDeviceToken ItemID = 1
	ItemPayload     ItemID = 2
	ItemIdentifier  ItemID = 3
)

const (
	headerSize     = 1 + 4
	itemHeaderSize = 1 + 2

	// MaxItemLength is the largest item data length expressible in the
	// 16-bit item length field.
	MaxItemLength = math.MaxUint16

	// MaxFrameLength bounds the body of a frame holding a token, a payload
	// and an identifier.
	MaxFrameLength = 2*(itemHeaderSize+MaxItemLength) + itemHeaderSize + 4
)

var (
	ErrItemTooLarge   = errors.New("frame item exceeds 65535 bytes")
	ErrUnknownCommand = errors.New("unknown frame command")
	ErrTruncated      = errors.New("truncated frame")
	ErrFrameTooLarge  = errors.New("frame length exceeds limit")
)

// FrameOptions controls the optional parts of an encoded frame.
type FrameOptions struct {
	// IncludeIdentifier appends item 3 carrying Identifier.
	IncludeIdentifier bool
	Identifier        uint32
}

// Builder appends typed items and produces a complete frame.
type Builder struct {
	items []byte
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AppendItem appends one item: id, big-endian data length, data.
func (b *Builder) AppendItem(id ItemID, data []byte) error {
	if len(data) > MaxItemLength {
		return fmt.Errorf("%w: item %d has %d bytes", ErrItemTooLarge, id, len(data))
	}

	b.items = append(b.items, byte(id))
	b.items = binary.BigEndian.AppendUint16(b.items, uint16(len(data)))
	b.items = append(b.items, data...)
	return nil
}

func (b *Builder) AppendUint32(id ItemID, v uint32) {
	var data [4]byte
	binary.BigEndian.PutUint32(data[:], v)
	// 4 bytes always fit.
	_ = b.AppendItem(id, data[:])
}

// Len returns the frame length field value, i.e. the size of all items.
func (b *Builder) Len() int {
	return len(b.items)
}

// Bytes returns a new slice holding the command byte, frame length and items.
func (b *Builder) Bytes() []byte {
	frame := make([]byte, 0, headerSize+len(b.items))
	frame = append(frame, CommandNotification)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(b.items)))
	return append(frame, b.items...)
}

// Item is one decoded frame item.
type Item struct {
	ID   ItemID
	Data []byte
}

// Frame is a decoded notification frame.
type Frame struct {
	Command uint8
	Length  uint32
	Items   []Item
}

func (f *Frame) item(id ItemID) ([]byte, bool) {
	for _, item := range f.Items {
		if item.ID == id {
			return item.Data, true
		}
	}
	return nil, false
}

func (f *Frame) Token() []byte {
	data, _ := f.item(ItemDeviceToken)
	return data
}

func (f *Frame) Payload() []byte {
	data, _ := f.item(ItemPayload)
	return data
}

// Identifier returns item 3 when present.
func (f *Frame) Identifier() (uint32, bool) {
	data, ok := f.item(ItemIdentifier)
	if !ok || len(data) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(data), true
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if header[0] != CommandNotification {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, header[0])
	}

	frame := &Frame{
		Command: header[0],
		Length:  binary.BigEndian.Uint32(header[1:]),
	}

	if frame.Length > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, frame.Length)
	}

	body := make([]byte, frame.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	for len(body) > 0 {
		if len(body) < itemHeaderSize {
			return nil, fmt.Errorf("%w: item header", ErrTruncated)
		}
		id := ItemID(body[0])
		size := int(binary.BigEndian.Uint16(body[1:3]))
		body = body[itemHeaderSize:]
		if len(body) < size {
			return nil, fmt.Errorf("%w: item %d wants %d bytes, %d left", ErrTruncated, id, size, len(body))
		}
		frame.Items = append(frame.Items, Item{ID: id, Data: body[:size:size]})
		body = body[size:]
	}

	return frame, nil
}
