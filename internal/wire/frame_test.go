package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestBuilderFrameLayout(t *testing.T) {
	t.Parallel()

	token := []byte{0xa1, 0xb2, 0xc3}
	payload := []byte(`{"aps":{"alert":"Hello"}}`)

	b := NewBuilder()
	if err := b.AppendItem(ItemDeviceToken, token); err != nil {
		t.Fatalf("AppendItem(token) error = %v", err)
	}
	if err := b.AppendItem(ItemPayload, payload); err != nil {
		t.Fatalf("AppendItem(payload) error = %v", err)
	}

	frame := b.Bytes()

	wantLength := 3 + len(token) + 3 + len(payload)
	if b.Len() != wantLength {
		t.Fatalf("Len() = %d, want %d", b.Len(), wantLength)
	}
	if len(frame) != 5+wantLength {
		t.Fatalf("len(frame) = %d, want %d", len(frame), 5+wantLength)
	}
	if frame[0] != CommandNotification {
		t.Fatalf("command = %d, want %d", frame[0], CommandNotification)
	}
	if got := binary.BigEndian.Uint32(frame[1:5]); got != uint32(wantLength) {
		t.Fatalf("frame length = %d, want %d", got, wantLength)
	}

	want := []byte{2, 0, 0, 0, byte(wantLength), 1, 0, 3, 0xa1, 0xb2, 0xc3, 2, 0, byte(len(payload))}
	want = append(want, payload...)
	if !bytes.Equal(frame, want) {
		t.Fatalf("frame = %x, want %x", frame, want)
	}
}

func TestBuilderIdentifierItem(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	if err := b.AppendItem(ItemDeviceToken, []byte{0x01}); err != nil {
		t.Fatalf("AppendItem() error = %v", err)
	}
	b.AppendUint32(ItemIdentifier, 0xdeadbeef)

	frame := b.Bytes()
	tail := frame[len(frame)-7:]
	want := []byte{3, 0, 4, 0xde, 0xad, 0xbe, 0xef}
	if !bytes.Equal(tail, want) {
		t.Fatalf("identifier item = %x, want %x", tail, want)
	}
	if b.Len() != 4+7 {
		t.Fatalf("Len() = %d, want 11", b.Len())
	}
}

func TestBuilderRejectsOversizedItem(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	err := b.AppendItem(ItemPayload, make([]byte, MaxItemLength+1))
	if !errors.Is(err, ErrItemTooLarge) {
		t.Fatalf("AppendItem() error = %v, want ErrItemTooLarge", err)
	}
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after rejected item", b.Len())
	}

	if err := b.AppendItem(ItemPayload, make([]byte, MaxItemLength)); err != nil {
		t.Fatalf("AppendItem(max) error = %v", err)
	}
}

func TestBuilderBytesIsStable(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	if err := b.AppendItem(ItemPayload, []byte("{}")); err != nil {
		t.Fatalf("AppendItem() error = %v", err)
	}

	first := b.Bytes()
	first[0] = 0xff
	second := b.Bytes()
	if second[0] != CommandNotification {
		t.Fatal("Bytes() must return a fresh slice")
	}
}

func TestFrameLengthAcrossPayloadSizes(t *testing.T) {
	t.Parallel()

	token := bytes.Repeat([]byte{0xab}, 32)
	for _, size := range []int{0, 1, 255, 256, 2048, 4096, MaxItemLength} {
		b := NewBuilder()
		if err := b.AppendItem(ItemDeviceToken, token); err != nil {
			t.Fatalf("size %d: AppendItem(token) error = %v", size, err)
		}
		if err := b.AppendItem(ItemPayload, bytes.Repeat([]byte{'x'}, size)); err != nil {
			t.Fatalf("size %d: AppendItem(payload) error = %v", size, err)
		}

		frame := b.Bytes()
		got := binary.BigEndian.Uint32(frame[1:5])
		want := uint32(3 + len(token) + 3 + size)
		if got != want {
			t.Fatalf("size %d: frame length = %d, want %d", size, got, want)
		}
		if int(got) != len(frame)-5 {
			t.Fatalf("size %d: frame length %d does not match trailing bytes %d", size, got, len(frame)-5)
		}
	}
}

func TestReadFrameRoundTrip(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	if err := b.AppendItem(ItemDeviceToken, []byte{0xa1, 0xb2}); err != nil {
		t.Fatalf("AppendItem() error = %v", err)
	}
	if err := b.AppendItem(ItemPayload, []byte(`{"aps":{}}`)); err != nil {
		t.Fatalf("AppendItem() error = %v", err)
	}
	b.AppendUint32(ItemIdentifier, 42)

	frame, err := ReadFrame(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}

	if !bytes.Equal(frame.Token(), []byte{0xa1, 0xb2}) {
		t.Fatalf("Token() = %x, want a1b2", frame.Token())
	}
	if string(frame.Payload()) != `{"aps":{}}` {
		t.Fatalf("Payload() = %s", frame.Payload())
	}
	id, ok := frame.Identifier()
	if !ok || id != 42 {
		t.Fatalf("Identifier() = %d, %v, want 42, true", id, ok)
	}
}

func TestReadFrameErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{name: "unknown command", input: []byte{1, 0, 0, 0, 0}, wantErr: ErrUnknownCommand},
		{name: "body shorter than length", input: []byte{2, 0, 0, 0, 9, 1, 0}, wantErr: ErrTruncated},
		{name: "item longer than body", input: []byte{2, 0, 0, 0, 4, 1, 0, 5, 0xaa}, wantErr: ErrTruncated},
		{name: "partial item header", input: []byte{2, 0, 0, 0, 2, 1, 0}, wantErr: ErrTruncated},
		{name: "length header near 4 GiB", input: []byte{2, 0xff, 0xff, 0xff, 0xff}, wantErr: ErrFrameTooLarge},
		{name: "length one past the largest frame", input: lengthHeader(MaxFrameLength + 1), wantErr: ErrFrameTooLarge},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadFrame(bytes.NewReader(tc.input))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ReadFrame() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestReadFrameLargestFrame(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	if err := b.AppendItem(ItemDeviceToken, bytes.Repeat([]byte{0xaa}, MaxItemLength)); err != nil {
		t.Fatalf("AppendItem() error = %v", err)
	}
	if err := b.AppendItem(ItemPayload, bytes.Repeat([]byte{'x'}, MaxItemLength)); err != nil {
		t.Fatalf("AppendItem() error = %v", err)
	}
	b.AppendUint32(ItemIdentifier, 7)

	if got := b.Len(); got != MaxFrameLength {
		t.Fatalf("Len() = %d, want %d", got, MaxFrameLength)
	}

	frame, err := ReadFrame(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if frame.Length != MaxFrameLength {
		t.Fatalf("Length = %d, want %d", frame.Length, MaxFrameLength)
	}
}

func lengthHeader(length uint32) []byte {
	header := make([]byte, headerSize)
	header[0] = CommandNotification
	binary.BigEndian.PutUint32(header[1:], length)
	return header
}
