package channel

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	payload := EncodeArgs([]string{"--open", "/tmp/file with spaces.txt"})
	in := Frame{
		Header:  Header{MessageID: 42, MessageType: MsgArgs},
		Payload: payload,
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Magic != Magic || out.Header.Version != Version {
		t.Fatalf("header identity mismatch: %+v", out.Header)
	}
	if out.Header.MessageID != 42 || out.Header.MessageType != MsgArgs {
		t.Fatalf("header mismatch: got=%+v", out.Header)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameBadMagic(t *testing.T) {
	h := Header{Magic: 0xDEADBEEF, Version: Version, HeaderLen: FixedHeaderLen}
	_, err := ReadFrame(bytes.NewReader(EncodeHeader(h)), DefaultLimits())
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestReadFrameBadVersion(t *testing.T) {
	h := Header{Magic: Magic, Version: Version + 1, HeaderLen: FixedHeaderLen}
	_, err := ReadFrame(bytes.NewReader(EncodeHeader(h)), DefaultLimits())
	if !errors.Is(err, ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
}

func TestReadFrameHeaderLenTooSmall(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, HeaderLen: 8}
	_, err := ReadFrame(bytes.NewReader(EncodeHeader(h)), DefaultLimits())
	if !errors.Is(err, ErrHeaderLenTooSmall) {
		t.Fatalf("expected ErrHeaderLenTooSmall, got %v", err)
	}
}

func TestReadFramePayloadTooLarge(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, HeaderLen: FixedHeaderLen, PayloadLen: 2 * 1024 * 1024}
	_, err := ReadFrame(bytes.NewReader(EncodeHeader(h)), DefaultLimits())
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestWriteFramePayloadTooLarge(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Header: Header{MessageType: MsgArgs}, Payload: make([]byte, 64)}
	err := WriteFrame(&buf, f, Limits{MaxPayloadBytes: 32})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReadFrameSkipsHeaderExtension(t *testing.T) {
	payload := EncodeArgs([]string{"x"})
	h := Header{
		Magic:       Magic,
		Version:     Version,
		HeaderLen:   FixedHeaderLen + 4,
		MessageID:   7,
		MessageType: MsgArgs,
		PayloadLen:  uint64(len(payload)),
	}
	raw := append(EncodeHeader(h), 0, 0, 0, 0)
	raw = append(raw, payload...)

	out, err := ReadFrame(bytes.NewReader(raw), DefaultLimits())
	if err != nil {
		t.Fatalf("read frame with extension: %v", err)
	}
	if out.Header.MessageID != 7 {
		t.Fatalf("unexpected message id: %d", out.Header.MessageID)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch after extension skip")
	}
}

func TestEmptyPayloadFrame(t *testing.T) {
	var buf bytes.Buffer
	in := Frame{Header: Header{MessageID: 1, MessageType: MsgAck, Flags: FlagIsResponse}}
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if len(out.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(out.Payload))
	}
	if out.Header.Flags&FlagIsResponse == 0 {
		t.Fatalf("response flag lost")
	}
}
