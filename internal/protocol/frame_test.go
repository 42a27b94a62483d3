package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	req := &Request{Version: ProtocolVersion, ID: float64(1), Method: "file.read", Params: map[string]any{"path": "/tmp/x"}}

	frame, err := EncodeFrame(req)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	declared := binary.BigEndian.Uint32(frame[:lengthPrefixSize])
	if int(declared) != len(frame)-lengthPrefixSize {
		t.Fatalf("declared length %d does not match payload length %d", declared, len(frame)-lengthPrefixSize)
	}

	payload, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	got, err := DecodeRequest(payload)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.Version != req.Version || got.Method != req.Method {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, req)
	}
	if got.Params["path"] != "/tmp/x" {
		t.Fatalf("params not preserved: %+v", got.Params)
	}
}

func TestReadFrameOversizeIsDrainedAndSignaled(t *testing.T) {
	size := uint32(MaxFrameSize + 1)
	var header [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(header[:], size)

	body := bytes.Repeat([]byte{0x01}, int(size))
	trailer := []byte("next-frame-marker")

	var buf bytes.Buffer
	buf.Write(header[:])
	buf.Write(body)
	buf.Write(trailer)

	_, err := ReadFrame(&buf)
	if err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}

	remaining, err := io.ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(remaining, trailer) {
		t.Fatalf("expected oversize body fully drained, remaining=%q", remaining)
	}
}

func TestReadFrameEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("expected io.EOF on empty reader, got %v", err)
	}
}

func TestDecodeRequestInvalidPayload(t *testing.T) {
	if _, err := DecodeRequest([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected decode error for garbage payload")
	}
}
