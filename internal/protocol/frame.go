package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize is the largest payload the codec will accept or emit, per the
// wire protocol. Frames whose declared length exceeds this are drained and
// discarded rather than rejected with an error, since the client hasn't
// supplied an id we could correlate an error response with.
const MaxFrameSize = 100 * 1024 * 1024

// lengthPrefixSize is the width of the frame's length header.
const lengthPrefixSize = 4

// ErrFrameTooLarge is returned internally by ReadFrame when a frame's
// declared length exceeds MaxFrameSize. The caller is expected to treat this
// as "no frame was produced" and continue reading, not as a fatal error.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size and was discarded")

// ReadFrame reads exactly one length-prefixed frame from r. If the declared
// length exceeds MaxFrameSize, the frame's body is drained from r and
// ErrFrameTooLarge is returned so the caller can continue the read loop. Any
// other error (including io.EOF) terminates the loop and should be treated
// as connection shutdown.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])

	if uint64(size) > MaxFrameSize {
		if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
			return nil, errors.Wrap(err, "unable to drain oversize frame")
		}
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "unable to read frame payload")
	}
	return payload, nil
}

// EncodeFrame serializes value with msgpack and prepends the 4-byte
// big-endian length prefix, returning the full frame ready to write.
func EncodeFrame(value any) ([]byte, error) {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode payload")
	}
	if len(payload) > MaxFrameSize {
		return nil, errors.New("encoded payload exceeds maximum frame size")
	}

	frame := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:lengthPrefixSize], uint32(len(payload)))
	copy(frame[lengthPrefixSize:], payload)
	return frame, nil
}

// DecodeRequest decodes a frame payload into a Request envelope. A payload
// that fails to decode at all returns an error with no usable id (the
// caller should respond with CodeParseError and a null id). A payload that
// decodes but carries the wrong version is still returned so the caller can
// respond with CodeInvalidRequest using the now-available id.
func DecodeRequest(payload []byte) (*Request, error) {
	var req Request
	if err := msgpack.Unmarshal(payload, &req); err != nil {
		return nil, errors.Wrap(err, "unable to decode request envelope")
	}
	return &req, nil
}
