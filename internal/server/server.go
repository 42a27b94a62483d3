// Package server wires the frame codec, the dispatcher, and the shared
// output writer into the inbound read loop: read a frame, hand it off as
// an independently schedulable unit, let the handler run concurrently with
// everything else, and serialize its response back out through the one
// writer every other response and notification also shares.
package server

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/hostagent/hostagent/internal/contextutil"
	"github.com/hostagent/hostagent/internal/dispatch"
	"github.com/hostagent/hostagent/internal/protocol"
)

// Serve runs the inbound read loop against r, dispatching each frame
// through disp and writing responses through writer. It returns nil when r
// reaches EOF, the read error when reading r fails, and ctx.Err() when it
// finds ctx canceled; cancellation is checked only between frames, so a read
// already blocked on r returns only once the next frame or EOF arrives.
// Callers should treat any return as session termination, not as something
// to report to the client, since nothing is listening once the transport is
// gone.
func Serve(ctx context.Context, r io.Reader, writer *protocol.Writer, disp *dispatch.Dispatcher) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if contextutil.IsCancelled(ctx) {
			return ctx.Err()
		}

		payload, err := protocol.ReadFrame(r)
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				// Drained and ignored; no id is available to correlate an
				// error response with, so the session simply continues.
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		req, decodeErr := protocol.DecodeRequest(payload)
		if decodeErr != nil {
			// Unparseable payload: respond with a parse error carrying a
			// null id, since no id could be recovered.
			writeResponse(writer, protocol.NewErrorResponse(nil, protocol.NewError(protocol.CodeParseError, decodeErr.Error())))
			continue
		}
		if req.Version != protocol.ProtocolVersion {
			writeResponse(writer, protocol.NewErrorResponse(req.ID, protocol.NewErrorf(protocol.CodeInvalidRequest, "unsupported version: %q", req.Version)))
			continue
		}

		wg.Add(1)
		go func(req *protocol.Request) {
			defer wg.Done()
			resp := disp.Dispatch(ctx, req)
			writeResponse(writer, resp)
		}(req)
	}
}

// writeResponse swallows write errors at the call site: a failed write
// means the client has disconnected, which the read loop will discover on
// its own next iteration (EOF/read error), so there's nothing useful to do
// here beyond not crashing the dispatching goroutine.
func writeResponse(writer *protocol.Writer, resp *protocol.Response) {
	_ = writer.WriteResponse(resp)
}
