// Package dispatch implements the method-name router described in spec
// section 4.2: it parses no bytes itself (that's protocol's job) but takes a
// decoded request, looks up a handler by method name, runs it, and converts
// the result (or any error, or any panic) into a response envelope.
package dispatch

import (
	"context"
	"fmt"

	"github.com/hostagent/hostagent/internal/protocol"
)

// batchMethodName is reserved; it cannot be registered as an ordinary
// handler and is never looked up through the normal table for its own
// sub-requests, which prevents batch-inside-batch recursion.
const batchMethodName = "batch"

// Handler is the signature every registered method must satisfy. It
// receives the decoded params map (nil if the request supplied none) and
// returns either a result value or a structured protocol error, never both.
type Handler func(ctx context.Context, params map[string]any) (any, *protocol.Error)

// Dispatcher owns the method table and the concurrency needed to run
// handlers without blocking other in-flight requests.
type Dispatcher struct {
	methods map[string]Handler
}

// New creates an empty Dispatcher. Call Register for each method before
// serving requests.
func New() *Dispatcher {
	return &Dispatcher{methods: make(map[string]Handler)}
}

// Register adds a handler to the method table. Registering "batch" panics at
// startup, since batch fan-out is handled specially and never goes through
// the table.
func (d *Dispatcher) Register(method string, handler Handler) {
	if method == batchMethodName {
		panic("dispatch: \"batch\" is a reserved method name and cannot be registered")
	}
	d.methods[method] = handler
}

// Dispatch runs a single decoded request to completion and returns the
// response envelope to send back. It never returns an error itself: every
// failure mode (unknown method, bad params, handler panic) is converted into
// an error response carrying the request's id.
func (d *Dispatcher) Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	if req.Method == batchMethodName {
		result, perr := d.runBatch(ctx, req.Params)
		if perr != nil {
			return protocol.NewErrorResponse(req.ID, perr)
		}
		return protocol.NewResultResponse(req.ID, result)
	}

	result, perr := d.invoke(ctx, req.Method, req.Params)
	if perr != nil {
		return protocol.NewErrorResponse(req.ID, perr)
	}
	return protocol.NewResultResponse(req.ID, result)
}

// invoke looks up and runs a single method, recovering from any panic the
// handler raises so that a single bad request can never bring down the
// agent.
func (d *Dispatcher) invoke(ctx context.Context, method string, params map[string]any) (result any, perr *protocol.Error) {
	handler, ok := d.methods[method]
	if !ok {
		return nil, protocol.NewErrorf(protocol.CodeMethodNotFound, "method not found: %s", method)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			perr = protocol.NewErrorf(protocol.CodeInternalError, "internal error: %v", r)
		}
	}()

	result, perr = handler(ctx, params)
	return
}
