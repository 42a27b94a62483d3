package dispatch

import (
	"context"
	"sync"

	"github.com/hostagent/hostagent/internal/protocol"
)

// batchRequest is one element of the "requests" array in a batch call's
// params.
type batchRequest struct {
	Method string         `msgpack:"method"`
	Params map[string]any `msgpack:"params"`
}

// batchResultEntry is one element of a batch response's "results" array:
// exactly one of Result/Error is populated, mirroring the top-level
// response envelope but without version/id (batch sub-calls have neither).
type batchResultEntry struct {
	Result any            `msgpack:"result,omitempty"`
	Error  *batchErrorMsg `msgpack:"error,omitempty"`
}

// batchErrorMsg is the trimmed error shape used inside batch results: code
// and message only. The batch call itself returns a single envelope:
// { results: [ { result } | { error: { code, message } }, ... ] }.
type batchErrorMsg struct {
	Code    protocol.Code `msgpack:"code"`
	Message string        `msgpack:"message"`
}

// runBatch fans a batch call's sub-requests out to the inner routing table
// (invoke), never back through Dispatch, so a sub-request named "batch" is
// rejected as method-not-found rather than recursing.
func (d *Dispatcher) runBatch(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	raw, ok := params["requests"]
	if !ok {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "batch requires a \"requests\" array")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "batch \"requests\" must be an array")
	}

	requests := make([]batchRequest, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "batch request %d is not an object", i)
		}
		method, _ := entry["method"].(string)
		if method == "" {
			return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "batch request %d is missing \"method\"", i)
		}
		subParams, _ := entry["params"].(map[string]any)
		requests[i] = batchRequest{Method: method, Params: subParams}
	}

	results := make([]batchResultEntry, len(requests))
	var wg sync.WaitGroup
	wg.Add(len(requests))
	for i, sub := range requests {
		go func(i int, sub batchRequest) {
			defer wg.Done()
			result, perr := d.invoke(ctx, sub.Method, sub.Params)
			if perr != nil {
				results[i] = batchResultEntry{Error: &batchErrorMsg{Code: perr.Code, Message: perr.Message}}
				return
			}
			results[i] = batchResultEntry{Result: result}
		}(i, sub)
	}
	wg.Wait()

	return map[string]any{"results": results}, nil
}
