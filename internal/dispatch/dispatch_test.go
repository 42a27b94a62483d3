package dispatch

import (
	"context"
	"testing"

	"github.com/hostagent/hostagent/internal/protocol"
)

func TestDispatchUnknownMethod(t *testing.T) {
	d := New()
	resp := d.Dispatch(context.Background(), &protocol.Request{ID: float64(1), Method: "no.such.method"})
	if resp.Error == nil || resp.Error.Code != protocol.CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
	if resp.ID != float64(1) {
		t.Fatalf("expected id to be preserved, got %v", resp.ID)
	}
}

func TestDispatchHandlerPanicBecomesInternalError(t *testing.T) {
	d := New()
	d.Register("boom", func(ctx context.Context, params map[string]any) (any, *protocol.Error) {
		panic("kaboom")
	})

	resp := d.Dispatch(context.Background(), &protocol.Request{ID: "x", Method: "boom"})
	if resp.Error == nil || resp.Error.Code != protocol.CodeInternalError {
		t.Fatalf("expected CodeInternalError, got %+v", resp.Error)
	}
}

func TestDispatchSuccess(t *testing.T) {
	d := New()
	d.Register("echo", func(ctx context.Context, params map[string]any) (any, *protocol.Error) {
		return params["value"], nil
	})

	resp := d.Dispatch(context.Background(), &protocol.Request{ID: float64(7), Method: "echo", Params: map[string]any{"value": "hi"}})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Result != "hi" {
		t.Fatalf("expected result %q, got %v", "hi", resp.Result)
	}
}

func TestRegisterBatchPanics(t *testing.T) {
	d := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected Register(\"batch\", ...) to panic")
		}
	}()
	d.Register("batch", func(ctx context.Context, params map[string]any) (any, *protocol.Error) { return nil, nil })
}

func TestBatchFansOutAndPreservesOrder(t *testing.T) {
	d := New()
	d.Register("double", func(ctx context.Context, params map[string]any) (any, *protocol.Error) {
		n, _ := params["n"].(int)
		return n * 2, nil
	})
	d.Register("fail", func(ctx context.Context, params map[string]any) (any, *protocol.Error) {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "nope")
	})

	req := &protocol.Request{
		ID:     float64(1),
		Method: "batch",
		Params: map[string]any{
			"requests": []any{
				map[string]any{"method": "double", "params": map[string]any{"n": 1}},
				map[string]any{"method": "fail"},
				map[string]any{"method": "double", "params": map[string]any{"n": 3}},
			},
		},
	}

	resp := d.Dispatch(context.Background(), req)
	if resp.Error != nil {
		t.Fatalf("unexpected top-level error: %+v", resp.Error)
	}
	out, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", resp.Result)
	}
	results, ok := out["results"].([]batchResultEntry)
	if !ok {
		t.Fatalf("expected []batchResultEntry, got %T", out["results"])
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Result != 2 {
		t.Fatalf("entry 0: expected 2, got %v", results[0].Result)
	}
	if results[1].Error == nil || results[1].Error.Code != protocol.CodeInvalidParams {
		t.Fatalf("entry 1: expected invalid params error, got %+v", results[1])
	}
	if results[2].Result != 6 {
		t.Fatalf("entry 2: expected 6, got %v", results[2].Result)
	}
}

func TestBatchSubRequestNamedBatchDoesNotRecurse(t *testing.T) {
	d := New()
	req := &protocol.Request{
		ID:     float64(1),
		Method: "batch",
		Params: map[string]any{
			"requests": []any{
				map[string]any{"method": "batch", "params": map[string]any{}},
			},
		},
	}

	resp := d.Dispatch(context.Background(), req)
	out := resp.Result.(map[string]any)
	results := out["results"].([]batchResultEntry)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil || results[0].Error.Code != protocol.CodeMethodNotFound {
		t.Fatalf("expected nested \"batch\" to be method-not-found, got %+v", results[0])
	}
}
