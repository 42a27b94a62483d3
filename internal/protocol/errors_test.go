package protocol

import "testing"

func TestIOErrorWithErrnoCarriesStructuredData(t *testing.T) {
	err := IOErrorWithErrno("unable to open file", 13)
	if err.Code != CodeIOError {
		t.Fatalf("expected CodeIOError, got %d", err.Code)
	}
	if err.Data["os_errno"] != 13 {
		t.Fatalf("expected os_errno 13 in data, got %+v", err.Data)
	}
}

func TestNewErrorfFormatsMessage(t *testing.T) {
	err := NewErrorf(CodeInvalidParams, "missing %q", "path")
	if err.Message != `missing "path"` {
		t.Fatalf("unexpected message: %q", err.Message)
	}
	if err.Code != CodeInvalidParams {
		t.Fatalf("expected CodeInvalidParams, got %d", err.Code)
	}
}

func TestAsProtocolError(t *testing.T) {
	wrapped := NewError(CodeInternalError, "boom")
	if pe, ok := AsProtocolError(wrapped); !ok || pe != wrapped {
		t.Fatalf("expected to unwrap the same *Error, got %+v ok=%v", pe, ok)
	}
	if _, ok := AsProtocolError(nil); ok {
		t.Fatal("expected nil error to not unwrap")
	}
}

func TestErrorCodesAreFixed(t *testing.T) {
	cases := map[Code]int{
		CodeParseError:       -32700,
		CodeInvalidRequest:   -32600,
		CodeMethodNotFound:   -32601,
		CodeInvalidParams:    -32602,
		CodeInternalError:    -32603,
		CodeFileNotFound:     -32001,
		CodePermissionDenied: -32002,
		CodeIOError:          -32003,
		CodeProcessError:     -32004,
	}
	for code, want := range cases {
		if int(code) != want {
			t.Errorf("code %v: got %d, want %d", code, int(code), want)
		}
	}
}
