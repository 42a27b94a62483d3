package envmerge

import (
	"sort"
	"testing"
)

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestMergeNoOverridesReturnsBaseUnchanged(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root"}
	got := Merge(base, nil)
	if len(got) != len(base) {
		t.Fatalf("expected base returned unchanged, got %v", got)
	}
}

func TestMergeOverridesExistingKey(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root"}
	got := Merge(base, map[string]string{"PATH": "/usr/bin"})

	want := []string{"HOME=/root", "PATH=/usr/bin"}
	if gotSorted := sortedCopy(got); !equal(gotSorted, want) {
		t.Fatalf("got %v, want %v", gotSorted, want)
	}
}

func TestMergeAddsNewKey(t *testing.T) {
	base := []string{"PATH=/bin"}
	got := Merge(base, map[string]string{"FOO": "bar"})

	want := []string{"FOO=bar", "PATH=/bin"}
	if gotSorted := sortedCopy(got); !equal(gotSorted, want) {
		t.Fatalf("got %v, want %v", gotSorted, want)
	}
}

func TestMergeWithNilBaseMeansClearedEnvironment(t *testing.T) {
	got := Merge(nil, map[string]string{"ONLY": "var"})
	if len(got) != 1 || got[0] != "ONLY=var" {
		t.Fatalf("expected single override entry, got %v", got)
	}
}

func TestMergeHandlesValueContainingEquals(t *testing.T) {
	base := []string{"KEY=a=b=c"}
	got := Merge(base, map[string]string{"OTHER": "x"})
	want := []string{"KEY=a=b=c", "OTHER=x"}
	if gotSorted := sortedCopy(got); !equal(gotSorted, want) {
		t.Fatalf("got %v, want %v", gotSorted, want)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
