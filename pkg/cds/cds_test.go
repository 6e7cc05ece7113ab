package cds

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"
)

func TestResult(t *testing.T) {
	tests := []struct {
		rc      int32
		want    error
		wantMsg string
	}{
		{0, nil, ""},
		{-1, ErrDeviceNotFound, "device not found"},
		{-5, ErrNotStarted, "capture not started"},
		{-11, ErrBufTooSmall, "frame buffer too small"},
		{-512, ErrUnknown, "unknown error"},
		{-77, Error(-77), "result -77"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.rc), func(t *testing.T) {
			err := Result(tt.rc)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Result(%d) = %v, want nil", tt.rc, err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Result(%d) = %v, want %v", tt.rc, err, tt.want)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	err := fmt.Errorf("grab: %w", Result(-8))

	var cdsErr Error
	if !errors.As(err, &cdsErr) {
		t.Fatal("errors.As failed on wrapped result")
	}
	if cdsErr.Code() != -8 {
		t.Errorf("Code() = %d, want -8", cdsErr.Code())
	}
	if !errors.Is(err, ErrReadFrame) {
		t.Error("errors.Is(err, ErrReadFrame) = false")
	}
}

// fakeGetter mimics the library's string getters: copy at most n-1 bytes,
// null terminate, return the copied length.
func fakeGetter(value string, calls *int) func(*byte, uintptr) uintptr {
	return func(buf *byte, n uintptr) uintptr {
		*calls++
		dst := unsafe.Slice(buf, n)
		c := copy(dst[:n-1], value)
		dst[c] = 0
		return uintptr(c)
	}
}

func TestReadString(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		size      int
		wantCalls int
	}{
		{"short", "USB Camera", 16, 1},
		{"empty", "", 16, 1},
		{"exact fit needs retry", strings.Repeat("a", 15), 16, 2},
		{"long", strings.Repeat("x", 100), 16, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got := readString(tt.size, fakeGetter(tt.value, &calls))
			if got != tt.value {
				t.Errorf("readString() = %q, want %q", got, tt.value)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestCstr(t *testing.T) {
	if got := cstr([]byte("abc\x00def")); got != "abc" {
		t.Errorf("cstr() = %q, want abc", got)
	}
	if got := cstr([]byte("abc")); got != "abc" {
		t.Errorf("cstr() = %q, want abc", got)
	}
}

func TestOpenMissingLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", DefaultLibraryName)

	lib, err := Open(path)
	if err == nil {
		lib.Close()
		t.Fatal("Open() expected error for missing library")
	}
	if !strings.Contains(err.Error(), "does-not-exist") {
		t.Errorf("error %q does not name the path", err)
	}
}

func TestBindMissingSymbol(t *testing.T) {
	var fn func() int32
	// A zero handle never resolves cds_ symbols; bind must not panic.
	if err := bind(0, &fn, "cds_no_such_export"); err == nil {
		t.Skip("platform resolved symbol from the global namespace")
	}
}
