//go:build windows

package cds

import (
	"golang.org/x/sys/windows"
)

// DefaultLibraryName is the file name searched when no path is configured.
const DefaultLibraryName = "libcdshow.dll"

func loadLibrary(path string) (uintptr, error) {
	h, err := windows.LoadLibraryEx(path, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		return 0, err
	}
	return uintptr(h), nil
}

func freeLibrary(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}
