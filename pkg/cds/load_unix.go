//go:build darwin || linux || freebsd

package cds

import (
	"runtime"

	"github.com/ebitengine/purego"
)

// DefaultLibraryName is the file name searched when no path is configured.
var DefaultLibraryName = func() string {
	if runtime.GOOS == "darwin" {
		return "libcdshow.dylib"
	}
	return "libcdshow.so"
}()

func loadLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func freeLibrary(handle uintptr) error {
	return purego.Dlclose(handle)
}
