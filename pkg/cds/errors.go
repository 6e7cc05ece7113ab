package cds

import "fmt"

// Error is a libcdshow result code (cds_result_t). Values are comparable, so
// errors.Is(err, cds.ErrNotStarted) works on wrapped results.
type Error int32

// Result codes defined by libcdshow.h.
const (
	ErrDeviceNotFound Error = -1
	ErrFormatNotFound Error = -2
	ErrOpeningDevice  Error = -3
	ErrAlreadyStarted Error = -4
	ErrNotStarted     Error = -5
	ErrNotInitialized Error = -6
	ErrReadFrame      Error = -8
	ErrBufNull        Error = -10
	ErrBufTooSmall    Error = -11
	ErrUnknown        Error = -512
)

// OK is the success result code.
const OK int32 = 0

var errorText = map[Error]string{
	ErrDeviceNotFound: "device not found",
	ErrFormatNotFound: "format not found",
	ErrOpeningDevice:  "error opening device",
	ErrAlreadyStarted: "capture already started",
	ErrNotStarted:     "capture not started",
	ErrNotInitialized: "capture api not initialized",
	ErrReadFrame:      "error reading frame",
	ErrBufNull:        "frame buffer is null",
	ErrBufTooSmall:    "frame buffer too small",
	ErrUnknown:        "unknown error",
}

func (e Error) Error() string {
	if text, ok := errorText[e]; ok {
		return fmt.Sprintf("cds: %s (%d)", text, int32(e))
	}
	return fmt.Sprintf("cds: result %d", int32(e))
}

// Code returns the raw result code.
func (e Error) Code() int32 {
	return int32(e)
}

// Result converts a cds_result_t into an error. OK maps to nil.
func Result(rc int32) error {
	if rc == OK {
		return nil
	}
	return Error(rc)
}
