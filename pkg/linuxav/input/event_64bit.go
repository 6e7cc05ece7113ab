//go:build linux && (amd64 || arm64)

package input

import "encoding/binary"

// eventSize is sizeof(struct input_event) with a 16 byte timeval.
const eventSize = 24

func decodeEvent(b []byte) rawEvent {
	return rawEvent{
		sec:   int64(binary.LittleEndian.Uint64(b[0:8])),
		usec:  int64(binary.LittleEndian.Uint64(b[8:16])),
		typ:   binary.LittleEndian.Uint16(b[16:18]),
		code:  binary.LittleEndian.Uint16(b[18:20]),
		value: int32(binary.LittleEndian.Uint32(b[20:24])),
	}
}
