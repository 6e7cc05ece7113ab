//go:build linux && arm && !arm64

package input

import "encoding/binary"

// eventSize is sizeof(struct input_event) with an 8 byte timeval.
const eventSize = 16

func decodeEvent(b []byte) rawEvent {
	return rawEvent{
		sec:   int64(int32(binary.LittleEndian.Uint32(b[0:4]))),
		usec:  int64(int32(binary.LittleEndian.Uint32(b[4:8]))),
		typ:   binary.LittleEndian.Uint16(b[8:10]),
		code:  binary.LittleEndian.Uint16(b[10:12]),
		value: int32(binary.LittleEndian.Uint32(b[12:16])),
	}
}
