//go:build linux

// Package v4l2 enumerates Video4Linux2 capture nodes and their modes with
// raw ioctls, without cgo. Streaming itself is left to
// github.com/blackjack/webcam.
//
//	devices, _ := v4l2.FindDevices()
//	for _, d := range devices {
//		modes, _ := v4l2.Modes(d.DevicePath, v4l2.PixFmtMJPEG, v4l2.PixFmtYUYV)
//		for _, m := range modes {
//			fmt.Printf("%s %dx%d@%d %s\n", d.DeviceName, m.Width, m.Height, m.MaxFPS, m.FormatName())
//		}
//	}
//
// Modes lists each resolution once per pixel format at its best frame
// rate, sorted by width, height, rate and format name.
package v4l2
