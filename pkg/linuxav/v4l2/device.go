//go:build linux

package v4l2

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unsafe"
)

// Filesystem roots, replaced in tests.
var (
	sysClassVideo = "/sys/class/video4linux"
	devV4LByID    = "/dev/v4l/by-id"
)

// FindDevices returns every node that can stream video frames, in node
// order (video0, video1, ...). Metadata and output nodes are skipped. A
// system without video4linux yields an empty list.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysClassVideo)
	if errors.Is(err, fs.ErrNotExist) {
		return []DeviceInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sysClassVideo, err)
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return nodeNumber(a.Name()) - nodeNumber(b.Name())
	})

	byID := stableLinks()
	devices := []DeviceInfo{}
	for _, entry := range entries {
		node := entry.Name()
		info, ok := probe(node)
		if !ok {
			continue
		}
		index := readSysfsInt(filepath.Join(info.SysfsPath, "index"))
		info.DeviceID = stableID(byID[node], index)
		if info.DeviceID == "" {
			info.DeviceID = syntheticID(info.BusInfo, index)
		}
		info.VendorID, info.ProductID = readUSBIDs(info.SysfsPath)
		devices = append(devices, info)
	}
	return devices, nil
}

// probe queries a node and reports whether it is a streaming capture node.
func probe(node string) (DeviceInfo, bool) {
	path := "/dev/" + node
	c, err := queryCapability(path)
	if err != nil {
		slog.Debug("v4l2: querycap failed", "path", path, "error", err)
		return DeviceInfo{}, false
	}
	caps := c.capabilities
	if caps&v4l2CapDeviceCaps != 0 {
		caps = c.deviceCaps
	}
	if caps&v4l2CapVideoCapture == 0 || caps&v4l2CapStreaming == 0 {
		return DeviceInfo{}, false
	}
	return DeviceInfo{
		DevicePath: path,
		DeviceName: cstr(c.card[:]),
		BusInfo:    cstr(c.busInfo[:]),
		Driver:     cstr(c.driver[:]),
		SysfsPath:  filepath.Join(sysClassVideo, node),
	}, true
}

// nodeNumber extracts N from "videoN" so video10 sorts after video9.
func nodeNumber(node string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(node, "video"))
	if err != nil {
		return 1 << 30
	}
	return n
}

// stableLinks maps node names to the udev by-id links pointing at them.
func stableLinks() map[string][]string {
	links := map[string][]string{}
	entries, err := os.ReadDir(devV4LByID)
	if err != nil {
		return links
	}
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(devV4LByID, e.Name()))
		if err != nil {
			continue
		}
		node := filepath.Base(target)
		links[node] = append(links[node], e.Name())
	}
	return links
}

// stableID picks the by-id link for the node's index. udev names them
// "<bus>-<serial>-video-index<N>".
func stableID(links []string, index int) string {
	suffix := "-video-index" + strconv.Itoa(index)
	for _, l := range links {
		if strings.HasSuffix(l, suffix) {
			return l
		}
	}
	return ""
}

// syntheticID builds an id in the udev style for nodes without a link.
func syntheticID(busInfo string, index int) string {
	if !strings.HasPrefix(busInfo, "usb-") {
		busInfo = "platform-" + busInfo
	}
	return fmt.Sprintf("%s-video-index%d", busInfo, index)
}

// readUSBIDs returns idVendor and idProduct of the USB device behind a
// video node, or zeros. The node's device link is the USB interface; the
// ids sit on its parent.
func readUSBIDs(sysfsPath string) (vid, pid int) {
	iface, err := filepath.EvalSymlinks(filepath.Join(sysfsPath, "device"))
	if err != nil {
		return 0, 0
	}
	dev := filepath.Dir(iface)
	return readSysfsNumber(filepath.Join(dev, "idVendor"), 16), readSysfsNumber(filepath.Join(dev, "idProduct"), 16)
}

func readSysfsInt(path string) int {
	return readSysfsNumber(path, 10)
}

func readSysfsNumber(path string, base int) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), base, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

func cstr(b []byte) string {
	s, _, _ := bytes.Cut(b, []byte{0})
	return string(s)
}

func queryCapability(devicePath string) (*v4l2Capability, error) {
	fd, err := openDevice(devicePath)
	if err != nil {
		return nil, err
	}
	defer closeDevice(fd)

	c := &v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(c)); err != nil {
		return nil, err
	}
	return c, nil
}
