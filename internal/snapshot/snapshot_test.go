package snapshot

import (
	"bytes"
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// solidFrame builds a BGRX frame filled with one colour, with padding bytes
// at the end of every row.
func solidFrame(w, h, pad int, r, g, b byte) Frame {
	stride := w*4 + pad
	pix := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*stride + x*4
			pix[o+0] = b
			pix[o+1] = g
			pix[o+2] = r
			pix[o+3] = 0
		}
		for p := 0; p < pad; p++ {
			pix[y*stride+w*4+p] = 0xAA
		}
	}
	return Frame{Pix: pix, Width: w, Height: h, Stride: stride}
}

func TestToImage(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantErr bool
	}{
		{"tight stride", solidFrame(4, 3, 0, 10, 20, 30), false},
		{"padded stride", solidFrame(4, 3, 8, 10, 20, 30), false},
		{"zero stride means tight", Frame{Pix: make([]byte, 4*3*4), Width: 4, Height: 3}, false},
		{"short buffer", Frame{Pix: make([]byte, 10), Width: 4, Height: 3, Stride: 16}, true},
		{"stride too small", Frame{Pix: make([]byte, 100), Width: 4, Height: 3, Stride: 8}, true},
		{"empty size", Frame{Width: 0, Height: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ToImage(tt.frame)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ToImage() error = %v", err)
			}
			if img.Bounds().Dx() != tt.frame.Width || img.Bounds().Dy() != tt.frame.Height {
				t.Errorf("size = %v", img.Bounds())
			}
		})
	}
}

func TestToImageChannelOrder(t *testing.T) {
	f := solidFrame(2, 2, 4, 200, 100, 50)

	img, err := ToImage(f)
	if err != nil {
		t.Fatal(err)
	}

	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			c := img.NRGBAAt(x, y)
			if c.R != 200 || c.G != 100 || c.B != 50 || c.A != 255 {
				t.Errorf("pixel (%d,%d) = %+v, want R200 G100 B50 A255", x, y, c)
			}
		}
	}
}

func TestToImageLastRowWithoutPadding(t *testing.T) {
	f := solidFrame(2, 2, 4, 1, 2, 3)
	// Drop the padding after the final row.
	f.Pix = f.Pix[:len(f.Pix)-4]

	if _, err := ToImage(f); err != nil {
		t.Fatalf("ToImage() error = %v", err)
	}
}

func TestTransform(t *testing.T) {
	img, _ := ToImage(solidFrame(40, 20, 0, 1, 2, 3))

	tests := []struct {
		name         string
		transform    Transform
		wantW, wantH int
	}{
		{"none", Transform{}, 40, 20},
		{"rotate 90", Transform{Rotate: 90}, 20, 40},
		{"rotate 180", Transform{Rotate: 180}, 40, 20},
		{"rotate 270 and flip", Transform{Rotate: 270, FlipH: true}, 20, 40},
		{"fit width", Transform{MaxWidth: 20}, 20, 10},
		{"fit height", Transform{MaxHeight: 10}, 20, 10},
		{"no upscale", Transform{MaxWidth: 400, MaxHeight: 400}, 40, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.transform.Apply(img)
			b := out.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr string
	}{
		{"defaults", func(*Settings) {}, ""},
		{"quality zero", func(s *Settings) { s.Quality = 0 }, "quality"},
		{"quality too high", func(s *Settings) { s.Quality = 101 }, "quality"},
		{"no verb", func(s *Settings) { s.Pattern = "frame.jpg" }, "integer verb"},
		{"two verbs", func(s *Settings) { s.Pattern = "f_%d_%d.jpg" }, "integer verb"},
		{"png", func(s *Settings) { s.Pattern = "frame_%05d.png" }, ".jpg"},
		{"separator", func(s *Settings) { s.Pattern = "sub/frame_%d.jpg" }, "separator"},
		{"jpeg extension", func(s *Settings) { s.Pattern = "shot-%d.jpeg" }, ""},
		{"bad rotation", func(s *Settings) { s.Transform.Rotate = 45 }, "rotate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriterNumbering(t *testing.T) {
	dir := t.TempDir()
	s := DefaultSettings()
	s.Dir = dir

	w, err := NewWriter(s)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	frame := solidFrame(16, 8, 0, 255, 0, 0)
	for i := 0; i < 3; i++ {
		res, err := w.Save(frame)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if res.Sequence != i {
			t.Errorf("Sequence = %d, want %d", res.Sequence, i)
		}
	}

	for _, name := range []string{"frame_00000.jpg", "frame_00001.jpg", "frame_00002.jpg"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s is not a jpeg: %v", name, err)
		}
		if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
			t.Errorf("%s size = %v", name, img.Bounds())
		}
	}

	if w.Next() != 3 {
		t.Errorf("Next() = %d, want 3", w.Next())
	}
}

func TestWriterFailedSaveKeepsCounter(t *testing.T) {
	s := DefaultSettings()
	s.Dir = t.TempDir()

	w, err := NewWriter(s)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := w.Save(Frame{Pix: make([]byte, 8), Width: 16, Height: 8}); err == nil {
		t.Fatal("expected error for short frame")
	}
	if w.Next() != 0 {
		t.Errorf("Next() = %d after failed save, want 0", w.Next())
	}

	res, err := w.Save(solidFrame(4, 4, 0, 0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if res.Sequence != 0 {
		t.Errorf("Sequence = %d, want 0", res.Sequence)
	}
}

func TestWriterOverwriteModes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_00000.jpg", "frame_00007.jpg", "frame_00003.jpg.bak", "other_00050.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s := DefaultSettings()
	s.Dir = dir

	w, err := NewWriter(s)
	if err != nil {
		t.Fatal(err)
	}
	if w.Next() != 0 {
		t.Errorf("overwrite Next() = %d, want 0", w.Next())
	}

	s.Overwrite = false
	w, err = NewWriter(s)
	if err != nil {
		t.Fatal(err)
	}
	if w.Next() != 8 {
		t.Errorf("continue Next() = %d, want 8", w.Next())
	}
}

func TestWriterUpdate(t *testing.T) {
	s := DefaultSettings()
	s.Dir = t.TempDir()

	w, err := NewWriter(s)
	if err != nil {
		t.Fatal(err)
	}
	frame := solidFrame(8, 8, 0, 1, 1, 1)
	_, _ = w.Save(frame)
	_, _ = w.Save(frame)

	// Quality change keeps numbering.
	s.Quality = 50
	if err := w.Update(s); err != nil {
		t.Fatal(err)
	}
	if w.Next() != 2 {
		t.Errorf("Next() after quality change = %d, want 2", w.Next())
	}
	if w.Settings().Quality != 50 {
		t.Errorf("Quality = %d, want 50", w.Settings().Quality)
	}

	// New directory restarts numbering.
	s.Dir = filepath.Join(t.TempDir(), "nested", "out")
	if err := w.Update(s); err != nil {
		t.Fatal(err)
	}
	if w.Next() != 0 {
		t.Errorf("Next() after move = %d, want 0", w.Next())
	}
	if _, err := os.Stat(s.Dir); err != nil {
		t.Errorf("output dir not created: %v", err)
	}

	// Invalid settings are rejected and the old ones kept.
	bad := s
	bad.Quality = 0
	if err := w.Update(bad); err == nil {
		t.Error("expected error for invalid update")
	}
	if w.Settings().Quality != 50 {
		t.Errorf("settings changed after rejected update")
	}
}

func TestWriterLatest(t *testing.T) {
	s := DefaultSettings()
	s.Dir = t.TempDir()

	w, err := NewWriter(s)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := w.Latest(); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Latest() error = %v, want ErrNoSnapshot", err)
	}

	saved, err := w.Save(solidFrame(8, 4, 0, 9, 9, 9))
	if err != nil {
		t.Fatal(err)
	}

	res, data, err := w.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != saved.Path {
		t.Errorf("Latest path = %q, want %q", res.Path, saved.Path)
	}
	if len(data) != saved.Bytes {
		t.Errorf("Latest bytes = %d, want %d", len(data), saved.Bytes)
	}
	onDisk, _ := os.ReadFile(saved.Path)
	if !bytes.Equal(onDisk, data) {
		t.Error("cached jpeg differs from file on disk")
	}
}

func TestWriterReplacesFilesInPlace(t *testing.T) {
	dir := t.TempDir()
	s := DefaultSettings()
	s.Dir = dir

	for range 2 {
		w, err := NewWriter(s)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Save(solidFrame(8, 8, 0, 0, 255, 0)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "frame_00000.jpg" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only frame_00000.jpg", names)
	}
	if info, err := entries[0].Info(); err == nil && info.Size() == 0 {
		t.Error("replaced snapshot is empty")
	}
}
