package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// Defaults for the snapshot writer.
const (
	DefaultPattern = "frame_%05d.jpg"
	DefaultQuality = 90
)

// ErrNoSnapshot is returned by Latest before the first save.
var ErrNoSnapshot = errors.New("no snapshot saved yet")

// Settings configures where and how snapshots are written.
type Settings struct {
	Dir     string
	Pattern string // must contain one integer verb, e.g. frame_%05d.jpg
	Quality int    // JPEG quality 1..100
	// Overwrite restarts numbering at 0 and replaces existing files. When
	// false numbering continues after the highest existing file.
	Overwrite bool
	Transform Transform
}

// DefaultSettings writes frame_00000.jpg, frame_00001.jpg, ... in the
// working directory at quality 90, starting from 0.
func DefaultSettings() Settings {
	return Settings{
		Dir:       ".",
		Pattern:   DefaultPattern,
		Quality:   DefaultQuality,
		Overwrite: true,
	}
}

// Validate checks pattern, quality and transform.
func (s Settings) Validate() error {
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("jpeg quality must be 1..100, got %d", s.Quality)
	}
	if s.Pattern == "" {
		return errors.New("file pattern is empty")
	}
	if strings.ContainsAny(s.Pattern, `/\`) {
		return fmt.Errorf("file pattern %q must not contain a path separator", s.Pattern)
	}
	if fmt.Sprintf(s.Pattern, 1) == fmt.Sprintf(s.Pattern, 2) || strings.Contains(fmt.Sprintf(s.Pattern, 1), "%!") {
		return fmt.Errorf("file pattern %q needs exactly one integer verb", s.Pattern)
	}
	if f, err := imaging.FormatFromFilename(s.Pattern); err != nil || f != imaging.JPEG {
		return fmt.Errorf("file pattern %q must end in .jpg or .jpeg", s.Pattern)
	}
	return s.Transform.Validate()
}

// Result describes one saved snapshot.
type Result struct {
	Path     string        `json:"path" example:"frame_00000.jpg"`
	Sequence int           `json:"sequence" example:"0"`
	Width    int           `json:"width" example:"1920"`
	Height   int           `json:"height" example:"1080"`
	Bytes    int           `json:"bytes"`
	Took     time.Duration `json:"took_ns" doc:"Conversion and write time in nanoseconds"`
	SavedAt  time.Time     `json:"saved_at"`
}

// Writer saves frames as sequentially numbered JPEG files. It is safe for
// concurrent use; settings may be replaced while running.
type Writer struct {
	mu         sync.Mutex
	settings   Settings
	next       int
	latest     Result
	latestJPEG []byte
}

// NewWriter validates settings, creates the output directory and
// initialises the counter.
func NewWriter(settings Settings) (*Writer, error) {
	w := &Writer{}
	if err := w.apply(settings, true); err != nil {
		return nil, err
	}
	return w, nil
}

// Update replaces the settings. The counter is kept unless the output
// location changed.
func (w *Writer) Update(settings Settings) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	moved := settings.Dir != w.settings.Dir || settings.Pattern != w.settings.Pattern
	return w.applyLocked(settings, moved)
}

func (w *Writer) apply(settings Settings, resetCounter bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.applyLocked(settings, resetCounter)
}

func (w *Writer) applyLocked(settings Settings, resetCounter bool) error {
	if settings.Dir == "" {
		settings.Dir = "."
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(settings.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", settings.Dir, err)
	}

	if resetCounter {
		next := 0
		if !settings.Overwrite {
			highest, err := highestSequence(settings.Dir, settings.Pattern)
			if err != nil {
				return err
			}
			next = highest + 1
		}
		w.next = next
	}
	w.settings = settings
	return nil
}

// Settings returns the active settings.
func (w *Writer) Settings() Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings
}

// Next returns the sequence number the next snapshot will get.
func (w *Writer) Next() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next
}

// Save converts, transforms and writes one frame. The counter only advances
// when the file was written.
func (w *Writer) Save(f Frame) (Result, error) {
	start := time.Now()

	w.mu.Lock()
	settings := w.settings
	seq := w.next
	w.mu.Unlock()

	img, err := ToImage(f)
	if err != nil {
		return Result{}, fmt.Errorf("convert frame: %w", err)
	}
	out := settings.Transform.Apply(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(settings.Quality)); err != nil {
		return Result{}, fmt.Errorf("encode jpeg: %w", err)
	}

	path := filepath.Join(settings.Dir, fmt.Sprintf(settings.Pattern, seq))
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return Result{}, err
	}

	b := out.Bounds()
	res := Result{
		Path:     path,
		Sequence: seq,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Bytes:    buf.Len(),
		Took:     time.Since(start),
		SavedAt:  time.Now(),
	}

	w.mu.Lock()
	// Settings may have moved the output while encoding; keep the newer counter.
	if w.next == seq {
		w.next = seq + 1
	}
	w.latest = res
	w.latestJPEG = buf.Bytes()
	w.mu.Unlock()

	return res, nil
}

// Latest returns the most recent snapshot and its JPEG bytes.
func (w *Writer) Latest() (Result, []byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latestJPEG == nil {
		return Result{}, nil, ErrNoSnapshot
	}
	return w.latest, w.latestJPEG, nil
}

// highestSequence returns the largest number among files in dir matching
// pattern, or -1 when there are none.
func highestSequence(dir, pattern string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return -1, fmt.Errorf("read output directory: %w", err)
	}

	highest := -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(entry.Name(), pattern, &n); err != nil {
			continue
		}
		// Sscanf ignores trailing input; require an exact round trip.
		if fmt.Sprintf(pattern, n) != entry.Name() {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}
