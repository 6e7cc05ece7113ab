package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type snapshotSection struct {
	Snapshot struct {
		Dir     string `toml:"dir"`
		Quality int    `toml:"quality"`
	} `toml:"snapshot"`
}

func loadSnapshotSection(path string) (snapshotSection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshotSection{}, err
	}
	var cfg snapshotSection
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeSection(t *testing.T, path string, quality int) {
	t.Helper()
	content := fmt.Sprintf("[snapshot]\ndir = \"shots\"\nquality = %d\n", quality)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher[T any](t *testing.T, w *Watcher[T]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	// Let the watch loop settle before the first write.
	time.Sleep(100 * time.Millisecond)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsnap.toml")
	writeSection(t, path, 90)

	received := make(chan snapshotSection, 1)
	w := NewConfigWatcher(path, loadSnapshotSection, newTestLogger(),
		WithDebounce[snapshotSection](50*time.Millisecond))
	w.OnReload(func(cfg snapshotSection) { received <- cfg })
	startWatcher(t, w)

	writeSection(t, path, 75)

	select {
	case cfg := <-received:
		if cfg.Snapshot.Quality != 75 || cfg.Snapshot.Dir != "shots" {
			t.Errorf("reloaded %+v, want quality 75 in shots", cfg.Snapshot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherFollowsRenameOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camsnap.toml")
	writeSection(t, path, 90)

	received := make(chan snapshotSection, 4)
	w := NewConfigWatcher(path, loadSnapshotSection, newTestLogger(),
		WithDebounce[snapshotSection](50*time.Millisecond))
	w.OnReload(func(cfg snapshotSection) { received <- cfg })
	startWatcher(t, w)

	// Editors save by writing a sibling and renaming it into place.
	for _, quality := range []int{60, 40} {
		tmp := filepath.Join(dir, ".camsnap.toml.swp")
		writeSection(t, tmp, quality)
		if err := os.Rename(tmp, path); err != nil {
			t.Fatal(err)
		}

		select {
		case cfg := <-received:
			if cfg.Snapshot.Quality != quality {
				t.Errorf("quality = %d, want %d", cfg.Snapshot.Quality, quality)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for reload after rename (quality %d)", quality)
		}
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camsnap.toml")
	writeSection(t, path, 90)

	var count atomic.Int32
	w := NewConfigWatcher(path, loadSnapshotSection, newTestLogger(),
		WithDebounce[snapshotSection](20*time.Millisecond))
	w.OnReload(func(snapshotSection) { count.Add(1) })
	startWatcher(t, w)

	if err := os.WriteFile(filepath.Join(dir, "frame_00000.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("handler called %d times for an unrelated file", got)
	}
}

func TestWatcherHandlersAndUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsnap.toml")
	writeSection(t, path, 90)

	var count1, count2 atomic.Int32
	var last1, last2 atomic.Int32
	w := NewConfigWatcher(path, loadSnapshotSection, newTestLogger(),
		WithDebounce[snapshotSection](50*time.Millisecond))

	w.OnReload(func(cfg snapshotSection) {
		last1.Store(int32(cfg.Snapshot.Quality))
		count1.Add(1)
	})
	unsub2 := w.OnReload(func(cfg snapshotSection) {
		last2.Store(int32(cfg.Snapshot.Quality))
		count2.Add(1)
	})
	startWatcher(t, w)

	writeSection(t, path, 80)
	time.Sleep(300 * time.Millisecond)

	unsub2()

	writeSection(t, path, 70)
	time.Sleep(300 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1: %d calls, want 2", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2: %d calls, want 1", got)
	}
	if got := last1.Load(); got != 70 {
		t.Errorf("handler1 last quality = %d, want 70", got)
	}
	if got := last2.Load(); got != 80 {
		t.Errorf("handler2 last quality = %d, want 80", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsnap.toml")
	writeSection(t, path, 90)

	errorReceived := make(chan error, 1)
	configReceived := make(chan snapshotSection, 1)
	w := NewConfigWatcher(path, loadSnapshotSection, newTestLogger(),
		WithDebounce[snapshotSection](50*time.Millisecond),
		WithErrorHandler[snapshotSection](func(err error) { errorReceived <- err }),
	)
	w.OnReload(func(cfg snapshotSection) { configReceived <- cfg })
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("[snapshot\nquality = "), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errorReceived:
	case <-configReceived:
		t.Fatal("reload handler called for an invalid file")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsnap.toml")
	writeSection(t, path, 90)

	var count, last atomic.Int32
	w := NewConfigWatcher(path, loadSnapshotSection, newTestLogger(),
		WithDebounce[snapshotSection](200*time.Millisecond))
	w.OnReload(func(cfg snapshotSection) {
		count.Add(1)
		last.Store(int32(cfg.Snapshot.Quality))
	})
	startWatcher(t, w)

	for q := 51; q <= 55; q++ {
		writeSection(t, path, q)
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("%d reloads, want 1", got)
	}
	if got := last.Load(); got != 55 {
		t.Errorf("last quality = %d, want 55", got)
	}
}

func TestWatcherSkipsUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsnap.toml")
	writeSection(t, path, 90)

	var count atomic.Int32
	w := NewConfigWatcher(path, loadSnapshotSection, newTestLogger(),
		WithDebounce[snapshotSection](30*time.Millisecond))
	w.OnReload(func(snapshotSection) { count.Add(1) })
	startWatcher(t, w)

	writeSection(t, path, 90)
	time.Sleep(200 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Fatalf("%d reloads for identical content, want 0", got)
	}

	writeSection(t, path, 85)
	time.Sleep(200 * time.Millisecond)
	writeSection(t, path, 85)
	time.Sleep(200 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("%d reloads, want 1", got)
	}
}

func TestWatcherConcurrentSubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsnap.toml")
	writeSection(t, path, 90)

	w := NewConfigWatcher(path, loadSnapshotSection, newTestLogger(),
		WithDebounce[snapshotSection](10*time.Millisecond))
	startWatcher(t, w)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := w.OnReload(func(snapshotSection) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}
	for q := range 10 {
		writeSection(t, path, q+1)
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()
}

func TestWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsnap.toml")
	writeSection(t, path, 90)

	var count atomic.Int32
	w := NewConfigWatcher(path, loadSnapshotSection, newTestLogger(),
		WithDebounce[snapshotSection](50*time.Millisecond))
	w.OnReload(func(snapshotSection) { count.Add(1) })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	writeSection(t, path, 10)
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("handler called %d times after Stop", got)
	}
}

func TestLoaderKeepsPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsnap.toml")
	writeSection(t, path, 55)
	t.Setenv(EnvPrefix+"SNAPSHOT_DIR", "from-env")

	type opts struct {
		Config  string
		Dir     string `toml:"snapshot.dir" env:"SNAPSHOT_DIR"`
		Quality int    `toml:"snapshot.quality" env:"SNAPSHOT_QUALITY"`
	}
	load := Loader(opts{Dir: ".", Quality: 90}, nil)

	got, err := load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Config != path || got.Quality != 55 || got.Dir != "from-env" {
		t.Errorf("Loader() = %+v", got)
	}

	if _, err := load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestWatcherRemovedKeyFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camsnap.toml")
	if err := os.WriteFile(path, []byte("[snapshot]\nquality = 70\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	type opts struct {
		Config  string
		Quality int `toml:"snapshot.quality" env:"SNAPSHOT_QUALITY"`
		Rotate  int `toml:"snapshot.rotate" env:"SNAPSHOT_ROTATE"`
	}
	base := opts{Config: path, Quality: 90}
	current := base
	if err := LoadConfig(&current, nil); err != nil {
		t.Fatal(err)
	}
	if current.Quality != 70 {
		t.Fatalf("initial quality = %d, want 70", current.Quality)
	}

	w := NewConfigWatcher(path, Loader(base, nil), newTestLogger(), WithDebounce[opts](50*time.Millisecond))
	got := make(chan opts, 1)
	w.OnReload(func(o opts) { got <- o })
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("[snapshot]\nrotate = 90\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case o := <-got:
		if o.Quality != 90 || o.Rotate != 90 {
			t.Errorf("reloaded = %+v, want quality 90 and rotate 90", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}
