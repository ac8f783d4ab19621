package filesystem

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	ops      []string
	opErrors int
	stale    int
	attempts int
	success  int
	failures int
}

func (r *recordingObserver) ObserveOperation(volume, operation string, _ float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, volume+":"+operation)
	if err != nil {
		r.opErrors++
	}
}

func (r *recordingObserver) ObserveRetryAttempt(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
}

func (r *recordingObserver) ObserveRetrySuccess(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
}

func (r *recordingObserver) ObserveRetryFailure(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *recordingObserver) ObserveRetryDuration(_, _ string, _ float64) {}

func (r *recordingObserver) ObserveStaleError(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func withObserver(t *testing.T) *recordingObserver {
	t.Helper()
	original := defaultObserver
	t.Cleanup(func() { defaultObserver = original })
	obs := &recordingObserver{}
	SetObserver(obs)
	return obs
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"source": "/images",
		"cache":  "/cache",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"source root", "/images", "source"},
		{"source file", "/images/2024/beach.jpg", "source"},
		{"cache shard", "/cache/ab/abcdef.bin", "cache"},
		{"sibling with shared prefix", "/images-old/a.jpg", "unknown"},
		{"unknown path", "/etc/hosts", "unknown"},
		{"root path", "/", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve_LongestPrefixWins(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"data":  "/data",
		"cache": "/data/cache",
	})

	if got := vr.Resolve("/data/cache/ab/x.bin"); got != "cache" {
		t.Errorf("Resolve() = %q, want cache", got)
	}
	if got := vr.Resolve("/data/images/x.jpg"); got != "data" {
		t.Errorf("Resolve() = %q, want data", got)
	}
}

func TestVolumeResolver_Resolve_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/anything"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestRetryConfig_ResolveVolume_UsesConfigResolver(t *testing.T) {
	original := defaultResolver
	defer func() { defaultResolver = original }()

	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"default": "/cache"}))

	config := RetryConfig{VolumeResolver: NewVolumeResolver(map[string]string{"override": "/cache"})}
	if got := config.resolveVolume("/cache/a"); got != "override" {
		t.Errorf("resolveVolume() = %q, want override", got)
	}

	config.VolumeResolver = nil
	if got := config.resolveVolume("/cache/a"); got != "default" {
		t.Errorf("resolveVolume() = %q, want default", got)
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	got, err := withRetry("read", "/images/a.jpg", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.success != 1 || obs.failures != 0 {
		t.Errorf("observer = stale:%d attempts:%d success:%d failures:%d",
			obs.stale, obs.attempts, obs.success, obs.failures)
	}
}

func TestWithRetry_ExhaustsBudget(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	_, err := withRetry("stat", "/images/a.jpg", fastConfig(), func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + MaxRetries)", calls)
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
	if obs.attempts != 3 {
		t.Errorf("attempts = %d, want 3", obs.attempts)
	}
}

func TestWithRetry_NonStaleFailsFast(t *testing.T) {
	calls := 0
	_, err := withRetry("open", "/x", fastConfig(), func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})

	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("error = %v, want ErrPermission", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestStatWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}

	_, err = StatWithRetry(filepath.Join(tmpDir, "missing"), fastConfig())
	if !os.IsNotExist(err) {
		t.Errorf("StatWithRetry() error = %v, want not-exist", err)
	}
}

func TestOpenWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("test content")
	if err := os.WriteFile(testFile, content, 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	file, err := OpenWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer file.Close()

	buf := make([]byte, len(content))
	if _, err := file.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(buf, content) {
		t.Errorf("content = %q, want %q", buf, content)
	}
}

func TestReadFileWithRetry(t *testing.T) {
	obs := withObserver(t)

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "img.bin")
	if err := os.WriteFile(testFile, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := ReadFileWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("ReadFileWithRetry() error = %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("data = %v", data)
	}
	if len(obs.ops) != 1 || obs.ops[0] != "unknown:read" {
		t.Errorf("ops = %v, want [unknown:read]", obs.ops)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "ab", "cd", "entry.bin")

	if err := WriteFileAtomic(target, []byte("first"), 0o644, fastConfig()); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(target, []byte("second"), 0o644, fastConfig()); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite error = %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the final file, found %d entries", len(entries))
	}
}

func TestRemove(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "gone.bin")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := Remove(target, fastConfig()); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	if err := Remove(target, fastConfig()); err != nil {
		t.Errorf("Remove() of missing file error = %v, want nil", err)
	}
}

func BenchmarkVolumeResolver_Resolve(b *testing.B) {
	vr := NewVolumeResolver(map[string]string{
		"source": "/images",
		"cache":  "/cache",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vr.Resolve("/images/2024/summer/beach.jpg")
	}
}

func BenchmarkStatWithRetry_Success(b *testing.B) {
	tmpDir := b.TempDir()
	testFile := filepath.Join(tmpDir, "bench.txt")
	if err := os.WriteFile(testFile, []byte("x"), 0o644); err != nil {
		b.Fatalf("write: %v", err)
	}
	config := DefaultRetryConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = StatWithRetry(testFile, config)
	}
}
