package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 5 * time.Second

type fakeMemory struct {
	mu      sync.Mutex
	entries map[string]image.Image
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{entries: make(map[string]image.Image)}
}

func (m *fakeMemory) Get(key string) (image.Image, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.entries[key]
	return img, ok
}

func (m *fakeMemory) Insert(key string, img image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = img
}

func (m *fakeMemory) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

type fakeDisk struct {
	mu         sync.Mutex
	entries    map[string][]byte
	failInsert bool
	inserted   chan string
}

func newFakeDisk() *fakeDisk {
	return &fakeDisk{entries: make(map[string][]byte), inserted: make(chan string, 16)}
}

func (d *fakeDisk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.entries[key]
	return data, ok
}

func (d *fakeDisk) Insert(key string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failInsert {
		d.inserted <- key
		return errors.New("disk full")
	}
	d.entries[key] = data
	d.inserted <- key
	return nil
}

func (d *fakeDisk) Remove(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, key)
	return nil
}

func (d *fakeDisk) has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// fakeLoader serves data keyed by request source. A missing source returns
// no bytes. When gate is set, LoadData blocks until it is closed or the task
// is cancelled.
type fakeLoader struct {
	data    map[string][]byte
	gate    chan struct{}
	entered chan struct{}
	calls   atomic.Int32
}

func (f *fakeLoader) LoadData(ctx context.Context, req Request) ([]byte, error) {
	f.calls.Add(1)
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.data[req.Source], nil
}

// fakeCodec represents encoded thumbnails as "WxH" strings. Originals are
// any bytes except "corrupt".
type fakeCodec struct {
	failEncode  bool
	downsamples atomic.Int32
}

func (c *fakeCodec) Downsample(data []byte, maxPixel int) (image.Image, error) {
	c.downsamples.Add(1)
	if string(data) == "corrupt" {
		return nil, errors.New("bad image")
	}
	return image.NewRGBA(image.Rect(0, 0, maxPixel, maxPixel)), nil
}

func (c *fakeCodec) Encode(img image.Image, _ float64) ([]byte, error) {
	if c.failEncode {
		return nil, errors.New("encoder broke")
	}
	b := img.Bounds()
	return []byte(fmt.Sprintf("%dx%d", b.Dx(), b.Dy())), nil
}

func (c *fakeCodec) Decode(data []byte) (image.Image, error) {
	var w, h int
	if _, err := fmt.Sscanf(string(data), "%dx%d", &w, &h); err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

type gateFunc func() bool

func (g gateFunc) WaitIfPaused() bool { return g() }

// recorder is a LoadObserver that counts callbacks per request ID.
type recorder struct {
	mu        sync.Mutex
	starts    int
	successes map[string]int
	failures  map[string]int
	images    []image.Image
	terminal  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		successes: make(map[string]int),
		failures:  make(map[string]int),
		terminal:  make(chan struct{}, 256),
	}
}

func (r *recorder) DidStartLoading(Request) {
	r.mu.Lock()
	r.starts++
	r.mu.Unlock()
}

func (r *recorder) DidSucceed(req Request, img image.Image) {
	r.mu.Lock()
	r.successes[req.ID.String()]++
	r.images = append(r.images, img)
	r.mu.Unlock()
	r.terminal <- struct{}{}
}

func (r *recorder) DidFail(req Request) {
	r.mu.Lock()
	r.failures[req.ID.String()]++
	r.mu.Unlock()
	r.terminal <- struct{}{}
}

func (r *recorder) counts(req Request) (successes, failures int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successes[req.ID.String()], r.failures[req.ID.String()]
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.terminal:
		case <-time.After(waitTimeout):
			t.Fatalf("timed out waiting for terminal callback %d of %d", i+1, n)
		}
	}
}

type prefetchRecorder struct {
	released chan Request
}

func newPrefetchRecorder() *prefetchRecorder {
	return &prefetchRecorder{released: make(chan Request, 16)}
}

func (p *prefetchRecorder) DidFinishPrefetching(req Request) {
	p.released <- req
}

func (p *prefetchRecorder) wait(t *testing.T) Request {
	t.Helper()
	select {
	case req := <-p.released:
		return req
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for prefetch release")
		return Request{}
	}
}

func newTestLoader(t *testing.T, cfg Config) *Loader {
	t.Helper()
	if cfg.Memory == nil {
		cfg.Memory = newFakeMemory()
	}
	if cfg.Codec == nil {
		cfg.Codec = &fakeCodec{}
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

// flush waits until every task already submitted to the coordination queue
// has run.
func flush(t *testing.T, l *Loader) {
	t.Helper()
	done := make(chan struct{})
	if _, err := l.coord.serial.Submit(func(context.Context) { close(done) }); err != nil {
		t.Fatalf("flush: %v", err)
	}
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("flush timed out")
	}
}

func waitEntered(t *testing.T, f *fakeLoader) {
	t.Helper()
	select {
	case <-f.entered:
	case <-time.After(waitTimeout):
		t.Fatal("data loader was never called")
	}
}

func request(key string) Request {
	return NewRequest(key, key, Size{Width: 50, Height: 50}, 2)
}
