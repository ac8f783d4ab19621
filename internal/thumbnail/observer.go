package thumbnail

import "image"

// LoadObserver receives the lifecycle of a load request. DidStartLoading is
// called synchronously from Load; exactly one of DidSucceed or DidFail
// follows unless the request is cancelled first.
//
// Callbacks after DidStartLoading run on the pipeline's coordination
// goroutine and must not block. They must not call Loader.Close, which
// waits for that goroutine to finish; start a new goroutine for it instead.
type LoadObserver interface {
	DidStartLoading(req Request)
	DidSucceed(req Request, img image.Image)
	DidFail(req Request)
}

// PrefetchObserver is told when the pool a prefetch joined has finished.
// It carries no outcome: a prefetch never reports failure. Like LoadObserver
// it runs on the coordination goroutine and must not call Loader.Close.
type PrefetchObserver interface {
	DidFinishPrefetching(req Request)
}

// LoadFuncs adapts plain functions to LoadObserver. Nil fields are skipped.
type LoadFuncs struct {
	Start   func(Request)
	Success func(Request, image.Image)
	Failure func(Request)
}

// DidStartLoading implements LoadObserver.
func (f LoadFuncs) DidStartLoading(req Request) {
	if f.Start != nil {
		f.Start(req)
	}
}

// DidSucceed implements LoadObserver.
func (f LoadFuncs) DidSucceed(req Request, img image.Image) {
	if f.Success != nil {
		f.Success(req, img)
	}
}

// DidFail implements LoadObserver.
func (f LoadFuncs) DidFail(req Request) {
	if f.Failure != nil {
		f.Failure(req)
	}
}

// PrefetchFunc adapts a function to PrefetchObserver.
type PrefetchFunc func(Request)

// DidFinishPrefetching implements PrefetchObserver.
func (f PrefetchFunc) DidFinishPrefetching(req Request) {
	f(req)
}
