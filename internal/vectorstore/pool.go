package vectorstore

import "context"

// leasePool implements the connection model: a pool of handles
// (configurable size, default 4) that serialises writes and
// parallelises reads. Reads acquire one of poolSize shared leases;
// writes acquire all of them at once, which is equivalent to an
// exclusive lease since no read lease can be concurrently held while
// every slot is drained. Both obey ctx's deadline and cancellation.
//
// The underlying SQLite handle is still a single *sql.DB in WAL mode,
// since SQLite benefits from one writer; this pool models lease
// semantics on top of that single handle rather than opening poolSize
// separate connections, since SQLite's single-writer constraint would
// make a literal multi-connection pool fight itself under concurrent
// writes.
type leasePool struct {
	slots chan struct{}
	size  int
}

func newLeasePool(size int) *leasePool {
	if size <= 0 {
		size = 4
	}
	return &leasePool{slots: make(chan struct{}, size), size: size}
}

// acquireRead blocks for one shared lease until ctx is done.
func (p *leasePool) acquireRead(ctx context.Context) (release func(), err error) {
	select {
	case p.slots <- struct{}{}:
		return func() { <-p.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// acquireWrite blocks until every lease is held, giving the caller
// exclusive access; partially-acquired slots are released if ctx ends
// before the full set is obtained.
func (p *leasePool) acquireWrite(ctx context.Context) (release func(), err error) {
	acquired := 0
	release = func() {
		for i := 0; i < acquired; i++ {
			<-p.slots
		}
	}
	for acquired < p.size {
		select {
		case p.slots <- struct{}{}:
			acquired++
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
