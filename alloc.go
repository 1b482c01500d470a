package rtkernel

import "sync"

// Allocator is admission control for dynamically-created objects. The
// default is a general heap allocator; a fixed-size BlockPool can be
// supplied via WithAllocator. The kernel stores the configured Allocator
// and returns it from Kernel.Allocator; the object constructors in this
// package do not consult it.
type Allocator interface {
	// Alloc reserves one block of at least size bytes for a dynamic object
	// and returns a free func that releases the reservation; ok is false
	// if the request is refused. No memory is handed out: Go's GC makes
	// the block itself unnecessary, so callers only get admission control
	// and the free callback.
	Alloc(size uint32) (free func(), ok bool)
}

// heapAllocator never refuses a request, and its free callback does
// nothing.
type heapAllocator struct{}

// NewHeapAllocator returns the default, unbounded Allocator.
func NewHeapAllocator() Allocator { return heapAllocator{} }

func (heapAllocator) Alloc(uint32) (func(), bool) {
	return func() {}, true
}

// BlockPool is a fixed-capacity allocator: at most count concurrent
// allocations of up to blockSize bytes each, after which Alloc refuses.
// Grounded on the fixed-partition memory pools real StateOS ports use so
// dynamic task/object creation never depends on an unbounded heap.
type BlockPool struct {
	blockSize uint32
	mu        sync.Mutex
	free      int
}

// NewBlockPool creates a pool of count blocks, each usable for an
// allocation of up to blockSize bytes.
func NewBlockPool(blockSize uint32, count int) *BlockPool {
	return &BlockPool{blockSize: blockSize, free: count}
}

// Available reports the number of blocks not currently allocated.
func (p *BlockPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free
}

func (p *BlockPool) Alloc(size uint32) (func(), bool) {
	if size > p.blockSize {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.free == 0 {
		return nil, false
	}
	p.free--
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.free++
			p.mu.Unlock()
		})
	}, true
}
