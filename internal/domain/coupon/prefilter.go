package coupon

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// HashLister enumerates the code hashes of all stored coupons.
type HashLister interface {
	ListHashes(ctx context.Context) ([]string, error)
}

// Prefilter is a bloom filter over known code hashes for bulk writers. A
// miss means the hash was not in the store when the filter was loaded, so a
// batch can skip the existence check; a hit still goes to the store. It only
// reflects the store as of the last Reload and must not be used to reject
// codes.
type Prefilter struct {
	capacity uint
	fpr      float64

	mu     sync.RWMutex
	filter *bloom.BloomFilter
	// added collects hashes added while a reload is listing the store, so
	// the rebuilt filter does not drop them.
	reloading bool
	added     []string
}

// NewPrefilter creates an empty filter sized for capacity hashes at the
// given false positive rate.
func NewPrefilter(capacity uint, fpr float64) *Prefilter {
	return &Prefilter{
		capacity: capacity,
		fpr:      fpr,
		filter:   bloom.NewWithEstimates(capacity, fpr),
	}
}

// Add records a code hash.
func (p *Prefilter) Add(hash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter.AddString(hash)
	if p.reloading {
		p.added = append(p.added, hash)
	}
}

// MayContain reports whether hash might belong to a stored coupon.
func (p *Prefilter) MayContain(hash string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter.TestString(hash)
}

// Reload rebuilds the filter from the store and swaps it in.
func (p *Prefilter) Reload(ctx context.Context, lister HashLister) (int, error) {
	p.mu.Lock()
	p.reloading = true
	p.added = nil
	p.mu.Unlock()

	hashes, err := lister.ListHashes(ctx)
	if err != nil {
		p.mu.Lock()
		p.reloading = false
		p.added = nil
		p.mu.Unlock()
		return 0, errors.Wrap(err, "list coupon hashes")
	}

	capacity := p.capacity
	if n := uint(len(hashes)); n > capacity {
		capacity = n
	}
	filter := bloom.NewWithEstimates(capacity, p.fpr)
	for _, h := range hashes {
		filter.AddString(h)
	}

	p.mu.Lock()
	for _, h := range p.added {
		filter.AddString(h)
	}
	p.filter = filter
	p.reloading = false
	p.added = nil
	p.mu.Unlock()

	return len(hashes), nil
}
