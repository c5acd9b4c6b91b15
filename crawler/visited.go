package crawler

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// minSeenCapacity is the smallest number of URLs a SeenSet is sized for.
const minSeenCapacity = 1024

// SeenSet remembers which page URLs have been queued for auditing. The
// filter is mirrored into a memory-mapped scratch file so large runs keep
// a flat heap. False positives are possible, false negatives are not.
type SeenSet struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	file      *os.File
	mmap      mmap.MMap
	path      string
	pending   uint64
	syncEvery uint64
	lastErr   error
}

// NewSeenSet creates a SeenSet sized for capacity URLs at the given false
// positive rate. The scratch file lives in dir, or the OS temp directory
// when dir is empty.
func NewSeenSet(capacity uint, fpRate float64, dir string) (*SeenSet, error) {
	if capacity < minSeenCapacity {
		capacity = minSeenCapacity
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.001
	}
	filter := bloom.NewWithEstimates(capacity, fpRate)

	data, err := filter.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}

	file, err := os.CreateTemp(dir, "linkscout-seen-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create seen-set file: %w", err)
	}
	path := file.Name()
	cleanup := func() {
		_ = file.Close()
		_ = os.Remove(path)
	}

	if err := file.Truncate(int64(len(data))); err != nil {
		cleanup()
		return nil, fmt.Errorf("size seen-set file: %w", err)
	}
	mapped, err := mmap.MapRegion(file, len(data), mmap.RDWR, 0, 0)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("map seen-set file: %w", err)
	}
	copy(mapped, data)

	return &SeenSet{
		filter:    filter,
		file:      file,
		mmap:      mapped,
		path:      path,
		syncEvery: 256,
	}, nil
}

// Add marks url as seen and reports whether it was new.
func (s *SeenSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestOrAddString(url) {
		return false
	}
	s.pending++
	if s.pending >= s.syncEvery {
		if err := s.syncLocked(); err != nil {
			s.lastErr = err
		}
	}
	return true
}

// Seen reports whether url has been added.
func (s *SeenSet) Seen(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.TestString(url)
}

// syncLocked mirrors the filter into the mapped file. Callers hold mu.
func (s *SeenSet) syncLocked() error {
	if s.mmap == nil {
		return nil
	}
	data, err := s.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	copy(s.mmap, data)
	if err := s.mmap.Flush(); err != nil {
		return fmt.Errorf("flush seen-set: %w", err)
	}
	s.pending = 0
	return nil
}

// Err returns the last background sync error, if any.
func (s *SeenSet) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close unmaps and removes the scratch file. It is safe to call twice.
func (s *SeenSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.mmap != nil {
		if err := s.mmap.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		s.mmap = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		s.file = nil
	}
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove file: %w", err))
		}
		s.path = ""
	}
	if len(errs) > 0 {
		return fmt.Errorf("close seen-set: %w", errors.Join(errs...))
	}
	return nil
}
