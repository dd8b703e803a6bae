package repository

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithSeedPriority sets the starting priority counter, useful for
// reproducing a particular tree shape in benchmarks.
func WithSeedPriority(seed uint64) MemoryOption {
	return func(s *MemoryStore) {
		s.nextPrio = seed
	}
}
