package config

// TargetBuilder can build targets.
type TargetBuilder struct {
	extendedSources bool
	loadStore       bool
	errata          Errata
	interleave      uint32
	preload, temp   uint32
	burst           uint32
	maxCodeWords    uint32
}

// MakeTargetBuilder returns a builder holding the default configuration.
func MakeTargetBuilder() TargetBuilder {
	return TargetBuilder{
		loadStore:    true,
		interleave:   4,
		preload:      40,
		temp:         24,
		burst:        4,
		maxCodeWords: 1 << 16,
		errata: Errata{
			StoreStarts: []uint32{0, 4, 8, 12, 16},
		},
	}
}

// WithExtendedSources enables the extended MOVS source and predicate
// features.
func (b TargetBuilder) WithExtendedSources(enabled bool) TargetBuilder {
	b.extendedSources = enabled
	return b
}

// WithLoadStore sets whether the load-store unit is present.
func (b TargetBuilder) WithLoadStore(enabled bool) TargetBuilder {
	b.loadStore = enabled
	return b
}

// WithNoBank1Data applies the erratum that forbids data in bank 1.
func (b TargetBuilder) WithNoBank1Data(enabled bool) TargetBuilder {
	b.errata.NoBank1Data = enabled
	return b
}

// WithStoreStartErratum applies the erratum restricting STORE start
// offsets.
func (b TargetBuilder) WithStoreStartErratum(enabled bool) TargetBuilder {
	b.errata.StoreStart = enabled
	return b
}

// WithInterleave sets the bank interleave granularity in dwords.
func (b TargetBuilder) WithInterleave(dwords uint32) TargetBuilder {
	b.interleave = dwords
	return b
}

// WithRegions sets the per-bank preload and temporary region sizes.
func (b TargetBuilder) WithRegions(preload, temp uint32) TargetBuilder {
	b.preload = preload
	b.temp = temp
	return b
}

// WithBurst sets the maximum number of dwords one LOAD/STORE moves.
func (b TargetBuilder) WithBurst(dwords uint32) TargetBuilder {
	b.burst = dwords
	return b
}

// WithMaxCodeWords sets the size of the addressable code space.
func (b TargetBuilder) WithMaxCodeWords(words uint32) TargetBuilder {
	b.maxCodeWords = words
	return b
}

// Build creates a target.
func (b TargetBuilder) Build(name string) *Target {
	errata := b.errata
	errata.StoreStarts = append([]uint32(nil), b.errata.StoreStarts...)

	return &Target{
		Name:             name,
		ExtendedSources:  b.extendedSources,
		LoadStore:        b.loadStore,
		Errata:           errata,
		InterleaveDwords: b.interleave,
		PreloadDwords:    b.preload,
		TempDwords:       b.temp,
		BurstDwords:      b.burst,
		MaxCodeWords:     b.maxCodeWords,
	}
}
