// Package config describes the hardware feature set a PDS program is
// assembled for.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxBankDwords is the number of dword addresses a data-store bank field
// can encode.
const MaxBankDwords = 64

// Errata lists the hardware workarounds that apply to a target.
type Errata struct {
	// NoBank1Data forbids placing any identifier in data-store bank 1.
	NoBank1Data bool `yaml:"no_bank1_data"`

	// StoreStart restricts STORE bursts to start at one of StoreStarts.
	StoreStart bool `yaml:"store_start"`

	// StoreStarts are the legal temporary-region start offsets of a STORE
	// burst when StoreStart applies.
	StoreStarts []uint32 `yaml:"store_starts"`
}

// Target is the hardware configuration the assembler encodes for.
type Target struct {
	Name string `yaml:"name"`

	ExtendedSources bool `yaml:"extended_sources"`
	LoadStore       bool `yaml:"load_store"`

	Errata Errata `yaml:"errata"`

	InterleaveDwords uint32 `yaml:"interleave_dwords"`
	PreloadDwords    uint32 `yaml:"preload_dwords"`
	TempDwords       uint32 `yaml:"temp_dwords"`
	BurstDwords      uint32 `yaml:"burst_dwords"`
	MaxCodeWords     uint32 `yaml:"max_code_words"`
}

// TempBase returns the bank offset of the first temporary dword.
func (t *Target) TempBase() uint32 {
	return t.PreloadDwords
}

// BankDwords returns the number of addressable dwords in one bank.
func (t *Target) BankDwords() uint32 {
	return t.PreloadDwords + t.TempDwords
}

// Validate checks that the configuration describes a buildable target.
func (t *Target) Validate() error {
	if t.BankDwords() > MaxBankDwords {
		return fmt.Errorf("target %s: %d preload + %d temp dwords exceed %d per bank",
			t.Name, t.PreloadDwords, t.TempDwords, MaxBankDwords)
	}

	if t.PreloadDwords%2 != 0 || t.TempDwords%2 != 0 {
		return fmt.Errorf("target %s: region sizes must be even", t.Name)
	}

	if t.TempDwords == 0 {
		return fmt.Errorf("target %s: no temporary region", t.Name)
	}

	r := t.InterleaveDwords
	if r == 0 || r&(r-1) != 0 {
		return fmt.Errorf("target %s: interleave %d is not a power of two", t.Name, r)
	}

	if t.BurstDwords < 1 || t.BurstDwords > 4 {
		return fmt.Errorf("target %s: burst size %d out of range 1..4", t.Name, t.BurstDwords)
	}

	if t.MaxCodeWords == 0 || t.MaxCodeWords > 1<<16 {
		return fmt.Errorf("target %s: code size %d out of range", t.Name, t.MaxCodeWords)
	}

	if t.Errata.StoreStart {
		if len(t.Errata.StoreStarts) != 5 {
			return fmt.Errorf("target %s: store erratum needs 5 start offsets, got %d",
				t.Name, len(t.Errata.StoreStarts))
		}

		for _, s := range t.Errata.StoreStarts {
			if s >= t.TempDwords {
				return fmt.Errorf("target %s: store start %d outside temporary region", t.Name, s)
			}
		}
	}

	return nil
}

func (t Target) String() string {
	return fmt.Sprintf("Target(%s ext=%v ls=%v)", t.Name, t.ExtendedSources, t.LoadStore)
}

// LoadTargetFromYAML reads a target description. Keys that are absent keep
// the defaults of TargetBuilder.
func LoadTargetFromYAML(path string) (*Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseTarget(data)
}

// ParseTarget decodes a YAML target description on top of the defaults.
func ParseTarget(data []byte) (*Target, error) {
	t := MakeTargetBuilder().Build("pds")

	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}
