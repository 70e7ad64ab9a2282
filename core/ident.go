package core

import (
	"fmt"

	"github.com/sarchlab/pdsasm/datastore"
)

// Class says what an identifier stands for.
type Class int

// Identifier classes.
const (
	ClassUnresolved Class = iota
	ClassTemp
	ClassData
	ClassLabel
	ClassImmediate
)

func (c Class) String() string {
	switch c {
	case ClassTemp:
		return "temp"
	case ClassData:
		return "data"
	case ClassLabel:
		return "label"
	case ClassImmediate:
		return "immediate"
	}

	return "unresolved"
}

// DataType is the declared width of an identifier.
type DataType int

// Data types.
const (
	TypeNone DataType = iota
	TypeDword
	TypeQword
)

// Dwords returns the number of data-store dwords the type occupies.
func (t DataType) Dwords() int {
	if t == TypeQword {
		return 2
	}

	return 1
}

func (t DataType) String() string {
	switch t {
	case TypeDword:
		return "dword"
	case TypeQword:
		return "qword"
	}

	return "none"
}

// BankSet is a set of data-store banks.
type BankSet uint8

// Bank sets.
const (
	BankNone BankSet = 0
	Bank0    BankSet = 1
	Bank1    BankSet = 2
	BankBoth BankSet = Bank0 | Bank1
)

// Has reports whether bank b is in the set.
func (s BankSet) Has(b int) bool {
	return s&(1<<b) != 0
}

// Only returns the single bank of the set.
func (s BankSet) Only() (int, bool) {
	switch s {
	case Bank0:
		return 0, true
	case Bank1:
		return 1, true
	}

	return -1, false
}

func bankSetOf(b int) BankSet {
	return BankSet(1 << b)
}

func (s BankSet) String() string {
	switch s {
	case Bank0:
		return "{0}"
	case Bank1:
		return "{1}"
	case BankBoth:
		return "{0,1}"
	}

	return "{}"
}

// InlineParam records where an identifier's value is burned into an
// instruction word.
type InlineParam struct {
	Word   int    // index of the word in the instruction stream
	Field  uint   // shift of the field
	Bits   uint   // width of the field
	Scale  uint   // the value is shifted right by Scale before packing
	Addend uint32 // added to the value before scaling
}

// Identifier is one named or literal value of the program.
type Identifier struct {
	Name  string
	Class Class
	Type  DataType
	Loc   Location

	// PreBank and PreOffset are author-supplied placement for a
	// temporary, -1 if absent. PreOffset indexes the temporary region.
	PreBank   int
	PreOffset int

	Banks   BankSet
	Offsets [datastore.NumBanks][]uint32

	LabelOffset   uint32
	LabelResolved bool

	Value      uint32
	InlineUses int
	Params     []InlineParam
}

// IsTemp reports whether the identifier lives in the temporary region.
func (id *Identifier) IsTemp() bool {
	return id.Class == ClassTemp
}

// IsConstant reports whether the identifier's value is preloaded.
func (id *Identifier) IsConstant() bool {
	switch id.Class {
	case ClassData, ClassImmediate, ClassLabel:
		return true
	}

	return false
}

// Dwords returns the number of dwords the identifier occupies.
func (id *Identifier) Dwords() int {
	return id.Type.Dwords()
}

// PreAssigned reports whether the author fixed the bank.
func (id *Identifier) PreAssigned() bool {
	return id.PreBank >= 0
}

// Bound reports whether the identifier has an offset in bank b.
func (id *Identifier) Bound(b int) bool {
	return len(id.Offsets[b]) > 0
}

// DataValue returns the value written to the data segment.
func (id *Identifier) DataValue() uint32 {
	if id.Class == ClassLabel {
		return id.LabelOffset
	}

	return id.Value
}

func (id *Identifier) resetAllocation() {
	id.Banks = BankNone
	id.Offsets = [datastore.NumBanks][]uint32{}
	id.Params = nil
}

// IdentTable holds every identifier of a program. Identifiers are
// addressed by index; indices never change.
type IdentTable struct {
	idents []*Identifier
	byName map[string]int
}

// NewIdentTable creates an empty table.
func NewIdentTable() *IdentTable {
	return &IdentTable{byName: make(map[string]int)}
}

// Len returns the number of identifiers.
func (t *IdentTable) Len() int {
	return len(t.idents)
}

// At returns the identifier with index i.
func (t *IdentTable) At(i int) *Identifier {
	return t.idents[i]
}

// Lookup finds an identifier by name.
func (t *IdentTable) Lookup(name string) (int, bool) {
	i, ok := t.byName[name]
	return i, ok
}

func (t *IdentTable) add(id *Identifier) int {
	t.idents = append(t.idents, id)
	t.byName[id.Name] = len(t.idents) - 1

	return len(t.idents) - 1
}

// Reference returns the index of name, creating an unresolved identifier
// on first use.
func (t *IdentTable) Reference(name string, loc Location) int {
	if i, ok := t.byName[name]; ok {
		return i
	}

	return t.add(&Identifier{
		Name:      name,
		Class:     ClassUnresolved,
		Loc:       loc,
		PreBank:   -1,
		PreOffset: -1,
	})
}

// Define gives name its class. A name defined twice is an error; a
// forward reference is resolved in place.
func (t *IdentTable) Define(name string, class Class, typ DataType, loc Location) (int, error) {
	if i, ok := t.byName[name]; ok {
		id := t.idents[i]
		if id.Class != ClassUnresolved {
			return i, errorf(ErrDeclaration, "%q redefined, previous definition at %s", name, id.Loc)
		}

		id.Class = class
		id.Type = typ
		id.Loc = loc

		return i, nil
	}

	return t.add(&Identifier{
		Name:      name,
		Class:     class,
		Type:      typ,
		Loc:       loc,
		PreBank:   -1,
		PreOffset: -1,
	}), nil
}

// Immediate returns the identifier that materializes value in the data
// store, creating it on first use.
func (t *IdentTable) Immediate(value uint32) int {
	name := fmt.Sprintf("#0x%x", value)
	if i, ok := t.byName[name]; ok {
		return i
	}

	return t.add(&Identifier{
		Name:      name,
		Class:     ClassImmediate,
		Type:      TypeDword,
		Value:     value,
		PreBank:   -1,
		PreOffset: -1,
	})
}

func (t *IdentTable) resetAllocation() {
	for _, id := range t.idents {
		id.resetAllocation()
	}
}
