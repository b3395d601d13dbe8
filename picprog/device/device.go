package device

import (
	"fmt"

	"github.com/pkg/errors"
)

// Descriptor describes one supported chip model.
type Descriptor struct {
	ID             uint16 // 9 bit device ID
	Name           string
	CodeMemorySize int // words
}

// Table is an ordered descriptor list. Lookup is linear, first match wins.
type Table []Descriptor

// Lookup returns the first descriptor with the given device ID.
func (t Table) Lookup(id uint16) (Descriptor, bool) {
	for _, d := range t {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Validate reports duplicate IDs and rows that cannot describe a chip.
// Code memory of every row must fit in maxWords.
func (t Table) Validate(maxWords int) error {
	seen := make(map[uint16]string, len(t))
	for _, d := range t {
		if d.Name == "" || d.CodeMemorySize <= 0 {
			return errors.Errorf("device table: invalid row for id 0x%03X", d.ID)
		}
		if d.CodeMemorySize > maxWords {
			return errors.Errorf("device table: %s has 0x%X words, more than 0x%X", d.Name, d.CodeMemorySize, maxWords)
		}
		if d.ID > 0x1FF {
			return errors.Errorf("device table: id 0x%X of %s does not fit in 9 bits", d.ID, d.Name)
		}
		if prev, ok := seen[d.ID]; ok {
			return errors.Errorf("device table: id 0x%03X used by both %s and %s", d.ID, prev, d.Name)
		}
		seen[d.ID] = d.Name
	}
	return nil
}

// Info is the resolved device of a session.
type Info struct {
	Descriptor
	Revision uint16 // 5 bit silicon revision
}

// Resolved reports whether Info holds a recognized device.
func (i Info) Resolved() bool {
	return i.Name != "" && i.CodeMemorySize > 0
}

func (i Info) String() string {
	return fmt.Sprintf("0x%03X [%s] rev 0x%X", i.ID, i.Name, i.Revision)
}

// PIC10F322 lists the chips sharing the 6 bit command / 16 bit data ICSP
// variant driven by the pic10f322 family.
func PIC10F322() Table {
	return Table{
		{0x14D, "PIC10F320", 0x100},
		{0x14C, "PIC10F322", 0x200},
		{0x14F, "PIC10LF320", 0x100},
		{0x13C, "PIC16F1826", 0x800},
		{0x13D, "PIC16F1827", 0x1000},
		{0x144, "PIC16LF1826", 0x800},
		{0x145, "PIC16LF1827", 0x1000},
		{0x139, "PIC16F1823", 0x800},
		{0x141, "PIC16LF1823", 0x800},
		{0x138, "PIC12F1822", 0x800},
		{0x140, "PIC12LF1822", 0x800},
		{0x13A, "PIC16F1824", 0x1000},
		{0x142, "PIC16LF1824", 0x1000},
		{0x13B, "PIC16F1825", 0x2000},
		{0x143, "PIC16LF1825", 0x2000},
		{0x13E, "PIC16F1828", 0x1000},
		{0x146, "PIC16LF1828", 0x1000},
		{0x13F, "PIC16F1829", 0x2000},
		{0x147, "PIC16LF1829", 0x2000},
	}
}
