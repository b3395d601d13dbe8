package memory

// Image is a sparse word image of the target's address space. A slot that
// is not filled carries no programming intent and is treated as blank.
type Image struct {
	location []uint16
	filled   []bool
}

// NewImage creates an empty image of size words.
func NewImage(size int) *Image {
	return &Image{
		location: make([]uint16, size),
		filled:   make([]bool, size),
	}
}

// Size returns the number of addressable words.
func (m *Image) Size() int {
	return len(m.location)
}

// Contains reports whether addr is inside the image.
func (m *Image) Contains(addr int) bool {
	return addr >= 0 && addr < len(m.location)
}

// Set stores word at addr and marks it filled. Does not check bounds, so the
// caller must make sure the address is valid for the image.
func (m *Image) Set(addr int, word uint16) {
	m.location[addr] = word
	m.filled[addr] = true
}

// Get returns the word at addr and whether it is filled.
func (m *Image) Get(addr int) (uint16, bool) {
	return m.location[addr], m.filled[addr]
}

// WordOr returns the word at addr, or fallback when the slot is not filled.
func (m *Image) WordOr(addr int, fallback uint16) uint16 {
	if !m.filled[addr] {
		return fallback
	}
	return m.location[addr]
}

func (m *Image) IsFilled(addr int) bool {
	return m.filled[addr]
}

// Unset drops the word at addr.
func (m *Image) Unset(addr int) {
	m.location[addr] = 0
	m.filled[addr] = false
}

// FilledCount returns the number of filled words in the whole image.
func (m *Image) FilledCount() int {
	return m.FilledIn(0, len(m.filled))
}

// FilledIn returns the number of filled words in [start, end).
func (m *Image) FilledIn(start, end int) int {
	count := 0
	for addr := start; addr < end; addr++ {
		if m.filled[addr] {
			count++
		}
	}
	return count
}

// Clear drops every word.
func (m *Image) Clear() {
	for i := range m.location {
		m.location[i] = 0
		m.filled[i] = false
	}
}

// Each calls fn for every filled word in ascending address order.
func (m *Image) Each(fn func(addr int, word uint16)) {
	for addr, ok := range m.filled {
		if ok {
			fn(addr, m.location[addr])
		}
	}
}
