package bit

// Combine joins two bytes into a word, high byte first.
func Combine(high, low uint8) uint16 {
	return (uint16(high) << 8) | uint16(low)
}

// Low returns the least significant byte of value.
func Low(value uint16) uint8 {
	return uint8(value)
}

// High returns the most significant byte of value.
func High(value uint16) uint8 {
	return uint8(value >> 8)
}

// IsSet16 will check if the bit at the specified index is set to 1 or not.
func IsSet16(index uint8, value uint16) bool {
	return ((value >> index) & 1) == 1
}

// IsSet32 is IsSet16 for 32 bit values, used by the program mode entry key.
func IsSet32(index uint8, value uint32) bool {
	return ((value >> index) & 1) == 1
}

// Set16 will return the passed value with the bit at the specified index set to 1.
func Set16(index uint8, value uint16) uint16 {
	return value | (1 << index)
}

// ExtractBits16 extracts bits from highBit to lowBit (inclusive)
// Example: ExtractBits16(0x1980, 13, 5) -> 0xCC (extracts bits 13..5)
func ExtractBits16(value uint16, highBit, lowBit uint8) uint16 {
	width := highBit - lowBit + 1
	mask := uint16((1 << width) - 1)
	return (value >> lowBit) & mask
}
