package permission

// Mask64 is a fixed-width permission set; bit i is set when the permission
// registered at bit i is granted.
type Mask64 uint64

// Has reports whether bit is set. Out-of-range bits are never set.
func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return m&(1<<uint(bit)) != 0
}

// Set grants bit. Out-of-range bits are ignored.
func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << uint(bit)
}

// Clear revokes bit.
func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= 1 << uint(bit)
}

// Union returns the permissions granted by either mask.
func (m Mask64) Union(other Mask64) Mask64 {
	return m | other
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
