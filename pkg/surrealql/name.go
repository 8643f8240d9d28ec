package surrealql

// IndexToName maps 0, 1, ... 25, 26, 27 to a, b, ... z, aa, ab in bijective
// base 26. Negative input yields "".
func IndexToName(n int) string {
	if n < 0 {
		return ""
	}
	return IndexToName64(uint64(n))
}

// IndexToName64 is IndexToName for wide counters such as millisecond
// timestamps.
func IndexToName64(n uint64) string {
	var buf [16]byte
	i := len(buf)
	m := n
	for {
		i--
		buf[i] = byte('a' + m%26)
		if m < 26 {
			break
		}
		m = m/26 - 1
	}
	return string(buf[i:])
}
