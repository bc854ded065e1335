package delta

const (
	// weakHashModulus is the weak hash modulus. The rsync technical report
	// now recommends the largest prime less than 2^16, but a power of two is
	// fine as well and keeps the arithmetic cheap.
	weakHashModulus = 1 << 16
)

// weakHash computes a fast checksum that can be rolled (updated without full
// recomputation). This particular hash is detailed on page 55 of the rsync
// thesis. It is not theoretically optimal, but it's fine for our purposes.
// Short blocks are hashed with the full block size convention - all that
// matters is that signature generation and scanning remain consistent with
// each other.
func weakHash(data []byte, blockSize uint64) (uint32, uint32, uint32) {
	// Compute hash components.
	var r1, r2 uint32
	for i, b := range data {
		r1 += uint32(b)
		r2 += (uint32(blockSize) - uint32(i)) * uint32(b)
	}
	r1 = r1 % weakHashModulus
	r2 = r2 % weakHashModulus

	// Compute the hash.
	result := r1 + weakHashModulus*r2

	// Done.
	return result, r1, r2
}

// rollWeakHash updates the checksum computed by weakHash by adding and
// removing a byte, giving O(1) amortized cost per scanned byte.
func rollWeakHash(r1, r2 uint32, out, in byte, blockSize uint64) (uint32, uint32, uint32) {
	// Update components.
	r1 = (r1 - uint32(out) + uint32(in)) % weakHashModulus
	r2 = (r2 - uint32(blockSize)*uint32(out) + r1) % weakHashModulus

	// Compute the hash.
	result := r1 + weakHashModulus*r2

	// Done.
	return result, r1, r2
}
