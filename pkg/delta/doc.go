// Package delta implements the block-level differencing engine at the heart
// of Ferry: signature generation over an existing destination, a rolling-hash
// scanner that matches source content against known destination blocks, the
// instruction stream this produces, and the reconstruction procedure that
// replays it against a staging target. The design follows the rsync
// algorithm, using a cheap rolling checksum as a candidate filter and a
// strong cryptographic digest for match confirmation.
package delta
