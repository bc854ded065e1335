package manifest

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/delta/hashing"
)

const (
	// codecMagic identifies the binary signature index encoding.
	codecMagic = "FRSG"
	// codecVersion is the current encoding version.
	codecVersion = 1
	// codecRecordSize is the fixed width of an encoded block signature:
	// offset (8) + length (4) + weak hash (4) + strong digest (32).
	codecRecordSize = 8 + 4 + 4 + hashing.DigestLength
	// codecHeaderSize is the fixed width of the encoding header: magic (4) +
	// version (1) + algorithm (1) + block size (8) + record count (8).
	codecHeaderSize = 4 + 1 + 1 + 8 + 8
)

// EncodeIndex encodes a signature index into the versioned binary format
// used for manifest persistence.
func EncodeIndex(index *delta.SignatureIndex) []byte {
	// Preallocate the output.
	result := make([]byte, 0, codecHeaderSize+codecRecordSize*len(index.Signatures))

	// Encode the header.
	result = append(result, codecMagic...)
	result = append(result, codecVersion)
	result = append(result, byte(index.Algorithm))
	result = binary.BigEndian.AppendUint64(result, index.BlockSize)
	result = binary.BigEndian.AppendUint64(result, uint64(len(index.Signatures)))

	// Encode the records.
	for i := range index.Signatures {
		signature := &index.Signatures[i]
		result = binary.BigEndian.AppendUint64(result, signature.Offset)
		result = binary.BigEndian.AppendUint32(result, signature.Length)
		result = binary.BigEndian.AppendUint32(result, signature.Weak)
		result = append(result, signature.Strong...)
	}

	// Done.
	return result
}

// DecodeIndex decodes a signature index from its binary encoding. Decoding
// is strict: truncated, oversized, or otherwise malformed payloads are
// rejected, and the decoded index is validated before being returned.
func DecodeIndex(data []byte) (*delta.SignatureIndex, error) {
	// Verify the header.
	if len(data) < codecHeaderSize {
		return nil, errors.New("encoded index truncated")
	}
	if !bytes.Equal(data[:4], []byte(codecMagic)) {
		return nil, errors.New("invalid magic")
	}
	if data[4] != codecVersion {
		return nil, errors.New("unsupported encoding version")
	}
	algorithm := hashing.Algorithm(data[5])
	if !algorithm.IsDefault() && !algorithm.Supported() {
		return nil, errors.New("unknown hashing algorithm")
	}
	blockSize := binary.BigEndian.Uint64(data[6:14])
	count := binary.BigEndian.Uint64(data[14:22])

	// Verify the payload length.
	if count > uint64(len(data)-codecHeaderSize)/codecRecordSize {
		return nil, errors.New("encoded index truncated")
	}
	if uint64(len(data)-codecHeaderSize) != count*codecRecordSize {
		return nil, errors.New("encoded index has trailing data")
	}

	// Decode the records.
	index := &delta.SignatureIndex{
		BlockSize: blockSize,
		Algorithm: algorithm,
	}
	if count > 0 {
		index.Signatures = make([]delta.BlockSignature, count)
		record := data[codecHeaderSize:]
		for i := uint64(0); i < count; i++ {
			strong := make([]byte, hashing.DigestLength)
			copy(strong, record[16:16+hashing.DigestLength])
			index.Signatures[i] = delta.BlockSignature{
				Offset: binary.BigEndian.Uint64(record[0:8]),
				Length: binary.BigEndian.Uint32(record[8:12]),
				Weak:   binary.BigEndian.Uint32(record[12:16]),
				Strong: strong,
			}
			record = record[codecRecordSize:]
		}
	}

	// Validate the decoded index.
	if err := index.EnsureValid(); err != nil {
		return nil, errors.Wrap(err, "decoded index invalid")
	}

	// Success.
	return index, nil
}
