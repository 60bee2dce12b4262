// Package hasher fingerprints converted outputs so a report can be checked
// against the files on disk later.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// DefaultLen is the number of hex chars recorded in reports (64 bits).
const DefaultLen = 16

// Sum returns the xxHash64 of data as hex, truncated to n chars when
// 0 < n < 16.
func Sum(data []byte, n int) string {
	return encode(xxhash.Sum64(data), n)
}

// SumReader is Sum over a stream.
func SumReader(r io.Reader, n int) (string, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return encode(d.Sum64(), n), nil
}

// SumFile hashes the file at path.
func SumFile(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, err := SumReader(f, n)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

func encode(v uint64, n int) string {
	full := hex.EncodeToString(binary.BigEndian.AppendUint64(nil, v))
	if n > 0 && n < len(full) {
		return full[:n]
	}
	return full
}
