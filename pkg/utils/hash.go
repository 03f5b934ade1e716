package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// SampleChunk is the chunk size read by HashFileSampled.
const SampleChunk = 64 * 1024

// HashFile computes SHA256 hash of a file
func HashFile(filepath string) (string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HashFileSampled computes an xxhash over the first, middle and last
// SampleChunk bytes of a file. Files up to three chunks long are hashed
// whole. The size is mixed in so equal samples of different lengths differ.
func HashFileSampled(filepath string) (uint64, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return 0, err
	}
	size := fileInfo.Size()

	digest := xxhash.New()
	_, _ = digest.WriteString(strconv.FormatInt(size, 10))

	if size <= 3*SampleChunk {
		if _, err := io.Copy(digest, file); err != nil {
			return 0, err
		}
		return digest.Sum64(), nil
	}

	buf := make([]byte, SampleChunk)
	for _, off := range []int64{0, size/2 - SampleChunk/2, size - SampleChunk} {
		n, err := file.ReadAt(buf, off)
		if err != nil && err != io.EOF {
			return 0, err
		}
		_, _ = digest.Write(buf[:n])
	}
	return digest.Sum64(), nil
}
