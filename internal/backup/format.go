package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the archive layout written by Write.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of a decompressed archive (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Header is the plain JSON first line of an archive. It can be read
// without decompressing the payload.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	RunCount  int       `json:"run_count"`
	RowCount  int       `json:"row_count"`
}

// Write stores a as a header line followed by the gzip-compressed JSON
// payload. The checksum covers the compressed bytes.
func Write(path string, a *Archive) (*Header, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &Header{
		Version:   FormatVersion,
		CreatedAt: a.CreatedAt,
		Checksum:  checksum(compressed.Bytes()),
		RunCount:  len(a.Runs),
		RowCount:  a.RowCount(),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	w := bufio.NewWriter(f)
	w.Write(headerBytes)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return header, nil
}

// Read verifies and decompresses the archive at path.
func Read(path string) (*Archive, error) {
	header, payload, err := readVerified(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var a Archive
	if err := json.Unmarshal(decompressed, &a); err != nil {
		return nil, fmt.Errorf("parsing archive: %w", err)
	}
	if len(a.Runs) != header.RunCount {
		return nil, fmt.Errorf("archive holds %d runs, header says %d", len(a.Runs), header.RunCount)
	}
	return &a, nil
}

// ReadHeader reads only the header line of an archive.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	header, _, err := readHeader(bufio.NewReader(f))
	return header, err
}

// Verify checks the payload checksum of an archive without decompressing it.
func Verify(path string) error {
	_, _, err := readVerified(path)
	return err
}

func readHeader(r *bufio.Reader) (*Header, *bufio.Reader, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported archive version %d", header.Version)
	}
	return &header, r, nil
}

func readVerified(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	header, rest, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, nil, err
	}
	payload, err := io.ReadAll(rest)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if got := checksum(payload); got != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, got)
	}
	return header, payload, nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}
