package main

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

const (
	// Max file size for checksums is 2GB
	constMaxFileSize = 2147483648
)

type HashType uint8

const (
	HashNull HashType = iota
	HashTypeMD5
	HashTypeSHA1
	HashTypeSHA256
	HashTypeSHA512
)

var hashNames = map[HashType]string{
	HashTypeMD5:    "md5",
	HashTypeSHA1:   "sha1",
	HashTypeSHA256: "sha256",
	HashTypeSHA512: "sha512",
}

func (h HashType) String() string {
	if name, ok := hashNames[h]; ok {
		return name
	}
	return "null"
}

// ParseHashType maps a checksum name to its [HashType].
func ParseHashType(s string) (HashType, error) {
	for ht, name := range hashNames {
		if strings.EqualFold(s, name) {
			return ht, nil
		}
	}
	return HashNull, fmt.Errorf("hash type (%s) not supported", s)
}

var HashFuncs = map[HashType]func() hash.Hash{
	HashTypeMD5:    md5.New,
	HashTypeSHA1:   sha1.New,
	HashTypeSHA256: sha256.New,
	HashTypeSHA512: sha512.New,
}

type ErrFileTooLarge struct {
	Path string
	Size int64
	Max  int64
}

func (e *ErrFileTooLarge) Error() string {
	return fmt.Sprintf("file size of '%s' is too large (%d bytes) to checksum (max allowed: %d bytes)",
		e.Path, e.Size, e.Max)
}

func NewErrFileTooLarge(path string, size int64) *ErrFileTooLarge {
	return &ErrFileTooLarge{Path: path, Size: size, Max: constMaxFileSize}
}

// MultiHasher computes several checksums over a single pass of a reader.
type MultiHasher struct {
	todo []HashType
}

func NewMultiHasher(types ...HashType) *MultiHasher {
	return &MultiHasher{todo: types}
}

func (m *MultiHasher) Hash(r io.Reader) (*Checksums, error) {
	res := new(Checksums)
	if len(m.todo) == 0 {
		return res, nil
	}

	hashers := make(map[HashType]hash.Hash, len(m.todo))
	writers := make([]io.Writer, 0, len(m.todo))
	for _, v := range m.todo {
		f, ok := HashFuncs[v]
		if !ok {
			return res, fmt.Errorf("hash type (%d) not supported", v)
		}
		h := f()
		hashers[v] = h
		writers = append(writers, h)
	}

	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return res, err
	}

	for ht, h := range hashers {
		res.Set(ht, hex.EncodeToString(h.Sum(nil)))
	}

	return res, nil
}

// HashFile checksums the file at path with every type the hasher was built with.
func (m *MultiHasher) HashFile(path string) (*Checksums, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open '%s': %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	fStat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fStat.Size() > int64(constMaxFileSize) {
		return nil, NewErrFileTooLarge(path, fStat.Size())
	}

	sums, err := m.Hash(f)
	if err != nil {
		return nil, fmt.Errorf("couldn't read path (%s) to get checksums: %w", path, err)
	}
	return sums, nil
}
