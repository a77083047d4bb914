package quarantine

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// ErrDigestMismatch means the copy read back differently from what was written.
var ErrDigestMismatch = errors.New("copy digest mismatch")

// copyAcross copies src to a new file dst, verifies the copy, and only then removes src.
// On any failure dst is removed again and src is untouched.
func copyAcross(src, dst string) (digest string, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return "", err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return "", err
	}

	discard := func(cause error) (string, error) {
		_ = os.Remove(dst)
		return "", cause
	}

	srcSum := newDigest()
	if _, err = io.Copy(io.MultiWriter(out, srcSum), in); err != nil {
		_ = out.Close()
		return discard(fmt.Errorf("copy to '%s' failed: %w", dst, err))
	}
	if err = out.Sync(); err != nil {
		_ = out.Close()
		return discard(fmt.Errorf("sync of '%s' failed: %w", dst, err))
	}
	if err = out.Close(); err != nil {
		return discard(fmt.Errorf("close of '%s' failed: %w", dst, err))
	}

	dstSum, err := fileDigest(dst)
	if err != nil {
		return discard(fmt.Errorf("couldn't verify '%s': %w", dst, err))
	}
	if !bytes.Equal(srcSum.Sum(nil), dstSum) {
		return discard(fmt.Errorf("%w: '%s'", ErrDigestMismatch, dst))
	}

	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	_ = in.Close()
	if err = os.Remove(src); err != nil {
		return discard(fmt.Errorf("couldn't remove source after copy: %w", err))
	}

	return hex.EncodeToString(dstSum), nil
}

func newDigest() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only possible with an oversized key
		panic(err)
	}
	return h
}

func fileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	h := newDigest()
	if _, err = io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
