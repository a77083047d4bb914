//go:build windows

package quarantine

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

func renameNoReplace(src, dst string) error {
	from, err := windows.UTF16PtrFromString(src)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return err
	}
	// no MOVEFILE_REPLACE_EXISTING: an existing destination fails with ERROR_ALREADY_EXISTS
	if err = windows.MoveFileEx(from, to, windows.MOVEFILE_WRITE_THROUGH); err != nil {
		return &os.LinkError{Op: "movefileex", Old: src, New: dst, Err: err}
	}
	return nil
}

func isCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
