//go:build windows

package dropfolder

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// openExclusive opens path for reading while denying read and write access to every other opener. Deletion is
// still shared so the holder can move the file into the archive folder. Producers still rename finished files
// into the drop folder, as they must on unix.
func openExclusive(path string) (*os.File, error) {
	pathp, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	h, err := windows.CreateFile(
		pathp,
		windows.GENERIC_READ,
		windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
			errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
			errors.Is(err, windows.ERROR_FILE_NOT_FOUND) ||
			errors.Is(err, windows.ERROR_PATH_NOT_FOUND) {
			return nil, errContended
		}
		return nil, errors.Wrapf(err, "error opening %s", path)
	}
	return os.NewFile(uintptr(h), path), nil
}

func closeExclusive(f *os.File) error {
	return errors.WithStack(f.Close())
}
