//go:build !windows

package dropfolder

import (
	"io/fs"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// openExclusive opens path and takes a non-blocking exclusive flock on it. flock belongs to the open file
// description, so two opens in the same process contend exactly like two processes do.
//
// flock is advisory. It excludes other claimers but not a producer that is still writing the file, so
// producers must write outside the drop folder (or under a name without the drop extension) and rename
// the finished file in. A rename within one filesystem is atomic, so a claimer sees all of the file or none.
func openExclusive(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errContended
		}
		return nil, errors.WithStack(err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return nil, errContended
		}
		return nil, errors.Wrapf(err, "error locking %s", path)
	}
	return f, nil
}

// closeExclusive drops the lock and closes the file.
func closeExclusive(f *os.File) error {
	unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	closeErr := f.Close()
	if unlockErr != nil {
		return errors.WithStack(unlockErr)
	}
	return errors.WithStack(closeErr)
}
