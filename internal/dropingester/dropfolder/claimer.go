package dropfolder

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/G-Research/dropingester/internal/common/appcontext"
	"github.com/G-Research/dropingester/internal/dropingester/metrics"
)

// errContended means another holder owns the candidate, or it disappeared before it could be opened.
var errContended = errors.New("file is held elsewhere")

// ClaimedFile is a drop file owned exclusively by one worker until Release is called.
type ClaimedFile struct {
	// Absolute path of the file in the drop folder
	Path string
	// File name without extension. Used to look up the file's metadata.
	Id string
	// Full content, read while holding the lock
	Content []byte

	handle      *os.File
	releaseOnce sync.Once
	releaseErr  error
}

// Release gives up ownership of the file. It is safe to call more than once.
func (f *ClaimedFile) Release() error {
	f.releaseOnce.Do(func() {
		if f.handle != nil {
			f.releaseErr = closeExclusive(f.handle)
		}
	})
	return f.releaseErr
}

// Claimer takes exclusive ownership of files in a drop folder and moves them to an archive folder when done.
// Mutual exclusion comes only from OS file locks, so any number of Claimers in any number of processes can share
// a folder.
type Claimer struct {
	dropFolder    string
	archiveFolder string
	extension     string
	metrics       *metrics.Metrics
}

// NewClaimer resolves both folders to absolute paths. A leading ~ is expanded to the user's home directory.
func NewClaimer(dropFolder string, archiveFolder string, extension string, metrics *metrics.Metrics) (*Claimer, error) {
	dropFolder, err := absolutePath(dropFolder)
	if err != nil {
		return nil, err
	}
	archiveFolder, err = absolutePath(archiveFolder)
	if err != nil {
		return nil, err
	}
	return &Claimer{
		dropFolder:    dropFolder,
		archiveFolder: archiveFolder,
		extension:     extension,
		metrics:       metrics,
	}, nil
}

func (c *Claimer) DropFolder() string {
	return c.dropFolder
}

func (c *Claimer) ArchiveFolder() string {
	return c.archiveFolder
}

// Claim returns the first eligible file that no one else holds, or nil if there is none. Contended files are
// skipped silently. Any other I/O failure aborts the scan.
func (c *Claimer) Claim(ctx *appcontext.Context) (*ClaimedFile, error) {
	candidates, err := c.Candidates()
	if err != nil {
		return nil, err
	}
	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, err := c.tryClaim(path)
		if errors.Is(err, errContended) {
			c.metrics.RecordClaimContention()
			continue
		}
		if err != nil {
			return nil, err
		}
		c.metrics.RecordFileClaimed()
		return file, nil
	}
	return nil, nil
}

// Candidates lists the eligible files currently in the drop folder, creating the folder if needed.
func (c *Claimer) Candidates() ([]string, error) {
	if err := os.MkdirAll(c.dropFolder, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	entries, err := os.ReadDir(c.dropFolder)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	candidates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(entry.Name()), c.extension) {
			continue
		}
		candidates = append(candidates, filepath.Join(c.dropFolder, entry.Name()))
	}
	return candidates, nil
}

func (c *Claimer) tryClaim(path string) (*ClaimedFile, error) {
	handle, err := openExclusive(path)
	if err != nil {
		return nil, err
	}
	file := &ClaimedFile{
		Path:   path,
		Id:     fileId(path),
		handle: handle,
	}

	// The holder before us may have archived the file between our scan and our lock, in which case we now hold
	// the archived copy. A new file may also have been dropped under the same name.
	held, err := handle.Stat()
	if err != nil {
		_ = file.Release()
		return nil, errors.WithStack(err)
	}
	current, err := os.Stat(path)
	if err != nil || !os.SameFile(held, current) {
		_ = file.Release()
		return nil, errContended
	}

	content, err := io.ReadAll(handle)
	if err != nil {
		_ = file.Release()
		return nil, errors.Wrapf(err, "error reading %s", path)
	}
	file.Content = content
	return file, nil
}

// Archive moves a claimed file into the archive folder, replacing any file of the same name. It must be called
// while the file is still held, otherwise another worker could claim it again before it moves.
func (c *Claimer) Archive(file *ClaimedFile) error {
	if err := os.MkdirAll(c.archiveFolder, 0o755); err != nil {
		return errors.WithStack(err)
	}
	dest := filepath.Join(c.archiveFolder, filepath.Base(file.Path))
	renameErr := os.Rename(file.Path, dest)
	if renameErr == nil {
		return nil
	}

	// Rename fails across devices. We already hold the full content, so write it out and remove the source.
	if err := os.WriteFile(dest, file.Content, 0o644); err != nil {
		return errors.Wrapf(err, "error archiving %s after rename failed: %v", file.Path, renameErr)
	}
	if err := os.Remove(file.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "error removing %s after copying it to the archive", file.Path)
	}
	return nil
}

func absolutePath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.WithMessagef(err, "error expanding %s", path)
	}
	abs, err := filepath.Abs(expanded)
	return abs, errors.WithStack(err)
}

func fileId(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
