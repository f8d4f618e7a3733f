package configuration

import (
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/G-Research/dropingester/internal/common/ingesterrors"
)

func (c DropIngesterConfiguration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if filepath.Clean(c.Listener.DropFolderPath) == filepath.Clean(c.Listener.ArchiveFolderPath) {
		return &ingesterrors.ErrInvalidArgument{
			Name:    "listener.archiveFolderPath",
			Value:   c.Listener.ArchiveFolderPath,
			Message: "archive folder must differ from the drop folder",
		}
	}
	return nil
}
