package service

import (
	"errors"
	"fmt"

	"github.com/digkill/StageRank/internal/database"
)

var ErrStageNotFound = errors.New("stage not found")
var ErrUserNotFound = errors.New("user not found")
var ErrInvalidUserID = errors.New("invalid user id")

// StorageError is any failure inside a unit of work. Class is safe to report
// to clients; Err is for logs only.
type StorageError struct {
	Class string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Class, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(err error) error {
	var serr *StorageError
	if errors.As(err, &serr) {
		return err
	}
	return &StorageError{Class: database.Classify(err), Err: err}
}
