package sqlstore

import (
	"errors"
	"fmt"
)

// ErrRecordExists is returned by Insert/BulkInsert when a record_id already
// present in the Store is offered again (§4.2, ERR_RECORD_EXISTS).
var ErrRecordExists = errors.New("record already exists")

// ErrUnknownRecord is returned by Update when the targeted record_id
// is not present in the Store.
var ErrUnknownRecord = errors.New("unknown record")

// StorageError wraps a lower-level driver/connection failure so callers can
// distinguish "the store rejected this operation" (ErrRecordExists,
// ErrUnknownRecord) from "the store could not be reached".
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("sqlstore: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
