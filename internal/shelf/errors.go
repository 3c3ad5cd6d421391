package shelf

import (
	"errors"

	"cloudshelf/internal/store"
)

var (
	// ErrKeyNotFound is returned by Get and Delete for absent keys.
	ErrKeyNotFound = store.ErrKeyNotFound
	// ErrClosed is returned by every operation on a closed shelf except Close.
	ErrClosed = store.ErrClosed

	ErrReadOnly          = errors.New("shelf is read-only")
	ErrStoreDoesNotExist = errors.New("store does not exist")
	// ErrCanNotCreateStore wraps the backend error that made Create fail.
	ErrCanNotCreateStore = errors.New("can not create store")
	// ErrClearFailed wraps the first delete that failed while clearing.
	ErrClearFailed = errors.New("clearing store failed")
	ErrInvalidMode = errors.New("invalid open mode")
)
