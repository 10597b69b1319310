package s3

import (
	"errors"
	"io"
)

var ErrKeyNotFound = errors.New("key not found")

type BasicClient interface {
	Lister
	Getter
	ReaderGetter
	Putter
}

type Lister interface {
	List(key string) (keys []string, err error)
}

type Getter interface {
	// Get returns ErrKeyNotFound if the given key doesn't exist.
	Get(key string) (data []byte, err error)
}

// ReaderGetter streams an object so large data files don't have to be buffered whole.
type ReaderGetter interface {
	// GetReader returns ErrKeyNotFound if the given key doesn't exist.
	// The caller must close the returned reader.
	GetReader(key string) (r io.ReadCloser, err error)
}

type Putter interface {
	Put(key string, data []byte) (err error)
}
