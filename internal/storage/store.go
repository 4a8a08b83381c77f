package storage

import (
	"context"
	"errors"
	"io"
)

// ErrTooLarge reports a payload that exceeded the configured byte limit.
var ErrTooLarge = errors.New("storage: payload exceeds size limit")

// Store abstracts artifact persistence for inputs and published outputs.
//
// Save streams an incoming artifact under key and enforces limit when it is
// positive. Publish promotes a fully written staging file to its final key;
// a partially written artifact must never be readable under that key.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, limit int64) (ref string, size int64, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, int64, error)
	Publish(ctx context.Context, key, srcPath string) (string, error)
	Remove(ctx context.Context, ref string) error
	Stat(ctx context.Context, ref string) (int64, error)
	StagingDir() string
}
