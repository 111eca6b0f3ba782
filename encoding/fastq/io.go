package fastq

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// OpenReader opens path for reading and returns an io.Reader over its
// contents, transparently gzip-decompressing when path ends in ".gz". The
// returned close func closes both the gzip reader (if any) and the
// underlying file.File, and must be called exactly once.
func OpenReader(ctx context.Context, path string) (io.Reader, func() error, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "open", path)
	}
	r := f.Reader(ctx)
	if !strings.HasSuffix(path, ".gz") {
		return r, func() error { return f.Close(ctx) }, nil
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		_ = f.Close(ctx)
		return nil, nil, errors.E(err, "gzip open", path)
	}
	return gz, func() error {
		e := errors.Once{}
		e.Set(gz.Close())
		e.Set(f.Close(ctx))
		return e.Err()
	}, nil
}

// CreateWriter creates path for writing and returns an io.Writer over it,
// transparently gzip-compressing when path ends in ".gz". The returned close
// func flushes and closes the gzip writer (if any) before closing the
// underlying file.File, and must be called exactly once.
func CreateWriter(ctx context.Context, path string) (io.Writer, func() error, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "create", path)
	}
	w := f.Writer(ctx)
	if !strings.HasSuffix(path, ".gz") {
		return w, func() error { return f.Close(ctx) }, nil
	}
	gz := gzip.NewWriter(w)
	return gz, func() error {
		e := errors.Once{}
		e.Set(gz.Close())
		e.Set(f.Close(ctx))
		return e.Err()
	}, nil
}
