package cache

import "github.com/cockroachdb/errors"

var (
	// ErrNotImplemented is returned by every method of UnimplementedBackend.
	ErrNotImplemented = errors.New("cache: backend operation not implemented")

	// ErrMalformedEntry marks a stored entry that could not be decoded
	// (unparsable timestamp, corrupt value). Test with errors.Is.
	ErrMalformedEntry = errors.New("cache: malformed entry")

	// ErrInvalidConfig is returned by New when the configuration is unusable.
	ErrInvalidConfig = errors.New("cache: invalid configuration")

	// ErrNotBinary is returned when binary mode is on and the computed value
	// cannot be coerced to bytes.
	ErrNotBinary = errors.New("cache: value cannot be stored as bytes")

	// ErrInvalidKey is returned by backends that cannot store a key as given,
	// such as a file name containing a path separator.
	ErrInvalidKey = errors.New("cache: invalid key")
)

func malformed(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrMalformedEntry)
}
