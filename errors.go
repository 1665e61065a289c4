package bulkfetch

import "github.com/pilot-net/bulkfetch/internal/ferrors"

// ErrorKind classifies why a run aborted.
type ErrorKind = ferrors.Kind

const (
	ConfigurationInvalid = ferrors.ConfigurationInvalid
	SourceInvalid         = ferrors.SourceInvalid
	SourceParse           = ferrors.SourceParse
	SourceIO              = ferrors.SourceIO
	TransformFailed       = ferrors.TransformFailed
	MemoryExceeded        = ferrors.MemoryExceeded
)

// KindOf reports the ErrorKind carried by err, if any. It unwraps through
// fmt.Errorf("%w") chains the same way errors.Is does.
func KindOf(err error) (ErrorKind, bool) {
	return ferrors.Of(err)
}
