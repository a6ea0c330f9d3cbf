//go:build !libmpv

package audio

import "github.com/cockroachdb/errors"

func newMPVOutput(opts Options) (Output, error) {
	return nil, errors.Wrap(ErrBackendUnavailable, "libmpv backend is not enabled; build with -tags libmpv")
}
