package transfer

import (
	"context"

	"github.com/pkg/errors"

	"golang.org/x/sync/errgroup"

	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/storage"
)

// TransferTree moves every file beneath root from the source store to the
// destination store, applying the session's ignore filter and running up to
// the session's job limit of per-file operations concurrently. Individual
// file failures are recorded in the returned summary without aborting the
// remaining files; only enumeration failures and context cancellation abort
// the transfer. The source store must implement storage.Walker.
func (s *Session) TransferTree(ctx context.Context, root string) (*Summary, error) {
	// Verify that the source store supports enumeration.
	walker, ok := s.source.(storage.Walker)
	if !ok {
		return nil, errors.New("source store does not support directory enumeration")
	}

	// Enumerate candidate paths up front, applying the ignore filter. Doing
	// this before dispatch keeps filter evaluation (which checks ancestor
	// directories) off the worker goroutines.
	var paths []string
	if err := walker.Walk(root, func(path string, _ *storage.Metadata) error {
		if s.filter.Ignored(path) {
			s.logger.Tracef("ignoring %s", path)
			return nil
		}
		paths = append(paths, path)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "unable to enumerate source")
	}

	// Create a pool of engines so that workers can retain hashing and
	// buffering state across files.
	engines := make(chan *delta.Engine, s.jobs)
	for i := 0; i < s.jobs; i++ {
		engines <- delta.NewEngine()
	}

	// Dispatch per-file operations with bounded concurrency. File failures
	// are recorded rather than returned, so the only group-level failure
	// mode is context cancellation.
	builder := &summaryBuilder{}
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.jobs)
	for _, path := range paths {
		path := path
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			engine := <-engines
			result, err := s.transferFile(engine, path, path)
			engines <- engine
			if err != nil {
				s.logger.Errorf("transfer of %s failed: %v", path, err)
				builder.recordError(path, err)
				return nil
			}
			if result.stats != nil {
				builder.recordDelta(result.stats)
			} else {
				builder.recordWholeFile(result.copied, result.fallback)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Success.
	return &builder.summary, nil
}
