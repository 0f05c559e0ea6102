package resolver

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Deduped collapses concurrent resolutions of the same specifier from the
// same importer into one filesystem walk. Callers each get their own copy
// of the result.
//
// The shared walk is detached from the caller that started it, so one
// caller giving up does not fail the others. Each caller still returns as
// soon as its own context is done.
type Deduped struct {
	resolver *Resolver
	group    singleflight.Group
}

func NewDeduped(resolver *Resolver) *Deduped {
	return &Deduped{resolver: resolver}
}

func (d *Deduped) Resolve(ctx context.Context, id, importer string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shared := d.group.DoChan(id+"\x00"+importer, func() (any, error) {
		return d.resolver.Resolve(context.WithoutCancel(ctx), id, importer)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-shared:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			d.resolver.options.Logger.V(2).Info("shared in-flight resolution", "id", id, "importer", importer)
		}
		resolved, _ := res.Val.(*Result)
		return resolved.clone(), nil
	}
}
