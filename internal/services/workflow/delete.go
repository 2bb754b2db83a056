package workflow

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/repository"
)

// deleteStep tears down no-longer-referenced storage keys, both tiers in
// parallel. Missing keys are not an error; the whole step is re-invocable.
type deleteStep struct {
	objects repository.ObjectStore
}

func NewDeleteStep(objects repository.ObjectStore) Step {
	return &deleteStep{objects: objects}
}

func (s *deleteStep) Name() string { return "delete" }

func (s *deleteStep) Run(ctx context.Context, env *domain.MutationEnvelope) error {
	del := env.Assets.Delete
	if del.Empty() {
		return nil
	}

	var group multierror.Group
	group.Go(func() error {
		return s.objects.DeleteBatch(ctx, del.Private)
	})
	group.Go(func() error {
		return s.objects.DeleteBatch(ctx, del.Public)
	})
	return group.Wait().ErrorOrNil()
}
