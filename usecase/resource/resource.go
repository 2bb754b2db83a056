package resource

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/exhibitly/backend/asset"
	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/repository"
	"github.com/exhibitly/backend/usecase"
)

// SubmitResult is returned by every mutation: the resource id plus the handle
// of the asynchronous workflow run that will materialize derived assets.
type SubmitResult struct {
	ID              string `json:"id"`
	ExecutionHandle string `json:"execution_handle"`
}

// UpdateInput carries the fields a partial update may overwrite. Nil pointers
// keep the stored value.
type UpdateInput struct {
	ReferenceName *string
	LangOptions   *[]domain.LangOption
	Images        *[]domain.ImageRef
}

// UseCase orchestrates resource mutations: synchronous, authoritative store
// writes followed by fire-and-forget workflow dispatch of the asset diff.
type UseCase struct {
	resources  repository.ResourceRepository
	dispatcher usecase.Dispatcher
	logger     *zap.Logger
}

func New(resources repository.ResourceRepository, dispatcher usecase.Dispatcher, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		resources:  resources,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SubmitCreate validates and persists a new resource in PROCESSING state,
// then dispatches the full asset add-set to the workflow.
func (uc *UseCase) SubmitCreate(ctx context.Context, res *domain.Resource) (SubmitResult, error) {
	if res == nil {
		return SubmitResult{}, domain.ErrInvalidPayload
	}
	res.ID = uuid.NewString()
	res.Status = domain.StatusProcessing
	if err := res.Validate(); err != nil {
		return SubmitResult{}, err
	}

	if err := uc.resources.Create(ctx, res); err != nil {
		return SubmitResult{}, err
	}

	handle, err := uc.dispatch(ctx, domain.ActionCreate, res, asset.Diff(nil, res))
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{ID: res.ID, ExecutionHandle: handle}, nil
}

// SubmitUpdate reads the current snapshot, applies the provided fields,
// performs the conditional write and dispatches the old→new asset diff.
func (uc *UseCase) SubmitUpdate(ctx context.Context, kind domain.Kind, id, customerID string, input UpdateInput) (SubmitResult, error) {
	current, err := uc.resources.Get(ctx, kind, id, customerID)
	if err != nil {
		return SubmitResult{}, err
	}

	next := *current
	if input.ReferenceName != nil {
		next.ReferenceName = *input.ReferenceName
	}
	if input.LangOptions != nil {
		next.LangOptions = *input.LangOptions
	}
	if input.Images != nil {
		next.Images = *input.Images
	}
	next.Status = domain.StatusProcessing
	if err := next.Validate(); err != nil {
		return SubmitResult{}, err
	}

	if err := uc.resources.Update(ctx, &next); err != nil {
		return SubmitResult{}, err
	}

	handle, err := uc.dispatch(ctx, domain.ActionUpdate, &next, asset.Diff(current, &next))
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{ID: next.ID, ExecutionHandle: handle}, nil
}

// SubmitDelete removes the store record synchronously, so subsequent reads
// miss immediately, and dispatches asynchronous teardown of derived assets.
func (uc *UseCase) SubmitDelete(ctx context.Context, kind domain.Kind, id, customerID string) (SubmitResult, error) {
	current, err := uc.resources.Get(ctx, kind, id, customerID)
	if err != nil {
		return SubmitResult{}, err
	}

	if err := uc.resources.Remove(ctx, kind, id); err != nil {
		return SubmitResult{}, err
	}

	handle, err := uc.dispatch(ctx, domain.ActionDelete, current, asset.Diff(current, nil))
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{ID: id, ExecutionHandle: handle}, nil
}

// Get returns one resource scoped to its owner.
func (uc *UseCase) Get(ctx context.Context, kind domain.Kind, id, customerID string) (*domain.Resource, error) {
	return uc.resources.Get(ctx, kind, id, customerID)
}

// List returns an owner-scoped page.
func (uc *UseCase) List(ctx context.Context, kind domain.Kind, customerID string, q repository.OwnerQuery) (repository.Page, error) {
	return uc.resources.QueryByOwner(ctx, kind, customerID, q)
}

// dispatch hands the envelope to the workflow. A dispatch failure after a
// successful store mutation is surfaced, not rolled back: the record is
// authoritative and the reconciliation sweeper re-dispatches stale
// PROCESSING resources.
func (uc *UseCase) dispatch(ctx context.Context, action domain.Action, res *domain.Resource, assets domain.AssetPayload) (string, error) {
	env := domain.MutationEnvelope{
		EntityID: res.ID,
		Entity:   *res,
		Action:   action,
		Actor:    domain.Actor{CustomerID: res.CustomerID},
		Assets:   assets,
	}
	handle, err := uc.dispatcher.Dispatch(ctx, env)
	if err != nil {
		uc.logger.Error("workflow dispatch failed after store mutation",
			zap.String("entity_id", res.ID),
			zap.String("action", string(action)),
			zap.Error(err))
		return "", domain.WrapError(domain.ErrCodeInternal, "workflow dispatch failed", err)
	}
	uc.logger.Info("mutation dispatched",
		zap.String("entity_id", res.ID),
		zap.String("action", string(action)),
		zap.String("execution_handle", handle),
		zap.Time("dispatched_at", time.Now()))
	return handle, nil
}
