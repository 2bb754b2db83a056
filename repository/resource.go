package repository

import (
	"context"
	"time"

	"github.com/exhibitly/backend/domain"
)

// OwnerQuery selects a page of resources for one customer.
type OwnerQuery struct {
	PageSize          int
	Cursor            Cursor
	ReferenceNameLike string
}

// Page is one slice of an owner query result. NextPageKey is present iff more
// items exist beyond this page.
type Page struct {
	Items       []domain.Resource
	Count       int
	NextPageKey *Cursor
}

// ResourcePatch names the fields a partial update may overwrite. Nil pointers
// leave the stored value untouched.
type ResourcePatch struct {
	ReferenceName *string
	LangOptions   *[]domain.LangOption
	Images        *[]domain.ImageRef
	Status        *domain.Status
}

// ResourceRepository is the versioned document store for one logical table per
// resource kind.
type ResourceRepository interface {
	// Get returns the resource, or NotFound if absent or if customerID is
	// non-empty and does not match the stored owner.
	Get(ctx context.Context, kind domain.Kind, id, customerID string) (*domain.Resource, error)
	Create(ctx context.Context, res *domain.Resource) error
	// Patch applies the provided fields and returns the post-update snapshot.
	Patch(ctx context.Context, kind domain.Kind, id string, patch ResourcePatch) (*domain.Resource, error)
	// Update performs a conditional write: it succeeds only when the stored
	// version equals res.Version at call time, and bumps the version
	// monotonically. A mismatch yields ErrConcurrentUpdate.
	Update(ctx context.Context, res *domain.Resource) error
	Remove(ctx context.Context, kind domain.Kind, id string) error
	QueryByOwner(ctx context.Context, kind domain.Kind, customerID string, q OwnerQuery) (Page, error)
	// ListStale returns PROCESSING resources not touched since olderThan.
	ListStale(ctx context.Context, kind domain.Kind, olderThan time.Time) ([]domain.Resource, error)
}
