package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/repository"
)

// physicalPageRows bounds how many rows one keyset query fetches. QueryByOwner
// accumulates across physical pages until the requested page size is reached
// or the partition is exhausted.
const physicalPageRows = 64

const resourceColumns = `id, customer_id, kind, institution_id, exhibition_id, reference_name, lang_options, images, status, version, created_at, updated_at`

var tableByKind = map[domain.Kind]string{
	domain.KindInstitution: "institutions",
	domain.KindExhibition:  "exhibitions",
	domain.KindExhibit:     "exhibits",
}

type resourceRepository struct {
	pool *pgxpool.Pool
}

// NewResourceRepository returns a Postgres-backed ResourceRepository keeping
// one table per resource kind.
func NewResourceRepository(pool *pgxpool.Pool) repository.ResourceRepository {
	return &resourceRepository{pool: pool}
}

func (r *resourceRepository) Get(ctx context.Context, kind domain.Kind, id, customerID string) (*domain.Resource, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, resourceColumns, table)
	row := r.pool.QueryRow(ctx, query, id)
	res, err := scanResource(row)
	if err != nil {
		return nil, err
	}
	// Owner mismatch reads identically to absence: no existence leakage
	// across tenants.
	if customerID != "" && res.CustomerID != customerID {
		return nil, domain.ErrResourceNotFound
	}
	return res, nil
}

func (r *resourceRepository) Create(ctx context.Context, res *domain.Resource) error {
	if res == nil {
		return domain.ErrInvalidPayload
	}
	table, err := tableFor(res.Kind)
	if err != nil {
		return err
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.Version == 0 {
		res.Version = time.Now().UnixMilli()
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, customer_id, kind, institution_id, exhibition_id, reference_name, lang_options, images, status, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at, updated_at
	`, table)

	if err := r.pool.QueryRow(ctx, query,
		res.ID,
		res.CustomerID,
		string(res.Kind),
		nullString(res.InstitutionID),
		nullString(res.ExhibitionID),
		res.ReferenceName,
		marshalJSON(res.LangOptions),
		marshalJSON(res.Images),
		string(res.Status),
		res.Version,
	).Scan(&res.CreatedAt, &res.UpdatedAt); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "resource create failed", err)
	}
	return nil
}

func (r *resourceRepository) Patch(ctx context.Context, kind domain.Kind, id string, patch repository.ResourcePatch) (*domain.Resource, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	next := 2
	if patch.ReferenceName != nil {
		sets = append(sets, fmt.Sprintf("reference_name = $%d", next))
		args = append(args, *patch.ReferenceName)
		next++
	}
	if patch.LangOptions != nil {
		sets = append(sets, fmt.Sprintf("lang_options = $%d", next))
		args = append(args, marshalJSON(*patch.LangOptions))
		next++
	}
	if patch.Images != nil {
		sets = append(sets, fmt.Sprintf("images = $%d", next))
		args = append(args, marshalJSON(*patch.Images))
		next++
	}
	if patch.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", next))
		args = append(args, string(*patch.Status))
		next++
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 RETURNING %s`,
		table, strings.Join(sets, ", "), resourceColumns)
	row := r.pool.QueryRow(ctx, query, args...)
	return scanResource(row)
}

func (r *resourceRepository) Update(ctx context.Context, res *domain.Resource) error {
	if res == nil {
		return domain.ErrInvalidPayload
	}
	table, err := tableFor(res.Kind)
	if err != nil {
		return err
	}

	expected := res.Version
	nextVersion := res.NextVersion(time.Now())

	query := fmt.Sprintf(`
	UPDATE %s
	SET institution_id = $3,
		exhibition_id = $4,
		reference_name = $5,
		lang_options = $6,
		images = $7,
		status = $8,
		version = $9,
		updated_at = NOW()
	WHERE id = $1 AND version = $2
	`, table)

	tag, err := r.pool.Exec(ctx, query,
		res.ID,
		expected,
		nullString(res.InstitutionID),
		nullString(res.ExhibitionID),
		res.ReferenceName,
		marshalJSON(res.LangOptions),
		marshalJSON(res.Images),
		string(res.Status),
		nextVersion,
	)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "resource update failed", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a vanished row.
		if _, getErr := r.Get(ctx, res.Kind, res.ID, ""); getErr != nil {
			return getErr
		}
		return domain.ErrConcurrentUpdate
	}

	res.Version = nextVersion
	res.Touch(time.Now())
	return nil
}

func (r *resourceRepository) Remove(ctx context.Context, kind domain.Kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "resource delete failed", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

func (r *resourceRepository) QueryByOwner(ctx context.Context, kind domain.Kind, customerID string, q repository.OwnerQuery) (repository.Page, error) {
	table, err := tableFor(kind)
	if err != nil {
		return repository.Page{}, err
	}
	pageSize := q.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	after, err := startKey(q.Cursor)
	if err != nil {
		return repository.Page{}, err
	}

	query := fmt.Sprintf(`
	SELECT %s FROM %s
	WHERE customer_id = $1
	  AND ($2 = '' OR reference_name ILIKE '%%' || $2 || '%%')
	  AND (created_at, id) > (to_timestamp($3::double precision / 1e6), $4)
	ORDER BY created_at, id
	LIMIT $5
	`, resourceColumns, table)

	var items []domain.Resource
	exhausted := false
	for len(items) <= pageSize && !exhausted {
		limit := pageSize + 1 - len(items)
		if limit > physicalPageRows {
			limit = physicalPageRows
		}
		chunk, err := r.queryChunk(ctx, query, customerID, q.ReferenceNameLike, after, limit)
		if err != nil {
			return repository.Page{}, err
		}
		items = append(items, chunk...)
		if len(chunk) < limit {
			exhausted = true
		} else {
			last := chunk[len(chunk)-1]
			after = lastKeyOf(last)
		}
	}

	page := repository.Page{}
	if len(items) > pageSize {
		items = items[:pageSize]
		last := items[len(items)-1]
		next := repository.EncodeLastKey(last.CreatedAt.UnixMicro(), last.ID)
		page.NextPageKey = &next
	}
	page.Items = items
	page.Count = len(items)
	return page, nil
}

func (r *resourceRepository) ListStale(ctx context.Context, kind domain.Kind, olderThan time.Time) ([]domain.Resource, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
	SELECT %s FROM %s
	WHERE status = $1 AND updated_at < $2
	ORDER BY updated_at
	LIMIT 100
	`, resourceColumns, table)

	rows, err := r.pool.Query(ctx, query, string(domain.StatusProcessing), olderThan)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "stale resource query failed", err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func (r *resourceRepository) queryChunk(ctx context.Context, query, customerID, nameLike string, after repository.LastKey, limit int) ([]domain.Resource, error) {
	rows, err := r.pool.Query(ctx, query, customerID, nameLike, after.CreatedAt, after.ID, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "owner query failed", err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func startKey(c repository.Cursor) (repository.LastKey, error) {
	if c == "" {
		return repository.LastKey{}, nil
	}
	return repository.DecodeCursor(c)
}

func lastKeyOf(res domain.Resource) repository.LastKey {
	return repository.LastKey{CreatedAt: res.CreatedAt.UnixMicro(), ID: res.ID}
}

func tableFor(kind domain.Kind) (string, error) {
	table, ok := tableByKind[kind]
	if !ok {
		return "", domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("unknown resource kind %q", kind))
	}
	return table, nil
}

func scanResource(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Resource, error) {
	var res domain.Resource
	var (
		kind          string
		status        string
		institutionID *string
		exhibitionID  *string
		langOptions   []byte
		images        []byte
	)

	if err := row.Scan(
		&res.ID,
		&res.CustomerID,
		&kind,
		&institutionID,
		&exhibitionID,
		&res.ReferenceName,
		&langOptions,
		&images,
		&status,
		&res.Version,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResourceNotFound
		}
		return nil, domain.WrapError(domain.ErrCodeInternal, "resource scan failed", err)
	}

	res.Kind = domain.Kind(kind)
	res.Status = domain.Status(status)
	if institutionID != nil {
		res.InstitutionID = *institutionID
	}
	if exhibitionID != nil {
		res.ExhibitionID = *exhibitionID
	}
	unmarshalJSON(langOptions, &res.LangOptions)
	unmarshalJSON(images, &res.Images)
	return &res, nil
}
