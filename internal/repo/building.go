package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bmai-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =====================================================
// Repository Definition
// =====================================================

// BuildingRepository reads and writes the building catalog.
type BuildingRepository struct {
	pool *pgxpool.Pool
}

func NewBuildingRepository(pool *pgxpool.Pool) *BuildingRepository {
	return &BuildingRepository{pool: pool}
}

// buildingColumns selects a building with the number of its active manuals.
const buildingColumns = `
	b.id, b.name, b.address, b.region, b.status, b.notes, b.is_archived,
	b.created_at, b.updated_at,
	(SELECT COUNT(*) FROM manuals m WHERE m.building_id = b.id AND m.is_active = TRUE) AS document_count
`

func scanBuilding(row pgx.Row) (domain.Building, error) {
	var (
		b       domain.Building
		address pgtype.Text
		notes   pgtype.Text
		status  string
		count   int64
	)
	err := row.Scan(
		&b.ID, &b.Name, &address, &b.Region, &status, &notes, &b.IsArchived,
		&b.CreatedAt, &b.UpdatedAt, &count,
	)
	if err != nil {
		return domain.Building{}, err
	}
	b.Address = toStrPtr(address)
	b.Notes = toStrPtr(notes)
	b.Status = domain.BuildingStatus(status)
	b.DocumentCount = int(count)
	return b, nil
}

func collectBuildings(rows pgx.Rows) ([]domain.Building, error) {
	defer rows.Close()

	buildings := make([]domain.Building, 0)
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		buildings = append(buildings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buildings: %w", err)
	}
	return buildings, nil
}

// =====================================================
// Catalog reads
// =====================================================

// ListActive returns every non-archived building. It is the catalog source of
// the session layer, which applies the per-principal filter itself.
func (r *BuildingRepository) ListActive(ctx context.Context) ([]domain.Building, error) {
	query := `SELECT ` + buildingColumns + ` FROM buildings b WHERE b.is_archived = FALSE ORDER BY LOWER(b.name), b.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active buildings: %w", err)
	}
	return collectBuildings(rows)
}

// List returns the admin catalog view, filtered by region and archive flag.
func (r *BuildingRepository) List(ctx context.Context, params domain.ListBuildingsParams) ([]domain.Building, error) {
	query := `SELECT ` + buildingColumns + `
		FROM buildings b
		WHERE b.is_archived = $1
		  AND ($2::text IS NULL OR b.region = $2)
		ORDER BY LOWER(b.name), b.id`

	rows, err := r.pool.Query(ctx, query, params.Archived, params.Region)
	if err != nil {
		return nil, fmt.Errorf("query buildings: %w", err)
	}
	return collectBuildings(rows)
}

// Get returns one building, archived or not.
func (r *BuildingRepository) Get(ctx context.Context, buildingID string) (*domain.Building, error) {
	query := `SELECT ` + buildingColumns + ` FROM buildings b WHERE b.id = $1`

	b, err := scanBuilding(r.pool.QueryRow(ctx, query, buildingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBuildingNotFound
		}
		return nil, fmt.Errorf("query building: %w", err)
	}
	return &b, nil
}

// ExistingIDs returns the subset of ids that name a building.
func (r *BuildingRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id FROM buildings WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query building ids: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect building ids: %w", err)
	}
	return found, nil
}

// =====================================================
// Writes
// =====================================================

// Create inserts a building and returns the stored record.
func (r *BuildingRepository) Create(ctx context.Context, req *domain.CreateBuildingRequest) (*domain.Building, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO buildings (id, name, address, region, status, notes, is_archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $7)
	`, id, req.Name, req.Address, req.Region, string(req.Status), req.Notes, now)
	if err != nil {
		return nil, fmt.Errorf("insert building: %w", err)
	}

	return r.Get(ctx, id)
}

// Update applies the non-nil fields of req.
func (r *BuildingRepository) Update(ctx context.Context, buildingID string, req *domain.UpdateBuildingRequest) (*domain.Building, error) {
	sets := make([]string, 0, 6)
	args := []interface{}{buildingID}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Address != nil {
		add("address", nullIfEmpty(*req.Address))
	}
	if req.Region != nil {
		add("region", *req.Region)
	}
	if req.Status != nil {
		add("status", string(*req.Status))
	}
	if req.Notes != nil {
		add("notes", nullIfEmpty(*req.Notes))
	}
	add("updated_at", time.Now().UTC())

	query := fmt.Sprintf(`UPDATE buildings SET %s WHERE id = $1`, strings.Join(sets, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update building: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrBuildingNotFound
	}

	return r.Get(ctx, buildingID)
}

// SetArchived archives or restores a building. Archived buildings leave the
// active catalog.
func (r *BuildingRepository) SetArchived(ctx context.Context, buildingID string, archived bool) (*domain.Building, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE buildings SET is_archived = $2, updated_at = $3 WHERE id = $1
	`, buildingID, archived, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("archive building: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrBuildingNotFound
	}

	return r.Get(ctx, buildingID)
}
