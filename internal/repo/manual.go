package repo

import (
	"context"
	"errors"
	"fmt"

	"bmai-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ManualRepository reads the O&M manuals indexed for a building, their
// sections and their searchable content.
type ManualRepository struct {
	pool *pgxpool.Pool
}

func NewManualRepository(pool *pgxpool.Pool) *ManualRepository {
	return &ManualRepository{pool: pool}
}

const manualColumns = `id, building_id, name, equipment_type, manufacturer, model_number, processing_status, created_at`

func scanManual(row pgx.Row) (domain.Manual, error) {
	var (
		m             domain.Manual
		equipmentType pgtype.Text
		manufacturer  pgtype.Text
		modelNumber   pgtype.Text
	)
	err := row.Scan(&m.ID, &m.BuildingID, &m.Name, &equipmentType, &manufacturer, &modelNumber, &m.ProcessingStatus, &m.CreatedAt)
	if err != nil {
		return domain.Manual{}, err
	}
	if equipmentType.Valid {
		et := domain.EquipmentType(equipmentType.String)
		m.EquipmentType = &et
	}
	m.Manufacturer = toStrPtr(manufacturer)
	m.ModelNumber = toStrPtr(modelNumber)
	return m, nil
}

// ListByBuilding returns the active manuals of a building ordered by name,
// optionally restricted to one equipment type.
func (r *ManualRepository) ListByBuilding(ctx context.Context, buildingID string, params domain.ListManualsParams) ([]domain.Manual, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+manualColumns+`
		FROM manuals
		WHERE building_id = $1 AND is_active = TRUE
		  AND ($2::text IS NULL OR equipment_type = $2)
		ORDER BY name, id
	`, buildingID, textArg(params.EquipmentType))
	if err != nil {
		return nil, fmt.Errorf("query manuals: %w", err)
	}
	defer rows.Close()

	manuals := make([]domain.Manual, 0)
	for rows.Next() {
		m, err := scanManual(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manual: %w", err)
		}
		manuals = append(manuals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manuals: %w", err)
	}
	return manuals, nil
}

// Get returns one active manual.
func (r *ManualRepository) Get(ctx context.Context, manualID string) (*domain.Manual, error) {
	m, err := scanManual(r.pool.QueryRow(ctx, `
		SELECT `+manualColumns+` FROM manuals WHERE id = $1 AND is_active = TRUE
	`, manualID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrManualNotFound
		}
		return nil, fmt.Errorf("query manual: %w", err)
	}
	return &m, nil
}

// ListSections returns the children of parentID in a manual, or its
// top-level sections when parentID is nil, ordered by order_index.
func (r *ManualRepository) ListSections(ctx context.Context, manualID string, parentID *string) ([]domain.ManualSection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, manual_id, parent_section_id, section_number, section_title, section_type,
		       start_page, end_page, depth_level, order_index, full_path, created_at
		FROM manual_sections
		WHERE manual_id = $1 AND parent_section_id IS NOT DISTINCT FROM $2
		ORDER BY order_index, id
	`, manualID, parentID)
	if err != nil {
		return nil, fmt.Errorf("query manual sections: %w", err)
	}
	defer rows.Close()

	sections := make([]domain.ManualSection, 0)
	for rows.Next() {
		var (
			s                              domain.ManualSection
			parent, number, kind, fullPath pgtype.Text
			startPage, endPage             pgtype.Int4
			depth, order                   int32
		)
		err := rows.Scan(&s.ID, &s.ManualID, &parent, &number, &s.SectionTitle, &kind,
			&startPage, &endPage, &depth, &order, &fullPath, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan manual section: %w", err)
		}
		s.ParentSectionID = toStrPtr(parent)
		s.SectionNumber = toStrPtr(number)
		s.SectionType = toStrPtr(kind)
		s.FullPath = toStrPtr(fullPath)
		s.StartPage = toIntPtr(startPage)
		s.EndPage = toIntPtr(endPage)
		s.DepthLevel = int(depth)
		s.OrderIndex = int(order)
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manual sections: %w", err)
	}
	return sections, nil
}

// SearchKeyword ranks the content chunks of a building's active manuals
// against a web-style query. Callers validate params first.
func (r *ManualRepository) SearchKeyword(ctx context.Context, params domain.SearchParams) ([]domain.SearchResult, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.section_id, m.id, m.name, s.section_title, s.section_number, s.full_path,
		       c.content_text, c.page_number, ts_rank(c.search_vector, q.query)::float8 AS rank,
		       m.manufacturer, m.model_number
		FROM manual_content c
		JOIN manual_sections s ON s.id = c.section_id
		JOIN manuals m ON m.id = s.manual_id
		CROSS JOIN websearch_to_tsquery('english', $2) AS q(query)
		WHERE m.building_id = $1 AND m.is_active = TRUE
		  AND c.search_vector @@ q.query
		  AND ($3::text IS NULL OR m.equipment_type = $3)
		ORDER BY rank DESC, c.id
		LIMIT $4
	`, params.BuildingID, params.Query, textArg(params.EquipmentType), params.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("search manual content: %w", err)
	}
	defer rows.Close()

	results := make([]domain.SearchResult, 0)
	for rows.Next() {
		var (
			res                                         domain.SearchResult
			number, fullPath, manufacturer, modelNumber pgtype.Text
			page                                        pgtype.Int4
		)
		err := rows.Scan(&res.ContentID, &res.SectionID, &res.ManualID, &res.ManualName, &res.SectionTitle,
			&number, &fullPath, &res.ContentText, &page, &res.Rank, &manufacturer, &modelNumber)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		res.SectionNumber = toStrPtr(number)
		res.FullPath = toStrPtr(fullPath)
		res.PageNumber = toIntPtr(page)
		res.Manufacturer = toStrPtr(manufacturer)
		res.ModelNumber = toStrPtr(modelNumber)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return results, nil
}

// LogSearch records an executed keyword search.
func (r *ManualRepository) LogSearch(ctx context.Context, entry domain.SearchLogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO manual_search_logs (search_query, building_id, user_id, search_type, results_returned)
		VALUES ($1, $2, $3, 'keyword', $4)
	`, entry.Query, entry.BuildingID, nullIfEmpty(entry.UserID), entry.ResultsReturned)
	if err != nil {
		return fmt.Errorf("insert search log: %w", err)
	}
	return nil
}
