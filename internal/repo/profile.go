package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bmai-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProfileExists indicates a profile with the same user id or email.
var ErrProfileExists = errors.New("profile already exists")

// ProfileRepository reads profiles joined with their role.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetProfile returns the profile of userID.
//
// Returns:
//   - domain.ErrProfileMissing when no profile row exists
//   - the profile with an empty Role when the user has no user_roles row;
//     such a principal resolves to a nil scope and sees nothing
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `
		SELECT p.user_id, p.email, p.full_name, ur.role::text, p.region, p.buildings,
		       p.created_at, p.updated_at
		FROM profiles p
		LEFT JOIN user_roles ur ON ur.user_id = p.user_id
		WHERE p.user_id = $1
	`

	var (
		u      domain.UserProfile
		role   pgtype.Text
		region pgtype.Text
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.Email, &u.FullName, &role, &region, &u.BuildingIDs,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileMissing
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}

	if role.Valid {
		u.Role = domain.Role(role.String)
	}
	u.Region = toStrPtr(region)
	u.BuildingIDs = nonNilStrings(u.BuildingIDs)
	return &u, nil
}

// GetPrincipal implements session.PrincipalSource.
func (r *ProfileRepository) GetPrincipal(ctx context.Context, principalID string) (*domain.Principal, error) {
	u, err := r.GetProfile(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return u.ToPrincipal(), nil
}

// UpdateScope writes role, region and building list of userID in one
// transaction.
func (r *ProfileRepository) UpdateScope(ctx context.Context, userID string, scope *domain.UpdateUserScopeRequest) (*domain.UserProfile, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE profiles SET region = $2, buildings = $3, updated_at = $4 WHERE user_id = $1
		`, userID, scope.Region, nonNilStrings(scope.BuildingIDs), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("update profile scope: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrProfileMissing
		}
		return upsertRole(ctx, tx, userID, scope.Role)
	})
	if err != nil {
		return nil, err
	}

	return r.GetProfile(ctx, userID)
}

// Create inserts a profile with its role and scope.
func (r *ProfileRepository) Create(ctx context.Context, userID, email, fullName string, scope *domain.UpdateUserScopeRequest) (*domain.UserProfile, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		_, err := tx.Exec(ctx, `
			INSERT INTO profiles (user_id, email, full_name, region, buildings, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
		`, userID, email, fullName, scope.Region, nonNilStrings(scope.BuildingIDs), now)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrProfileExists
			}
			return fmt.Errorf("insert profile: %w", err)
		}
		return upsertRole(ctx, tx, userID, scope.Role)
	})
	if err != nil {
		return nil, err
	}

	return r.GetProfile(ctx, userID)
}

func upsertRole(ctx context.Context, tx pgx.Tx, userID string, role domain.Role) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES ($1, $2::app_role)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role
	`, userID, string(role))
	if err != nil {
		return fmt.Errorf("upsert user role: %w", err)
	}
	return nil
}
