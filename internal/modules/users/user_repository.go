package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shiplink/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the contract for the user repository.
type RepositoryInterface interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateRating writes the new running average, guarded by the review
	// count the caller read. Zero rows affected means a concurrent review
	// got there first.
	UpdateRating(ctx context.Context, userID string, rating float64, reviewCount, expectedCount int) error
	InsertReview(ctx context.Context, review *models.Review) (*models.Review, error)
	ListReviews(ctx context.Context, userID string, page, limit int) ([]*models.Review, int, error)
}

// Repository implements the RepositoryInterface on PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new user repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const userColumns = `id, role, name, email, phone, password_hash, rating, review_count, profile_image, verified, preferred_routes, special_rates, created_at, updated_at`

// Create inserts a new user. A duplicate email maps to models.ErrConflict.
func (r *Repository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (role, name, email, phone, password_hash, rating, review_count, profile_image, verified, preferred_routes, special_rates)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns

	rates, err := json.Marshal(user.SpecialRates)
	if err != nil {
		return nil, fmt.Errorf("repository.CreateUser: %w", err)
	}

	row := r.db.QueryRow(ctx, query,
		user.Role, user.Name, user.Email, user.Phone, user.PasswordHash,
		user.Rating, user.ReviewCount, user.ProfileImage, user.Verified,
		user.PreferredRoutes, rates,
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("repository.CreateUser: %w", err)
	}
	return created, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var rates []byte
	err := row.Scan(
		&user.ID, &user.Role, &user.Name, &user.Email, &user.Phone,
		&user.PasswordHash, &user.Rating, &user.ReviewCount,
		&user.ProfileImage, &user.Verified, &user.PreferredRoutes,
		&rates, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if len(rates) > 0 {
		if err := json.Unmarshal(rates, &user.SpecialRates); err != nil {
			return nil, fmt.Errorf("failed to decode special rates: %w", err)
		}
	}
	return &user, nil
}

// FindByID retrieves a single user by id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return user, nil
}

// FindByEmail retrieves a single user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("repository.FindByEmail: %w", err)
	}
	return user, nil
}

// UpdateRating applies a new running average under an optimistic guard on
// the review count.
func (r *Repository) UpdateRating(ctx context.Context, userID string, rating float64, reviewCount, expectedCount int) error {
	query := `
		UPDATE users
		SET rating = $1, review_count = $2, updated_at = NOW()
		WHERE id = $3 AND review_count = $4`

	cmdTag, err := r.db.Exec(ctx, query, rating, reviewCount, userID, expectedCount)
	if err != nil {
		return fmt.Errorf("repository.UpdateRating: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}

// InsertReview stores the review record behind a rating update.
func (r *Repository) InsertReview(ctx context.Context, review *models.Review) (*models.Review, error) {
	query := `
		INSERT INTO reviews (reviewer_id, reviewed_id, score, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, review.ReviewerID, review.ReviewedID, review.Score, review.Comment).
		Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository.InsertReview: %w", err)
	}
	return review, nil
}

// ListReviews retrieves reviews received by a user with pagination.
func (r *Repository) ListReviews(ctx context.Context, userID string, page, limit int) ([]*models.Review, int, error) {
	offset := (page - 1) * limit
	query := `
		SELECT id, reviewer_id, reviewed_id, score, comment, created_at
		FROM reviews
		WHERE reviewed_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListReviews.Query: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		var rv models.Review
		if err := rows.Scan(&rv.ID, &rv.ReviewerID, &rv.ReviewedID, &rv.Score, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("repository.ListReviews.Scan: %w", err)
		}
		reviews = append(reviews, &rv)
	}

	var total int
	err = r.db.QueryRow(ctx, "SELECT COUNT(*) FROM reviews WHERE reviewed_id = $1", userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListReviews.Count: %w", err)
	}

	return reviews, total, nil
}
