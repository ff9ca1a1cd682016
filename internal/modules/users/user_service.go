package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"shiplink/internal/auth"
	"shiplink/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ServiceInterface defines the contract for the user service.
type ServiceInterface interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	GoogleAuthURL(state string) string
	LoginWithGoogle(ctx context.Context, code string) (*models.AuthResponse, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	RecordReview(ctx context.Context, reviewedID, reviewerID string, req models.ReviewRequest) (*models.RatingSummary, error)
	ListReviews(ctx context.Context, userID string, page, limit int) ([]*models.Review, int, error)
}

// Service implements the user service logic, including the rating
// aggregator.
type Service struct {
	repo      RepositoryInterface
	jwtSecret string
	tokenTTL  time.Duration
	google    *oauth2.Config

	// Rating updates for the same user must serialize; the repository's
	// optimistic guard protects against other processes.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewService creates a new user service. The Google config may carry empty
// credentials when OAuth login is not configured.
func NewService(repo RepositoryInterface, jwtSecret string, tokenTTL time.Duration, googleClientID, googleClientSecret, googleRedirectURL string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		google: &oauth2.Config{
			ClientID:     googleClientID,
			ClientSecret: googleClientSecret,
			RedirectURL:  googleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockUser(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[id] = l
	}
	return l
}

// Register creates an account and returns a signed token. New users start
// at a 5.0 rating with zero reviews, so the running average equals the mean
// of recorded scores from the first review on.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("service.Register: failed to hash password: %w", err)
	}

	user := &models.User{
		Role:         req.Role,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Rating:       5.0,
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("service.Register: %w", err)
	}
	return s.issueToken(created)
}

// Login verifies the password and returns a signed token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service.Login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return s.issueToken(user)
}

func (s *Service) issueToken(user *models.User) (*models.AuthResponse, error) {
	token, err := auth.GenerateToken(s.jwtSecret, user, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

// GoogleAuthURL returns the consent-screen URL for Google sign-in.
func (s *Service) GoogleAuthURL(state string) string {
	return s.google.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// LoginWithGoogle exchanges the OAuth code, loads the Google profile and
// logs the matching account in, creating a sender account on first sign-in.
func (s *Service) LoginWithGoogle(ctx context.Context, code string) (*models.AuthResponse, error) {
	token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service.LoginWithGoogle: failed to exchange code: %w", err)
	}

	resp, err := s.google.Client(ctx, token).Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("service.LoginWithGoogle: failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("service.LoginWithGoogle: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service.LoginWithGoogle: google API error: %s", string(body))
	}

	var googleUser struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &googleUser); err != nil {
		return nil, fmt.Errorf("service.LoginWithGoogle: failed to decode user info: %w", err)
	}

	user, err := s.repo.FindByEmail(ctx, googleUser.Email)
	if errors.Is(err, models.ErrNotFound) {
		// First sign-in: create a sender account with an unusable password.
		user, err = s.repo.Create(ctx, &models.User{
			Role:         models.RoleSender,
			Name:         googleUser.Name,
			Email:        googleUser.Email,
			PasswordHash: uuid.NewString(),
			ProfileImage: &googleUser.Picture,
			Rating:       5.0,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("service.LoginWithGoogle: %w", err)
	}
	return s.issueToken(user)
}

// GetProfile retrieves a user's public profile.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RecordReview folds a new score into the reviewed user's running average:
// rating' = (rating*count + score) / (count+1). Updates for the same user
// serialize on a per-user lock so two concurrent reviews cannot both apply
// against the same count.
func (s *Service) RecordReview(ctx context.Context, reviewedID, reviewerID string, req models.ReviewRequest) (*models.RatingSummary, error) {
	if req.Score < 1 || req.Score > 5 {
		return nil, models.ErrInvalidScore
	}
	if reviewedID == reviewerID {
		return nil, models.ErrUnauthorized
	}

	lock := s.lockUser(reviewedID)
	lock.Lock()
	defer lock.Unlock()

	// Retry a few times: the per-id lock serializes this process, but the
	// guard can still trip against writers on other instances.
	for attempt := 0; attempt < 3; attempt++ {
		user, err := s.repo.FindByID(ctx, reviewedID)
		if err != nil {
			return nil, err
		}

		newCount := user.ReviewCount + 1
		newRating := (user.Rating*float64(user.ReviewCount) + float64(req.Score)) / float64(newCount)

		err = s.repo.UpdateRating(ctx, reviewedID, newRating, newCount, user.ReviewCount)
		if errors.Is(err, models.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("service.RecordReview: %w", err)
		}

		if _, err := s.repo.InsertReview(ctx, &models.Review{
			ReviewerID: reviewerID,
			ReviewedID: reviewedID,
			Score:      req.Score,
			Comment:    req.Comment,
		}); err != nil {
			return nil, fmt.Errorf("service.RecordReview: %w", err)
		}
		return &models.RatingSummary{Rating: newRating, ReviewCount: newCount}, nil
	}
	return nil, models.ErrConflict
}

// ListReviews returns reviews received by a user.
func (s *Service) ListReviews(ctx context.Context, userID string, page, limit int) ([]*models.Review, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListReviews(ctx, userID, page, limit)
}
