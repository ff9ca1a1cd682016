package users

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"shiplink/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	seq     int
	users   map[string]*models.User
	byEmail map[string]string
	reviews []*models.Review
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[strings.ToLower(user.Email)]; exists {
		return nil, models.ErrConflict
	}
	f.seq++
	user.ID = fmt.Sprintf("u-%d", f.seq)
	user.CreatedAt = time.Now()
	cp := *user
	f.users[user.ID] = &cp
	f.byEmail[strings.ToLower(user.Email)] = user.ID
	return user, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *f.users[id]
	return &cp, nil
}

func (f *fakeUserRepo) UpdateRating(ctx context.Context, userID string, rating float64, reviewCount, expectedCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	if u.ReviewCount != expectedCount {
		return models.ErrConflict
	}
	u.Rating = rating
	u.ReviewCount = reviewCount
	return nil
}

func (f *fakeUserRepo) InsertReview(ctx context.Context, review *models.Review) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	review.ID = fmt.Sprintf("r-%d", f.seq)
	review.CreatedAt = time.Now()
	f.reviews = append(f.reviews, review)
	return review, nil
}

func (f *fakeUserRepo) ListReviews(ctx context.Context, userID string, page, limit int) ([]*models.Review, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Review{}
	for _, r := range f.reviews {
		if r.ReviewedID == userID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func newUserService(fr *fakeUserRepo) *Service {
	return NewService(fr, "test-secret", time.Hour, "", "", "")
}

func registerRequest(email string) models.RegisterRequest {
	return models.RegisterRequest{
		Name:     "Amina",
		Email:    email,
		Password: "s3cret-pass",
		Phone:    "+33100000001",
		Role:     models.RoleSender,
	}
}

func TestRegisterHashesPasswordAndIssuesToken(t *testing.T) {
	fr := newFakeUserRepo()
	svc := newUserService(fr)

	resp, err := svc.Register(context.Background(), registerRequest("amina@example.com"))
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a signed token")
	}
	if resp.User.Rating != 5.0 || resp.User.ReviewCount != 0 {
		t.Errorf("new user rating = %f/%d; want 5.0/0", resp.User.Rating, resp.User.ReviewCount)
	}

	stored := fr.users[resp.User.ID]
	if stored.PasswordHash == "s3cret-pass" {
		t.Fatal("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newUserService(newFakeUserRepo())
	if _, err := svc.Register(context.Background(), registerRequest("amina@example.com")); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	if _, err := svc.Register(context.Background(), registerRequest("amina@example.com")); !errors.Is(err, models.ErrConflict) {
		t.Errorf("err = %v; want ErrConflict", err)
	}
}

func TestLogin(t *testing.T) {
	svc := newUserService(newFakeUserRepo())
	if _, err := svc.Register(context.Background(), registerRequest("amina@example.com")); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if _, err := svc.Login(context.Background(), models.LoginRequest{Email: "amina@example.com", Password: "s3cret-pass"}); err != nil {
		t.Errorf("Login error: %v", err)
	}
	if _, err := svc.Login(context.Background(), models.LoginRequest{Email: "amina@example.com", Password: "wrong"}); !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v; want ErrInvalidCredentials", err)
	}
	// Unknown emails get the same answer as bad passwords.
	if _, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "s3cret-pass"}); !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v; want ErrInvalidCredentials", err)
	}
}

func seedUser(t *testing.T, fr *fakeUserRepo, email string) *models.User {
	t.Helper()
	u, err := fr.Create(context.Background(), &models.User{
		Role: models.RoleCarrier, Name: "Karim", Email: email, PasswordHash: "x", Rating: 5.0,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestRecordReviewRunningAverage(t *testing.T) {
	fr := newFakeUserRepo()
	svc := newUserService(fr)
	carrier := seedUser(t, fr, "karim@example.com")
	reviewer := seedUser(t, fr, "amina@example.com")

	// 4 then 2: the running average must equal the plain mean at each step.
	summary, err := svc.RecordReview(context.Background(), carrier.ID, reviewer.ID, models.ReviewRequest{Score: 4})
	if err != nil {
		t.Fatalf("RecordReview error: %v", err)
	}
	if summary.Rating != 4.0 || summary.ReviewCount != 1 {
		t.Errorf("after first review = %f/%d; want 4.0/1", summary.Rating, summary.ReviewCount)
	}

	summary, err = svc.RecordReview(context.Background(), carrier.ID, reviewer.ID, models.ReviewRequest{Score: 2, Comment: "late pickup"})
	if err != nil {
		t.Fatalf("RecordReview error: %v", err)
	}
	if math.Abs(summary.Rating-3.0) > 1e-9 || summary.ReviewCount != 2 {
		t.Errorf("after second review = %f/%d; want 3.0/2", summary.Rating, summary.ReviewCount)
	}

	reviews, total, err := svc.ListReviews(context.Background(), carrier.ID, 1, 20)
	if err != nil || total != 2 || len(reviews) != 2 {
		t.Errorf("ListReviews = %d/%d (%v); want 2 reviews", len(reviews), total, err)
	}
}

func TestRecordReviewRejectsBadInput(t *testing.T) {
	fr := newFakeUserRepo()
	svc := newUserService(fr)
	carrier := seedUser(t, fr, "karim@example.com")
	reviewer := seedUser(t, fr, "amina@example.com")

	for _, score := range []int{0, 6, -1} {
		if _, err := svc.RecordReview(context.Background(), carrier.ID, reviewer.ID, models.ReviewRequest{Score: score}); !errors.Is(err, models.ErrInvalidScore) {
			t.Errorf("score %d err = %v; want ErrInvalidScore", score, err)
		}
	}
	if _, err := svc.RecordReview(context.Background(), carrier.ID, carrier.ID, models.ReviewRequest{Score: 5}); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("self-review err = %v; want ErrUnauthorized", err)
	}
	if _, err := svc.RecordReview(context.Background(), "missing", reviewer.ID, models.ReviewRequest{Score: 5}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown user err = %v; want ErrNotFound", err)
	}
}

func TestRecordReviewConcurrent(t *testing.T) {
	fr := newFakeUserRepo()
	svc := newUserService(fr)
	carrier := seedUser(t, fr, "karim@example.com")

	scores := []int{1, 2, 3, 4, 5, 5, 4, 3, 2, 1}
	var wg sync.WaitGroup
	for i, score := range scores {
		reviewer := seedUser(t, fr, fmt.Sprintf("reviewer-%d@example.com", i))
		wg.Add(1)
		go func(reviewerID string, score int) {
			defer wg.Done()
			if _, err := svc.RecordReview(context.Background(), carrier.ID, reviewerID, models.ReviewRequest{Score: score}); err != nil {
				t.Errorf("concurrent RecordReview error: %v", err)
			}
		}(reviewer.ID, score)
	}
	wg.Wait()

	u, err := fr.FindByID(context.Background(), carrier.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if u.ReviewCount != len(scores) {
		t.Fatalf("review count = %d; want %d, no lost updates", u.ReviewCount, len(scores))
	}
	// Arithmetic mean regardless of arrival order.
	if math.Abs(u.Rating-3.0) > 1e-9 {
		t.Errorf("rating = %f; want 3.0", u.Rating)
	}
}
