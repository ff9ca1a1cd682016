package bookings

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"shiplink/internal/models"
	"shiplink/pkg/mailer"
	"shiplink/pkg/payment"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JourneyIndexInterface is the slice of the search index the booking
// service needs: departed journeys must leave search results.
type JourneyIndexInterface interface {
	Remove(journeyID string)
}

// ServiceInterface defines the contract for the booking service. It is the
// only component that writes Package.Status.
type ServiceInterface interface {
	Create(ctx context.Context, senderID string, req models.CreatePackageRequest) (*models.PackageResponse, error)
	Get(ctx context.Context, packageID, actorID string) (*models.PackageResponse, error)
	ListMine(ctx context.Context, senderID string, page, limit int) ([]*models.Package, int, error)
	Approve(ctx context.Context, packageID, actorID string) (*models.Package, error)
	Cancel(ctx context.Context, packageID, actorID string) (*models.Package, error)
	Deliver(ctx context.Context, packageID, actorID, deliveryCode string) (*models.Package, error)
	Depart(ctx context.Context, journeyID, actorID string, force bool) (*models.DepartResponse, error)
}

// Service implements the booking lifecycle.
type Service struct {
	repo     RepositoryInterface
	payments payment.ServiceInterface
	mail     mailer.Sender
	index    JourneyIndexInterface
	log      *logrus.Logger

	// now is swappable in tests for departure-date gating.
	now func() time.Time

	// Mutations serialize per journey. Whenever a journey and a package are
	// both involved, the journey lock is taken first and package writes are
	// status-guarded, so no operation ever holds more than one lock and
	// lock ordering cannot cycle.
	mu           sync.Mutex
	journeyLocks map[string]*sync.Mutex
}

// NewService creates a new booking service.
func NewService(repo RepositoryInterface, payments payment.ServiceInterface, mail mailer.Sender, index JourneyIndexInterface, log *logrus.Logger) *Service {
	return &Service{
		repo:         repo,
		payments:     payments,
		mail:         mail,
		index:        index,
		log:          log,
		now:          time.Now,
		journeyLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockJourney(journeyID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.journeyLocks[journeyID]
	if !ok {
		l = &sync.Mutex{}
		s.journeyLocks[journeyID] = l
	}
	return l
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}

func newTrackingNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
}

// Create books a package onto a journey in PENDING state. No capacity is
// reserved yet; reservation happens when the carrier approves.
func (s *Service) Create(ctx context.Context, senderID string, req models.CreatePackageRequest) (*models.PackageResponse, error) {
	if req.WeightKg < models.MinPackageWeightKg {
		return nil, models.ErrInvalidWeight
	}

	lock := s.lockJourney(req.JourneyID)
	lock.Lock()
	defer lock.Unlock()

	journey, err := s.repo.GetJourney(ctx, req.JourneyID)
	if err != nil {
		return nil, err
	}
	if journey.Status != models.JourneyScheduled {
		return nil, models.ErrConflict
	}
	if req.WeightKg > journey.RemainingCapacityKg() {
		return nil, models.ErrCapacityExceeded
	}

	p := &models.Package{
		SenderID:       senderID,
		JourneyID:      journey.ID,
		SenderPhone:    req.SenderPhone,
		RecipientPhone: req.RecipientPhone,
		Size:           req.Size,
		WeightKg:       req.WeightKg,
		Contents:       req.Contents,
		TrackingNumber: newTrackingNumber(),
		PickupCode:     randomCode(6),
		DeliveryCode:   randomCode(6),
	}
	created, err := s.repo.CreatePackage(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("service.Create: %w", err)
	}

	return &models.PackageResponse{
		Package:    created,
		PriceCents: priceCents(journey, created.WeightKg, created.Contents),
	}, nil
}

// Get retrieves a package with its re-derived price. Only the sender and
// the journey's carrier may see it; the pickup and delivery codes stay with
// the sender.
func (s *Service) Get(ctx context.Context, packageID, actorID string) (*models.PackageResponse, error) {
	p, err := s.repo.FindByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	journey, err := s.repo.GetJourney(ctx, p.JourneyID)
	if err != nil {
		return nil, fmt.Errorf("service.Get: %w", err)
	}
	if actorID != p.SenderID && actorID != journey.CarrierID {
		return nil, models.ErrNotFound // avoid leaking the package's existence
	}
	if actorID != p.SenderID {
		p.PickupCode = ""
		p.DeliveryCode = ""
	}
	return &models.PackageResponse{
		Package:    p,
		PriceCents: priceCents(journey, p.WeightKg, p.Contents),
	}, nil
}

// ListMine retrieves the sender's packages.
func (s *Service) ListMine(ctx context.Context, senderID string, page, limit int) ([]*models.Package, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListBySender(ctx, senderID, page, limit)
}

// Approve moves a PENDING package to APPROVED, charging the sender and
// reserving the package's weight against the vehicle capacity. Of two
// concurrent approvals whose combined weight would not fit, the loser fails
// with CapacityExceeded and nothing is left half-applied.
func (s *Service) Approve(ctx context.Context, packageID, actorID string) (*models.Package, error) {
	p, err := s.repo.FindByID(ctx, packageID)
	if err != nil {
		return nil, err
	}

	lock := s.lockJourney(p.JourneyID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: both package state and journey capacity may
	// have moved while we waited.
	p, err = s.repo.FindByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	journey, err := s.repo.GetJourney(ctx, p.JourneyID)
	if err != nil {
		return nil, fmt.Errorf("service.Approve: %w", err)
	}

	if actorID != journey.CarrierID {
		return nil, models.ErrUnauthorized
	}
	if journey.Status != models.JourneyScheduled || p.Status != models.StatusPending {
		return nil, models.ErrInvalidTransition
	}
	if p.WeightKg > journey.RemainingCapacityKg() {
		return nil, models.ErrCapacityExceeded
	}

	// Reserve before charging: a lost reservation must cost the sender
	// nothing, and each later failure unwinds everything before it.
	if err := s.repo.ReserveCapacity(ctx, journey.ID, p.WeightKg, journey.Version); err != nil {
		return nil, err
	}

	price := priceCents(journey, p.WeightKg, p.Contents)
	paymentID, err := s.payments.Charge(ctx, p.SenderID, price, "ShipLink booking "+p.TrackingNumber)
	if err != nil {
		if relErr := s.repo.ReleaseCapacity(ctx, journey.ID, p.WeightKg); relErr != nil {
			s.log.WithError(relErr).WithField("journey", journey.ID).Error("failed to release capacity after failed payment")
		}
		return nil, fmt.Errorf("service.Approve: payment failed: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, p.ID, models.StatusPending, models.StatusApproved); err != nil {
		if refErr := s.payments.Refund(ctx, paymentID); refErr != nil {
			s.log.WithError(refErr).WithField("package", p.ID).Error("failed to refund after aborted approval")
		}
		if relErr := s.repo.ReleaseCapacity(ctx, journey.ID, p.WeightKg); relErr != nil {
			s.log.WithError(relErr).WithField("journey", journey.ID).Error("failed to release capacity after aborted approval")
		}
		return nil, err
	}

	p.Status = models.StatusApproved
	s.notify(ctx, p, "Booking approved",
		fmt.Sprintf("Your package %s was approved for the %s - %s journey.", p.TrackingNumber, journey.DepartureCity, journey.ArrivalCity))
	return p, nil
}

// Cancel moves a PENDING or APPROVED package to CANCELLED. Either side of
// the booking may cancel. An APPROVED cancellation returns exactly the
// package's weight to the journey, immediately visible to later capacity
// checks; a PENDING one never touched capacity.
func (s *Service) Cancel(ctx context.Context, packageID, actorID string) (*models.Package, error) {
	p, err := s.repo.FindByID(ctx, packageID)
	if err != nil {
		return nil, err
	}

	lock := s.lockJourney(p.JourneyID)
	lock.Lock()
	defer lock.Unlock()

	p, err = s.repo.FindByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	journey, err := s.repo.GetJourney(ctx, p.JourneyID)
	if err != nil {
		return nil, fmt.Errorf("service.Cancel: %w", err)
	}
	if actorID != p.SenderID && actorID != journey.CarrierID {
		return nil, models.ErrUnauthorized
	}

	switch p.Status {
	case models.StatusPending:
		if err := s.repo.UpdateStatus(ctx, p.ID, models.StatusPending, models.StatusCancelled); err != nil {
			return nil, err
		}
	case models.StatusApproved:
		if err := s.repo.UpdateStatus(ctx, p.ID, models.StatusApproved, models.StatusCancelled); err != nil {
			return nil, err
		}
		// The cancellation is committed at this point; a failed release is
		// logged rather than reported as a failed cancel.
		if err := s.repo.ReleaseCapacity(ctx, journey.ID, p.WeightKg); err != nil {
			s.log.WithError(err).WithField("journey", journey.ID).Error("failed to release capacity after cancellation")
		}
	default:
		return nil, models.ErrInvalidTransition
	}

	p.Status = models.StatusCancelled
	s.notify(ctx, p, "Booking cancelled",
		fmt.Sprintf("Your package %s was cancelled.", p.TrackingNumber))
	return p, nil
}

// Depart moves every APPROVED package on the journey to IN_TRANSIT at once
// and takes the journey out of search. Before the scheduled departure date
// the carrier must set force. Packages still PENDING missed the truck and
// are cancelled rather than left in limbo.
func (s *Service) Depart(ctx context.Context, journeyID, actorID string, force bool) (*models.DepartResponse, error) {
	lock := s.lockJourney(journeyID)
	lock.Lock()
	defer lock.Unlock()

	journey, err := s.repo.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if actorID != journey.CarrierID {
		return nil, models.ErrUnauthorized
	}
	if journey.Status != models.JourneyScheduled {
		return nil, models.ErrInvalidTransition
	}
	if !force && s.now().Before(journey.DepartureDate) {
		return nil, models.ErrInvalidTransition
	}

	departed, err := s.repo.UpdateStatusByJourney(ctx, journeyID, models.StatusApproved, models.StatusInTransit)
	if err != nil {
		return nil, fmt.Errorf("service.Depart: %w", err)
	}
	if _, err := s.repo.UpdateStatusByJourney(ctx, journeyID, models.StatusPending, models.StatusCancelled); err != nil {
		return nil, fmt.Errorf("service.Depart: %w", err)
	}
	if err := s.repo.SetJourneyStatus(ctx, journeyID, models.JourneyScheduled, models.JourneyInProgress); err != nil {
		return nil, fmt.Errorf("service.Depart: %w", err)
	}
	s.index.Remove(journeyID)

	if packages, err := s.repo.ListByJourneyAndStatus(ctx, journeyID, models.StatusInTransit); err == nil {
		for _, pkg := range packages {
			s.notify(ctx, pkg, "Package in transit",
				fmt.Sprintf("Your package %s departed from %s.", pkg.TrackingNumber, journey.DepartureCity))
		}
	}

	return &models.DepartResponse{JourneyID: journeyID, Departed: departed}, nil
}

// Deliver completes a single IN_TRANSIT package. Repeating it on an
// already-DELIVERED package is reported as InvalidTransition, never applied
// twice. A wrong delivery code is rejected; an empty one skips the check.
func (s *Service) Deliver(ctx context.Context, packageID, actorID, deliveryCode string) (*models.Package, error) {
	p, err := s.repo.FindByID(ctx, packageID)
	if err != nil {
		return nil, err
	}

	lock := s.lockJourney(p.JourneyID)
	lock.Lock()
	defer lock.Unlock()

	p, err = s.repo.FindByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	journey, err := s.repo.GetJourney(ctx, p.JourneyID)
	if err != nil {
		return nil, fmt.Errorf("service.Deliver: %w", err)
	}
	if actorID != journey.CarrierID {
		return nil, models.ErrUnauthorized
	}
	if p.Status != models.StatusInTransit {
		return nil, models.ErrInvalidTransition
	}
	if deliveryCode != "" && deliveryCode != p.DeliveryCode {
		return nil, models.ErrUnauthorized
	}

	if err := s.repo.UpdateStatus(ctx, p.ID, models.StatusInTransit, models.StatusDelivered); err != nil {
		return nil, err
	}

	// The journey is complete once its last package is delivered.
	remaining, err := s.repo.CountByJourneyAndStatus(ctx, journey.ID, models.StatusInTransit)
	if err == nil && remaining == 0 {
		if err := s.repo.SetJourneyStatus(ctx, journey.ID, models.JourneyInProgress, models.JourneyCompleted); err != nil {
			s.log.WithError(err).WithField("journey", journey.ID).Warn("failed to mark journey completed")
		}
	}

	p.Status = models.StatusDelivered
	s.notify(ctx, p, "Package delivered",
		fmt.Sprintf("Your package %s was delivered in %s.", p.TrackingNumber, journey.ArrivalCity))
	return p, nil
}

// notify emails the sender about a committed transition. Sends are
// best-effort: a mail failure is logged and the transition stands.
func (s *Service) notify(ctx context.Context, p *models.Package, subject, body string) {
	if s.mail == nil || p.Sender == nil || p.Sender.Email == "" {
		return
	}
	if err := s.mail.Send(ctx, p.Sender.Email, subject, body); err != nil {
		s.log.WithError(err).WithField("package", p.ID).Warn("failed to send notification email")
	}
}
