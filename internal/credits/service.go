package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-market/marketplace/marketplace-backend/internal/allocation"
	"carbon-market/marketplace/marketplace-backend/internal/auth"
	"carbon-market/marketplace/marketplace-backend/internal/cache"
	"carbon-market/marketplace/marketplace-backend/internal/ledger"
	"carbon-market/marketplace/marketplace-backend/internal/metrics"
	"carbon-market/marketplace/marketplace-backend/internal/users"
	"carbon-market/marketplace/marketplace-backend/pkg/workflows"
)

// cacheTimeout bounds every cache round trip so a slow cache cannot stall a request.
const cacheTimeout = 250 * time.Millisecond

// Options tunes the per-user read caches.
type Options struct {
	CreditsTTL      time.Duration
	TransactionsTTL time.Duration
}

// Service runs the NGO workflows: auditor capacity checks, credit issuance and expiry.
type Service struct {
	repo      Repository
	users     users.Repository
	ledger    ledger.Repository
	pool      *allocation.Pool
	engine    *allocation.Engine
	cache     cache.Cache
	lifecycle *workflows.StateMachine
	metrics   *metrics.Recorder
	logger    *zap.Logger
	opts      Options
	newID     func() uuid.UUID
}

// NewService wires the workflow collaborators. A nil cache behaves as an absent cache.
func NewService(
	repo Repository,
	userRepo users.Repository,
	ledgerRepo ledger.Repository,
	pool *allocation.Pool,
	engine *allocation.Engine,
	c cache.Cache,
	rec *metrics.Recorder,
	logger *zap.Logger,
	opts Options,
) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{
		repo:      repo,
		users:     userRepo,
		ledger:    ledgerRepo,
		pool:      pool,
		engine:    engine,
		cache:     c,
		lifecycle: workflows.NewCreditLifecycle(),
		metrics:   rec,
		logger:    logger,
		opts:      opts,
		newID:     uuid.New,
	}
}

// CreditsCacheKey is the cache entry holding an NGO's credit list.
func CreditsCacheKey(username string) string {
	return username + "_credits"
}

// TransactionsCacheKey is the cache entry holding the transaction history served to an NGO.
func TransactionsCacheKey(username string) string {
	return username + "_transactions"
}

// CheckAuditCapacity reports whether the current pool could staff a credit of amount tons.
// It never selects auditors or writes anything.
func (s *Service) CheckAuditCapacity(ctx context.Context, amount int64) (Capacity, error) {
	if amount < 0 {
		return Capacity{}, newError(KindInvalidRequest, "'amount' must be a non-negative integer", nil)
	}

	pool, err := s.pool.Fetch(ctx)
	if err != nil {
		return Capacity{}, newError(KindPersistence, "failed to read auditor pool", err)
	}

	required := allocation.RequiredAuditors(amount)
	return Capacity{
		Amount:     amount,
		Available:  len(pool),
		Required:   required,
		Sufficient: s.engine.HasCapacity(len(pool), required),
	}, nil
}

// CreateCredit issues a credit for the calling NGO and assigns it a random auditor set.
// The credit and its audit request are committed together or not at all.
func (s *Service) CreateCredit(ctx context.Context, id auth.Identity, in CreateCreditInput) (*Credit, error) {
	user, err := s.resolveNGO(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := in.validate(); err != nil {
		return nil, err
	}

	amount := *in.Amount
	required := allocation.RequiredAuditors(amount)

	pool, err := s.pool.Fetch(ctx)
	if err != nil {
		return nil, newError(KindPersistence, "failed to read auditor pool", err)
	}

	selected, err := s.engine.Allocate(pool, required)
	if err != nil {
		if errors.Is(err, allocation.ErrInsufficientAuditors) {
			s.metrics.AuditorShortfalls.Inc()
			msg := fmt.Sprintf("Not enough auditors for %d tons of carbon. Maybe split the credit!", amount)
			return nil, newError(KindInsufficientAuditors, msg, err)
		}
		return nil, newError(KindPersistence, "auditor allocation failed", err)
	}

	credit := &Credit{
		ID:        *in.CreditID,
		Name:      strings.TrimSpace(*in.Name),
		Amount:    amount,
		Price:     *in.Price,
		CreatorID: user.ID,
		DocuURL:   strings.TrimSpace(*in.SecureURL),
		Auditors:  selected,
		ReqStatus: ReqStatusPending,
		IsActive:  true,
		IsExpired: false,
	}
	request := &Request{
		ID:        s.newID(),
		CreditID:  credit.ID,
		CreatorID: user.ID,
		Auditors:  append([]int64(nil), selected...),
	}

	if err := s.repo.CreateWithRequest(ctx, credit, request); err != nil {
		return nil, newError(KindPersistence, "failed to save credit", err)
	}

	s.metrics.CreditsIssued.Inc()
	s.metrics.AuditorAssignments.Observe(float64(len(selected)))
	s.logger.Info("Credit issued",
		zap.Int64("credit_id", credit.ID),
		zap.Int64("creator_id", user.ID),
		zap.Int64("amount", amount),
		zap.Int("auditors", len(selected)))

	s.invalidate(ctx, CreditsCacheKey(user.Username))

	return credit, nil
}

// ExpireCredit retires a sold credit on behalf of its creator.
func (s *Service) ExpireCredit(ctx context.Context, id auth.Identity, creditID int64) error {
	user, err := s.resolveNGO(ctx, id)
	if err != nil {
		return err
	}

	credit, err := s.repo.GetCredit(ctx, creditID)
	if err != nil {
		return newError(KindPersistence, "failed to load credit", err)
	}
	if credit == nil {
		return newError(KindCreditNotFound, "Credit not found", nil)
	}

	purchase, err := s.repo.GetPurchasedCredit(ctx, creditID)
	if err != nil {
		return newError(KindPersistence, "failed to load purchase record", err)
	}
	if purchase == nil {
		msg := fmt.Sprintf("Credit can't be expired as it has not been sold yet, credit with B_ID %d is not found", creditID)
		return newError(KindNotSold, msg, nil)
	}

	if credit.CreatorID != user.ID {
		return newError(KindForbidden, "You do not have permission to expire this credit", nil)
	}

	if !s.lifecycle.CanTransition(credit.LifecycleState(), workflows.CreditExpired) {
		return newError(KindAlreadyExpired, fmt.Sprintf("Credit %d is already expired", creditID), nil)
	}

	if err := s.repo.Expire(ctx, credit.ID, purchase.ID); err != nil {
		return newError(KindPersistence, "failed to expire credit", err)
	}

	s.logger.Info("Credit expired", zap.Int64("credit_id", creditID), zap.Int64("creator_id", user.ID))
	s.invalidate(ctx, CreditsCacheKey(user.Username))

	return nil
}

// VerifyBeforeExpire re-checks the NGO's password before the client offers expiry.
func (s *Service) VerifyBeforeExpire(ctx context.Context, id auth.Identity, password string) error {
	user, err := s.resolveNGO(ctx, id)
	if err != nil {
		return err
	}
	if password == "" {
		return newError(KindInvalidRequest, "Missing 'password' field", nil)
	}

	ok, err := users.CheckPassword(user.Password, password)
	if err != nil {
		s.logger.Warn("Stored password hash unreadable", zap.Error(err), zap.Int64("user_id", user.ID))
	}
	if !ok {
		return newError(KindInvalidCredentials, "Invalid credentials", nil)
	}
	return nil
}

// ListCredits returns the credits created by the calling NGO, newest first.
func (s *Service) ListCredits(ctx context.Context, id auth.Identity) ([]Credit, error) {
	user, err := s.resolveNGO(ctx, id)
	if err != nil {
		return nil, err
	}

	key := CreditsCacheKey(user.Username)
	var cached []Credit
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	list, err := s.repo.ListByCreator(ctx, user.ID)
	if err != nil {
		return nil, newError(KindPersistence, "failed to list credits", err)
	}

	s.writeCache(ctx, key, list, s.opts.CreditsTTL)
	return list, nil
}

// ListTransactions returns the marketplace's purchase history, newest first.
func (s *Service) ListTransactions(ctx context.Context, id auth.Identity) ([]ledger.Transaction, error) {
	if id.Role != users.RoleNGO {
		return nil, newError(KindUnauthorized, "Unauthorized", nil)
	}

	key := TransactionsCacheKey(id.Username)
	var cached []ledger.Transaction
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	txns, err := s.ledger.ListNewestFirst(ctx)
	if err != nil {
		return nil, newError(KindPersistence, "failed to list transactions", err)
	}

	s.writeCache(ctx, key, txns, s.opts.TransactionsTTL)
	return txns, nil
}

func (s *Service) resolveNGO(ctx context.Context, id auth.Identity) (*users.User, error) {
	if id.Role != users.RoleNGO || id.Username == "" {
		return nil, newError(KindUnauthorized, "Unauthorized", nil)
	}
	user, err := s.users.FindByUsername(ctx, id.Username)
	if err != nil {
		return nil, newError(KindPersistence, "failed to load user", err)
	}
	if user == nil {
		return nil, newError(KindUserNotFound, "User not found", nil)
	}
	return user, nil
}

func (in CreateCreditInput) validate() error {
	if in.decodeErr != "" {
		return newError(KindInvalidRequest, in.decodeErr, nil)
	}
	var missing []string
	if in.CreditID == nil {
		missing = append(missing, "creditId")
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		missing = append(missing, "name")
	}
	if in.Amount == nil {
		missing = append(missing, "amount")
	}
	if in.Price == nil {
		missing = append(missing, "price")
	}
	if in.SecureURL == nil || strings.TrimSpace(*in.SecureURL) == "" {
		missing = append(missing, "secure_url")
	}
	if len(missing) > 0 {
		return newError(KindInvalidRequest, "Missing required fields: "+strings.Join(missing, ", "), nil)
	}
	if *in.Amount < 0 {
		return newError(KindInvalidRequest, "'amount' must be a non-negative integer", nil)
	}
	if *in.Price < 0 {
		return newError(KindInvalidRequest, "'price' must not be negative", nil)
	}
	return nil
}

// invalidate drops key from the cache. Failures are logged and counted, never returned:
// the store of record has already committed.
func (s *Service) invalidate(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	if err := s.cache.Delete(ctx, key); err != nil {
		s.metrics.CacheFailures.WithLabelValues("delete").Inc()
		s.logger.Warn("Cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) readCache(ctx context.Context, key string, dst any) bool {
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.CacheFailures.WithLabelValues("get").Inc()
		s.logger.Warn("Cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		s.logger.Debug("Cache miss", zap.String("key", key))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	s.logger.Debug("Cache hit", zap.String("key", key))
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		s.metrics.CacheFailures.WithLabelValues("set").Inc()
		s.logger.Warn("Cache set failed", zap.String("key", key), zap.Error(err))
	}
}
