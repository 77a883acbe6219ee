// AngelaMos | 2026
// service.go

package premium

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

const activePackagesKey = "premium:packages:active"

// Cache is the read-through store for the active catalogue.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	repo    Repository
	cache   Cache
	breaker *gobreaker.CircuitBreaker[bool]
	ttl     time.Duration
	logger  *slog.Logger
}

// NewService wraps cache access in a circuit breaker; while it is open the
// catalogue is served straight from the database. A nil cache disables
// caching.
func NewService(
	repo Repository,
	cache Cache,
	ttl time.Duration,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:        "premium-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Service{
		repo:    repo,
		cache:   cache,
		breaker: breaker,
		ttl:     ttl,
		logger:  logger,
	}
}

func (s *Service) ListActive(ctx context.Context) ([]Package, error) {
	if s.cache != nil {
		var cached []Package
		hit, err := s.breaker.Execute(func() (bool, error) {
			return s.cache.Get(ctx, activePackagesKey, &cached)
		})
		switch {
		case err == nil && hit:
			return cached, nil
		case err != nil && !errors.Is(err, gobreaker.ErrOpenState):
			s.logger.Warn("premium cache read failed", "error", err)
		}
	}

	pkgs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		_, err := s.breaker.Execute(func() (bool, error) {
			return true, s.cache.Set(ctx, activePackagesKey, pkgs, s.ttl)
		})
		if err != nil && !errors.Is(err, gobreaker.ErrOpenState) {
			s.logger.Warn("premium cache write failed", "error", err)
		}
	}

	return pkgs, nil
}

// PackageIDForProduct maps a store product id to its package id. Unknown
// products resolve to nil.
func (s *Service) PackageIDForProduct(
	ctx context.Context,
	productID string,
) (*string, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, pkg := range active {
		if pkg.StoreProductID != nil && *pkg.StoreProductID == productID {
			id := pkg.ID
			return &id, nil
		}
	}

	return s.repo.FindIDByProductID(ctx, productID)
}

func (s *Service) HasPackage(ctx context.Context, packageID string) (bool, error) {
	return s.repo.Exists(ctx, packageID)
}

func (s *Service) Create(ctx context.Context, pkg *Package) error {
	if err := s.repo.Create(ctx, pkg); err != nil {
		return err
	}
	s.Invalidate(ctx)
	return nil
}

func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, activePackagesKey); err != nil {
		s.logger.Warn("premium cache invalidation failed", "error", err)
	}
}
