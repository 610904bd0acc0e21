package cart

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"golang.org/x/sync/singleflight"
)

const cacheTimeout = time.Second

type Service struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewService(repo repository.CartRepository, cache cache.CartCache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// GetCart never returns ErrCartNotFound: a missing cart is an empty one.
func (s *Service) GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(ownerKey, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, ownerKey)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.FromContext(ctx).Warn().Err(err).Str("owner", ownerKey).Msg("cart cache get failed")
		}

		cart, errGet := s.repo.GetCart(ctx, ownerKey)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{
				OwnerKey:  ownerKey,
				Items:     []domain.CartItem{},
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// Filled before returning so a later invalidation cannot be overwritten by a stale cart.
		s.fillCache(ctx, ownerKey, cart)

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *Service) AddItem(ctx context.Context, ownerKey string, item domain.CartItem) error {
	if err := s.repo.AddItem(ctx, ownerKey, item); err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("owner", ownerKey).Msg("repo add item failed")
		return err
	}

	s.invalidateCache(ctx, ownerKey)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, ownerKey string, productID int64) error {
	if err := s.repo.RemoveItem(ctx, ownerKey, productID); err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("owner", ownerKey).Msg("repo remove item failed")
		return err
	}

	s.invalidateCache(ctx, ownerKey)
	return nil
}

// ClearCart empties the cart. Clearing a cart that does not exist succeeds.
func (s *Service) ClearCart(ctx context.Context, ownerKey string) error {
	err := s.repo.DeleteCart(ctx, ownerKey)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		logger.FromContext(ctx).Error().Err(err).Str("owner", ownerKey).Msg("repo delete cart failed")
		return err
	}

	s.invalidateCache(ctx, ownerKey)
	return nil
}

func (s *Service) fillCache(ctx context.Context, ownerKey string, cart *domain.Cart) {
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()
	if err := s.cache.Set(cacheCtx, ownerKey, cart); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("owner", ownerKey).Msg("cart cache set failed")
	}
}

func (s *Service) invalidateCache(ctx context.Context, ownerKey string) {
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()
	if err := s.cache.Delete(cacheCtx, ownerKey); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("owner", ownerKey).Msg("cart cache invalidate failed")
	}
}
