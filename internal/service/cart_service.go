package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"maritime-marketplace/internal/cart"
	"maritime-marketplace/internal/models"
	"maritime-marketplace/internal/redisclient"
	"maritime-marketplace/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	cartLockAttempts = 5
	cartLockBackoff  = 40 * time.Millisecond
)

// CartService keeps one cart per user in Redis. Every mutation is a
// load → reduce → save cycle under a per-user lock, so a failed save leaves
// the previous snapshot in place.
type CartService struct {
	catalog   *CatalogService
	redis     *redisclient.Client
	ttl       time.Duration
	lockTTL   time.Duration
	storeOpts []cart.Option
	logger    *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(catalog *CatalogService, redis *redisclient.Client, ttl, lockTTL time.Duration, opts ...cart.Option) *CartService {
	return &CartService{
		catalog:   catalog,
		redis:     redis,
		ttl:       ttl,
		lockTTL:   lockTTL,
		storeOpts: opts,
		logger:    util.Component("cart"),
	}
}

// AddItemRequest adds a product, optionally configured, to the cart
type AddItemRequest struct {
	ProductID            int64                 `json:"productId" binding:"required"`
	Quantity             int                   `json:"quantity" binding:"lte=999"`
	ConfiguredPrice      *decimal.Decimal      `json:"configuredPrice,omitempty"`
	ConfiguredCreditCost *int64                `json:"configuredCreditCost,omitempty"`
	Configuration        *models.Configuration `json:"configurationDetails,omitempty"`
}

// GetCart returns the user's current cart
func (s *CartService) GetCart(ctx context.Context, userID int64) (cart.State, error) {
	items, err := s.redis.GetCart(ctx, userID)
	if err != nil {
		return cart.State{}, err
	}
	return cart.NewState(items), nil
}

// AddItem snapshots the product from the catalog and adds it to the cart
func (s *CartService) AddItem(ctx context.Context, userID int64, req AddItemRequest) (cart.State, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if req.ConfiguredPrice != nil && req.ConfiguredPrice.IsNegative() {
		return cart.State{}, ErrInvalidOverride
	}
	if req.ConfiguredCreditCost != nil && (*req.ConfiguredCreditCost < 0 || *req.ConfiguredCreditCost > models.MaxCreditCost) {
		return cart.State{}, ErrInvalidOverride
	}

	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return cart.State{}, err
	}

	return s.mutate(ctx, userID, "add", cart.AddItem{
		Product:              *product,
		Quantity:             req.Quantity,
		ConfiguredPrice:      req.ConfiguredPrice,
		ConfiguredCreditCost: req.ConfiguredCreditCost,
		Configuration:        req.Configuration,
	})
}

// UpdateQuantity sets a line's quantity (clamped to [1, models.MaxQuantity])
func (s *CartService) UpdateQuantity(ctx context.Context, userID int64, itemID string, quantity int) (cart.State, error) {
	return s.mutate(ctx, userID, "update", cart.UpdateItemQuantity{ItemID: itemID, Quantity: quantity})
}

// Decrement lowers a line by one, removing it at zero
func (s *CartService) Decrement(ctx context.Context, userID int64, itemID string) (cart.State, error) {
	return s.mutate(ctx, userID, "decrement", cart.DecrementItem{ItemID: itemID})
}

// RemoveItem drops a line
func (s *CartService) RemoveItem(ctx context.Context, userID int64, itemID string) (cart.State, error) {
	return s.mutate(ctx, userID, "remove", cart.RemoveItem{ItemID: itemID})
}

// Clear empties the cart
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	token, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer s.unlock(userID, token)

	if err := s.redis.DeleteCart(ctx, userID); err != nil {
		return err
	}
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return nil
}

// RemoveItems drops the given lines under one cart lock. Lines added after
// the ids were read stay in the cart.
func (s *CartService) RemoveItems(ctx context.Context, userID int64, itemIDs []string) (cart.State, error) {
	token, err := s.lock(ctx, userID)
	if err != nil {
		return cart.State{}, err
	}
	defer s.unlock(userID, token)

	items, err := s.redis.GetCart(ctx, userID)
	if err != nil {
		return cart.State{}, err
	}

	store := cart.NewStore(cart.NewState(items), s.storeOpts...)
	next := store.Snapshot()
	for _, id := range itemIDs {
		next = store.Dispatch(cart.RemoveItem{ItemID: id})
	}

	if next.Len() == 0 {
		err = s.redis.DeleteCart(ctx, userID)
	} else {
		err = s.redis.SaveCart(ctx, userID, next.Items(), s.ttl)
	}
	if err != nil {
		return cart.State{}, err
	}
	util.CartMutationsTotal.WithLabelValues("checkout_remove").Inc()
	return next, nil
}

func (s *CartService) mutate(ctx context.Context, userID int64, name string, action cart.Action) (cart.State, error) {
	token, err := s.lock(ctx, userID)
	if err != nil {
		return cart.State{}, err
	}
	defer s.unlock(userID, token)

	items, err := s.redis.GetCart(ctx, userID)
	if err != nil {
		return cart.State{}, err
	}

	store := cart.NewStore(cart.NewState(items), s.storeOpts...)
	next := store.Dispatch(action)

	if err := s.redis.SaveCart(ctx, userID, next.Items(), s.ttl); err != nil {
		s.logger.Error("Failed to save cart",
			zap.Int64("user_id", userID),
			zap.String("action", name),
			zap.Error(err))
		return cart.State{}, err
	}

	util.CartMutationsTotal.WithLabelValues(name).Inc()
	util.CartSizeHistogram.Observe(float64(next.ItemCount()))
	return next, nil
}

func cartLockKey(userID int64) string {
	return "cart:" + strconv.FormatInt(userID, 10)
}

func (s *CartService) lock(ctx context.Context, userID int64) (string, error) {
	for attempt := 0; attempt < cartLockAttempts; attempt++ {
		token, ok, err := s.redis.AcquireLock(ctx, cartLockKey(userID), s.lockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to lock cart: %w", err)
		}
		if ok {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(cartLockBackoff):
		}
	}
	return "", ErrCartBusy
}

func (s *CartService) unlock(userID int64, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.redis.ReleaseLock(ctx, cartLockKey(userID), token); err != nil {
		s.logger.Warn("Failed to release cart lock", zap.Int64("user_id", userID), zap.Error(err))
	}
}
