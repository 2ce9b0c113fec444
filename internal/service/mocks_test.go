package service

import (
	"context"
	"fmt"
	"testing"

	"maritime-marketplace/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// stubProcessor returns a fixed card outcome
type stubProcessor struct {
	err error
}

func (s stubProcessor) Charge(ctx context.Context, orderID int64, amount decimal.Decimal) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("TXN-%d", orderID), nil
}

func setupTestRedis(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { client.Close() })
	return client, mr
}
