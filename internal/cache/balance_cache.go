// Package cache keeps computed balances in redis and drops them when a
// transaction touching the account is recorded.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prisonfinance/ledger-sync/internal/logging"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/sirupsen/logrus"
)

// AccountKey is the cache key for the balance of one account.
func AccountKey(accountID uuid.UUID) string {
	return fmt.Sprintf("balance:account:%s", accountID)
}

// MirrorKey is the cache key for a prisoner-classified GL balance, which moves
// with every prisoner entry at the prison and so cannot be keyed by account.
func MirrorKey(prisonID string, accountCode int) string {
	return fmt.Sprintf("balance:gl-mirror:%s:%d", prisonID, accountCode)
}

// TransactionEvent is published on the notification channel.
type TransactionEvent struct {
	TransactionID uuid.UUID   `json:"transactionId"`
	Type          string      `json:"type"`
	Prison        string      `json:"prison"`
	AccountIDs    []uuid.UUID `json:"accountIds"`
}

type BalanceCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	channel string
	log     *logrus.Entry
}

func NewBalanceCache(rdb *redis.Client, ttl time.Duration, channel string) *BalanceCache {
	return &BalanceCache{
		rdb:     rdb,
		ttl:     ttl,
		channel: channel,
		log:     logging.Component("balance-cache"),
	}
}

// Get decodes the cached value at key into dest. Misses and errors both report false.
func (c *BalanceCache) Get(ctx context.Context, key string, dest any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache entry unreadable")
		return false
	}
	return true
}

func (c *BalanceCache) Set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache encode failed")
		return
	}
	if err := c.rdb.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

// TransactionRecorded drops every balance the transaction can have changed and
// publishes an event for downstream listeners.
func (c *BalanceCache) TransactionRecorded(ctx context.Context, tx *models.Transaction) {
	keys := InvalidationKeys(tx)
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.WithError(err).WithField("transactionId", tx.ID).Warn("Cache invalidation failed")
	}

	if c.channel == "" {
		return
	}
	event := TransactionEvent{TransactionID: tx.ID, Type: tx.Type, Prison: tx.Prison, AccountIDs: accountIDs(tx)}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := c.rdb.Publish(ctx, c.channel, string(data)).Err(); err != nil {
		c.log.WithError(err).WithField("transactionId", tx.ID).Warn("Publish failed")
	}
}

// InvalidationKeys lists the keys a transaction makes stale, in a stable order.
func InvalidationKeys(tx *models.Transaction) []string {
	ids := accountIDs(tx)
	keys := make([]string, 0, len(ids)+len(models.CoreGeneralLedgerAccountCodes))
	for _, id := range ids {
		keys = append(keys, AccountKey(id))
	}
	for _, code := range models.CoreGeneralLedgerAccountCodes {
		keys = append(keys, MirrorKey(tx.Prison, code))
	}
	return keys
}

func accountIDs(tx *models.Transaction) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(tx.Entries))
	ids := make([]uuid.UUID, 0, len(tx.Entries))
	for _, e := range tx.Entries {
		if seen[e.AccountID] {
			continue
		}
		seen[e.AccountID] = true
		ids = append(ids, e.AccountID)
	}
	return ids
}
