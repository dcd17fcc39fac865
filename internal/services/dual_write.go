package services

import (
	"context"
	"fmt"

	"github.com/prisonfinance/ledger-sync/internal/apperrors"
	"github.com/prisonfinance/ledger-sync/internal/config"
	"github.com/prisonfinance/ledger-sync/internal/logging"
	"github.com/sirupsen/logrus"
)

// DualWriteForwarder gates best-effort writes to the external general ledger.
// Failures never reach the caller.
type DualWriteForwarder struct {
	enabled     bool
	routingKeys map[string]bool
	log         *logrus.Entry
}

// NewDualWriteForwarder builds a forwarder from config. A routing key of "*"
// allows every key.
func NewDualWriteForwarder(cfg config.DualWriteConfig) *DualWriteForwarder {
	keys := make(map[string]bool, len(cfg.RoutingKeys))
	for _, k := range cfg.RoutingKeys {
		keys[k] = true
	}
	return &DualWriteForwarder{
		enabled:     cfg.Enabled,
		routingKeys: keys,
		log:         logging.Component("dual-write"),
	}
}

// Allows reports whether writes for routingKey are forwarded.
func (f *DualWriteForwarder) Allows(routingKey string) bool {
	if f == nil || !f.enabled {
		return false
	}
	return f.routingKeys["*"] || f.routingKeys[routingKey]
}

// ExecuteIfEnabled runs block when the forwarder allows routingKey. The result
// is returned with ok=true only when block ran and succeeded.
func ExecuteIfEnabled[T any](ctx context.Context, f *DualWriteForwarder, logLabel, routingKey string, block func(ctx context.Context) (T, error)) (result T, ok bool) {
	if !f.Allows(routingKey) {
		return result, false
	}

	entry := f.log.WithFields(logrus.Fields{"operation": logLabel, "routingKey": routingKey})
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", fmt.Sprint(r)).Error("Dual write panicked")
			ok = false
		}
	}()

	result, err := block(ctx)
	switch {
	case err == nil:
		return result, true
	case apperrors.IsRetryAfterConflict(err):
		entry.WithError(err).Warn("Dual write conflicted, will be retried")
	default:
		entry.WithError(err).Error("Dual write failed")
	}
	var zero T
	return zero, false
}
