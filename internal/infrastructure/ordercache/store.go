package ordercache

import (
	"errors"
	"time"

	"github.com/tabsync/tabsync/internal/domain"
)

var ErrNotFound = errors.New("snapshot not found")

// Store is the backing keyspace for active-order snapshots. The Redis
// implementation is shared by all instances; the in-memory one serves
// single-instance deployments and tests.
type Store interface {
	Set(key string, snap domain.ActiveOrderSnapshot, ttl time.Duration) error
	Get(key string) (domain.ActiveOrderSnapshot, error)
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}
