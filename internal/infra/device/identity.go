package device

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yanqian/biofeedback/internal/infra/prefstore"
	apperrors "github.com/yanqian/biofeedback/pkg/errors"
)

const deviceIDKey = "deviceId"

// Identity resolves the device identifier sent to the remote services. A
// configured ID wins; otherwise a UUID is generated once and persisted.
type Identity struct {
	configured string
	store      prefstore.Store
	logger     *slog.Logger

	mu     sync.Mutex
	cached string
}

// NewIdentity constructs an Identity.
func NewIdentity(configured string, store prefstore.Store, logger *slog.Logger) *Identity {
	return &Identity{
		configured: strings.TrimSpace(configured),
		store:      store,
		logger:     logger.With("component", "device.identity"),
	}
}

// DeviceID returns the stable device identifier.
func (i *Identity) DeviceID(ctx context.Context) (string, error) {
	if i.configured != "" {
		return i.configured, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cached != "" {
		return i.cached, nil
	}

	stored, ok, err := i.store.Get(ctx, deviceIDKey)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorage, "failed to read device id", err)
	}
	if ok && stored != "" {
		i.cached = stored
		return stored, nil
	}

	generated := uuid.NewString()
	if err := i.store.Set(ctx, deviceIDKey, generated); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorage, "failed to persist device id", err)
	}
	i.logger.Info("generated device id", "deviceId", generated)
	i.cached = generated
	return generated, nil
}
