package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	applogger "FinCast/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultOrdersKey is the Redis key holding the order bundle.
const DefaultOrdersKey = "fincast:orders"

// decodeBundle accepts YAML or JSON; yaml.v3 reads both.
func decodeBundle(raw []byte) (models.ModelSpec, error) {
	var b models.OrderBundle
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return models.ModelSpec{}, fmt.Errorf("%w: %v", models.ErrInvalidBundle, err)
	}
	return b.Spec()
}

// FileOrderStore keeps the order bundle in a YAML or JSON file.
type FileOrderStore struct {
	path string
	mu   sync.Mutex
}

var (
	_ domrepo.OrderStore  = (*FileOrderStore)(nil)
	_ domrepo.OrderWriter = (*FileOrderStore)(nil)
)

func NewFileOrderStore(path string) *FileOrderStore {
	return &FileOrderStore{path: path}
}

func (s *FileOrderStore) Load(_ context.Context) (models.ModelSpec, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return models.ModelSpec{}, fmt.Errorf("%w: read %s: %v", domsvc.ErrStorageUnavailable, s.path, err)
	}
	spec, err := decodeBundle(raw)
	if err != nil {
		return models.ModelSpec{}, fmt.Errorf("%w: %s: %w", domsvc.ErrStorageUnavailable, s.path, err)
	}
	return spec, nil
}

// Save writes the bundle as YAML, or JSON when the path ends in .json.
// The file is replaced atomically.
func (s *FileOrderStore) Save(_ context.Context, spec models.ModelSpec) error {
	b := models.NewOrderBundle(spec)
	var (
		raw []byte
		err error
	)
	if filepath.Ext(s.path) == ".json" {
		raw, err = json.MarshalIndent(b, "", "  ")
	} else {
		raw, err = yaml.Marshal(b)
	}
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace bundle: %w", err)
	}
	return nil
}

// RedisOrderStore keeps the order bundle as JSON under one Redis key.
type RedisOrderStore struct {
	client redis.UniversalClient
	key    string
}

var (
	_ domrepo.OrderStore  = (*RedisOrderStore)(nil)
	_ domrepo.OrderWriter = (*RedisOrderStore)(nil)
)

func NewRedisOrderStore(client redis.UniversalClient, key string) *RedisOrderStore {
	if key == "" {
		key = DefaultOrdersKey
	}
	return &RedisOrderStore{client: client, key: key}
}

func (s *RedisOrderStore) Load(ctx context.Context) (models.ModelSpec, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ModelSpec{}, fmt.Errorf("%w: key %s not set", domsvc.ErrStorageUnavailable, s.key)
	}
	if err != nil {
		return models.ModelSpec{}, fmt.Errorf("%w: redis get: %v", domsvc.ErrStorageUnavailable, err)
	}
	spec, err := decodeBundle(raw)
	if err != nil {
		return models.ModelSpec{}, fmt.Errorf("%w: key %s: %w", domsvc.ErrStorageUnavailable, s.key, err)
	}
	return spec, nil
}

func (s *RedisOrderStore) Save(ctx context.Context, spec models.ModelSpec) error {
	raw, err := json.Marshal(models.NewOrderBundle(spec))
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// DefaultingOrderStore never fails. The inner store is read on every Load and
// any error yields the fallback spec, the defaults unless SetFallback is used.
type DefaultingOrderStore struct {
	inner   domrepo.OrderStore
	metrics domrepo.Metrics
	l       *applogger.Logger

	mu       sync.RWMutex
	fallback models.ModelSpec
}

var _ domrepo.OrderStore = (*DefaultingOrderStore)(nil)

func NewDefaultingOrderStore(inner domrepo.OrderStore, metrics domrepo.Metrics, l *applogger.Logger) *DefaultingOrderStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &DefaultingOrderStore{inner: inner, metrics: metrics, l: l, fallback: models.DefaultModelSpec()}
}

// SetFallback replaces the spec served when the bundle cannot be loaded.
func (s *DefaultingOrderStore) SetFallback(spec models.ModelSpec) {
	s.mu.Lock()
	s.fallback = spec
	s.mu.Unlock()
}

func (s *DefaultingOrderStore) Load(ctx context.Context) (models.ModelSpec, error) {
	spec, err := s.inner.Load(ctx)
	if err == nil {
		return spec, nil
	}

	if !errors.Is(err, domsvc.ErrStorageUnavailable) {
		err = fmt.Errorf("%w: %w", domsvc.ErrStorageUnavailable, err)
	}
	if s.metrics != nil {
		s.metrics.RecordRecovered(domsvc.Kind(err))
	}
	s.l.Warn("order bundle unavailable, using default orders", applogger.Error(err))

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback, nil
}
