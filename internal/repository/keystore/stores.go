package keystore

import (
	"context"
	"time"

	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/topic"
	"e2e_xmtp/internal/transport"
	"e2e_xmtp/internal/utils/log"

	"go.uber.org/zap"
)

const networkStorePageSize = 10

type (
	// NetworkStore keeps values on private-store topics. The first non-empty
	// envelope on a topic is the value.
	NetworkStore struct {
		transport transport.Transport
	}

	// Persistence is a keyed record store, e.g. a mongo collection.
	Persistence interface {
		GetByKey(ctx context.Context, key string) (*model.StoredKeyBundle, error)
		Upsert(ctx context.Context, record *model.StoredKeyBundle) error
	}

	// LocalStore keeps values in local persistence keyed by address.
	LocalStore struct {
		repo Persistence
	}
)

func NewNetworkStore(t transport.Transport) *NetworkStore {
	return &NetworkStore{transport: t}
}

func (s *NetworkStore) Get(ctx context.Context, key string) ([]byte, error) {
	filter := transport.Filter{ContentTopics: []string{topic.UserPrivateStore(key)}}
	opts := transport.QueryOptions{PageSize: networkStorePageSize, Direction: transport.SortAscending}

	for env, err := range transport.QueryIterator(ctx, s.transport, filter, opts) {
		if err != nil {
			return nil, err
		}
		if len(env.Message) == 0 {
			continue
		}
		return env.Message, nil
	}
	return nil, nil
}

func (s *NetworkStore) Set(ctx context.Context, key string, value []byte) error {
	return s.transport.Publish(ctx, []model.Envelope{{
		ContentTopic: topic.UserPrivateStore(key),
		Message:      value,
	}})
}

func NewLocalStore(repo Persistence) *LocalStore {
	return &LocalStore{repo: repo}
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	record, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return record.Bundle, nil
}

func (s *LocalStore) Set(ctx context.Context, key string, value []byte) error {
	err := s.repo.Upsert(ctx, &model.StoredKeyBundle{
		Key:       key,
		Bundle:    value,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error("store key bundle failed", zap.String("key", key), zap.Error(err))
	}
	return err
}
