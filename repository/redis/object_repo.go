package redis

import (
	"context"
	"fmt"

	redislib "github.com/redis/go-redis/v9"

	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/repository"
)

type objectStore struct {
	client *redislib.Client
	prefix string
}

// NewObjectStore creates a Redis-backed ObjectStore. Object bytes live under
// "obj:{key}" and the content type under a sidecar "obj:{key}:ct" entry.
func NewObjectStore(client *redislib.Client) repository.ObjectStore {
	return &objectStore{
		client: client,
		prefix: "obj:",
	}
}

func (s *objectStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	data, err := s.client.Get(ctx, s.dataKey(key)).Bytes()
	if err != nil {
		if err == redislib.Nil {
			return nil, "", domain.NewError(domain.ErrCodeNotFound, fmt.Sprintf("object %s not found", key))
		}
		return nil, "", domain.WrapError(domain.ErrCodeInternal, "object read failed", err)
	}
	contentType, err := s.client.Get(ctx, s.typeKey(key)).Result()
	if err != nil && err != redislib.Nil {
		return nil, "", domain.WrapError(domain.ErrCodeInternal, "object type read failed", err)
	}
	return data, contentType, nil
}

func (s *objectStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dataKey(key), data, 0)
	pipe.Set(ctx, s.typeKey(key), contentType, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "object write failed", err)
	}
	return nil
}

func (s *objectStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	pipe := s.client.TxPipeline()
	pipe.Copy(ctx, s.dataKey(srcKey), s.dataKey(dstKey), 0, true)
	pipe.Copy(ctx, s.typeKey(srcKey), s.typeKey(dstKey), 0, true)
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "object copy failed", err)
	}
	if copied, _ := cmds[0].(*redislib.IntCmd).Result(); copied == 0 {
		return domain.NewError(domain.ErrCodeNotFound, fmt.Sprintf("object %s not found", srcKey))
	}
	return nil
}

func (s *objectStore) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		redisKeys = append(redisKeys, s.dataKey(key), s.typeKey(key))
	}
	// DEL ignores missing keys, which is exactly the idempotent delete the
	// workflow needs.
	if err := s.client.Del(ctx, redisKeys...).Err(); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "object batch delete failed", err)
	}
	return nil
}

func (s *objectStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.dataKey(key)).Result()
	if err != nil {
		return false, domain.WrapError(domain.ErrCodeInternal, "object existence check failed", err)
	}
	return n > 0, nil
}

func (s *objectStore) dataKey(key string) string {
	return s.prefix + key
}

func (s *objectStore) typeKey(key string) string {
	return s.prefix + key + ":ct"
}
