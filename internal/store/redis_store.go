package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bloxkit/experience-notify/internal/domain"
)

// RedisStore is the default JobStore backend.
//
// Layout, all keys under "notify:<queue>:":
//
//	job:<id>        hash    full job record, status as a plain field
//	ready           zset    queued job ids scored by ReadyAt (unix ms)
//	status:<state>  set     membership index per lifecycle state
//	expiry          zset    all job ids scored by ExpiresAt (unix ms)
//
// Claiming runs as a Lua script so the ready-set pop and the
// queued→processing transition are one atomic step.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, queueName string) *RedisStore {
	return &RedisStore{client: client, prefix: "notify:" + queueName + ":"}
}

// claimScript pops due ids from the ready zset and moves each one to
// processing in the same atomic step. ZRANGEBYSCORE returns members in
// score order, ties in lexical member order, which satisfies the
// "FIFO within the ready set, no stronger" ordering contract.
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
local claimed = {}
for _, id in ipairs(due) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('SMOVE', KEYS[2], KEYS[3], id)
	redis.call('HSET', ARGV[3] .. id, 'status', 'processing', 'updated_at', ARGV[1])
	claimed[#claimed + 1] = id
end
return claimed
`)

// cancelScript deletes a job only while it is still queued. Checking the
// status and deleting in one script keeps cancel from racing a claim.
var cancelScript = redis.NewScript(`
local status = redis.call('HGET', ARGV[1] .. ARGV[2], 'status')
if status ~= 'queued' then
	return 0
end
redis.call('DEL', ARGV[1] .. ARGV[2])
redis.call('ZREM', KEYS[1], ARGV[2])
redis.call('SREM', KEYS[2], ARGV[2])
redis.call('ZREM', KEYS[3], ARGV[2])
return 1
`)

func (s *RedisStore) jobKey(id string) string { return s.prefix + "job:" + id }
func (s *RedisStore) readyKey() string        { return s.prefix + "ready" }
func (s *RedisStore) expiryKey() string       { return s.prefix + "expiry" }
func (s *RedisStore) statusKey(st domain.Status) string {
	return s.prefix + "status:" + string(st)
}

func (s *RedisStore) Put(ctx context.Context, job *domain.Job) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.jobKey(job.ID), jobToFields(job))
	pipe.ZAdd(ctx, s.readyKey(), redis.Z{
		Score:  float64(job.ReadyAt.UnixMilli()),
		Member: job.ID,
	})
	pipe.SAdd(ctx, s.statusKey(domain.StatusQueued), job.ID)
	pipe.ZAdd(ctx, s.expiryKey(), redis.Z{
		Score:  float64(job.ExpiresAt.UnixMilli()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	fields, err := s.client.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return jobFromFields(fields)
}

func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	keys := []string{
		s.readyKey(),
		s.statusKey(domain.StatusQueued),
		s.expiryKey(),
	}
	removed, err := cancelScript.Run(ctx, s.client, keys, s.prefix+"job:", id).Int()
	if err != nil {
		return false, fmt.Errorf("redis delete job: %w", err)
	}
	return removed == 1, nil
}

func (s *RedisStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	keys := []string{
		s.readyKey(),
		s.statusKey(domain.StatusQueued),
		s.statusKey(domain.StatusProcessing),
	}
	ids, err := claimScript.Run(ctx, s.client, keys,
		now.UnixMilli(), limit, s.prefix+"job:").StringSlice()
	if err != nil {
		return nil, fmt.Errorf("redis claim due: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("redis load claimed job %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *RedisStore) MarkCompleted(ctx context.Context, id string) error {
	return s.finalize(ctx, id, domain.StatusCompleted, "")
}

func (s *RedisStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return s.finalize(ctx, id, domain.StatusFailed, errMsg)
}

func (s *RedisStore) finalize(ctx context.Context, id string, status domain.Status, errMsg string) error {
	fields := map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC().UnixMilli(),
	}
	if errMsg != "" {
		fields["last_error"] = errMsg
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.jobKey(id), fields)
	pipe.SMove(ctx, s.statusKey(domain.StatusProcessing), s.statusKey(status), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mark %s: %w", status, err)
	}
	return nil
}

func (s *RedisStore) CountByStatus(ctx context.Context) (domain.StatusCounts, error) {
	pipe := s.client.Pipeline()
	queued := pipe.SCard(ctx, s.statusKey(domain.StatusQueued))
	processing := pipe.SCard(ctx, s.statusKey(domain.StatusProcessing))
	completed := pipe.SCard(ctx, s.statusKey(domain.StatusCompleted))
	failed := pipe.SCard(ctx, s.statusKey(domain.StatusFailed))
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.StatusCounts{}, fmt.Errorf("redis count by status: %w", err)
	}

	return domain.StatusCounts{
		Queued:     queued.Val(),
		Processing: processing.Val(),
		Completed:  completed.Val(),
		Failed:     failed.Val(),
	}, nil
}

func (s *RedisStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 512,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis find expired: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.jobKey(id))
		pipe.ZRem(ctx, s.expiryKey(), id)
		pipe.ZRem(ctx, s.readyKey(), id)
		for _, st := range []domain.Status{
			domain.StatusQueued, domain.StatusProcessing,
			domain.StatusCompleted, domain.StatusFailed,
		} {
			pipe.SRem(ctx, s.statusKey(st), id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis purge expired: %w", err)
	}
	return len(ids), nil
}

// ---- hash field mapping ----

func jobToFields(job *domain.Job) map[string]any {
	return map[string]any{
		"id":          job.ID,
		"type":        job.Message.Type,
		"user_id":     job.Message.Body.UserID,
		"api_key":     job.Message.Body.APIKey,
		"universe_id": job.Message.Body.UniverseID,
		"asset_id":    job.Message.Body.AssetID,
		"status":      string(job.Status),
		"last_error":  job.LastError,
		"ready_at":    job.ReadyAt.UnixMilli(),
		"expires_at":  job.ExpiresAt.UnixMilli(),
		"created_at":  job.CreatedAt.UnixMilli(),
		"updated_at":  job.UpdatedAt.UnixMilli(),
	}
}

func jobFromFields(fields map[string]string) (*domain.Job, error) {
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt job record: user_id %q", fields["user_id"])
	}

	job := &domain.Job{
		ID: fields["id"],
		Message: domain.Message{
			Type: fields["type"],
			Body: domain.MessageBody{
				UserID:     userID,
				APIKey:     fields["api_key"],
				UniverseID: fields["universe_id"],
				AssetID:    fields["asset_id"],
			},
		},
		Status:    domain.Status(fields["status"]),
		LastError: fields["last_error"],
	}

	for _, f := range []struct {
		name string
		dst  *time.Time
	}{
		{"ready_at", &job.ReadyAt},
		{"expires_at", &job.ExpiresAt},
		{"created_at", &job.CreatedAt},
		{"updated_at", &job.UpdatedAt},
	} {
		ms, err := strconv.ParseInt(fields[f.name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt job record: %s %q", f.name, fields[f.name])
		}
		*f.dst = time.UnixMilli(ms).UTC()
	}

	return job, nil
}

// compile-time check that RedisStore implements JobStore
var _ JobStore = (*RedisStore)(nil)
