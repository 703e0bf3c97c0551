package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/redis/go-redis/v9"

	"worker-proxy-server/models"
)

const (
	QueueKey        = "proxy:queue"
	ResultKeyPrefix = "proxy:result:"
	ResultTTL       = 10 * time.Minute
)

// JobQueue carries async submissions to the consumers and their results back
type JobQueue interface {
	PushJob(ctx context.Context, job *models.AsyncJob) error
	PopJob(ctx context.Context, wait time.Duration) (*models.AsyncJob, error)
	SetResult(ctx context.Context, result *models.AsyncJobResult) error
	GetResult(ctx context.Context, jobID string) (*models.AsyncJobResult, error)
	Ping(ctx context.Context) error
}

type RedisService struct {
	client    *redis.Client
	resultTTL time.Duration
}

var _ JobQueue = (*RedisService)(nil)

func NewRedisService(host string, port int, resultTTL time.Duration) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})
	if resultTTL <= 0 {
		resultTTL = ResultTTL
	}
	return &RedisService{client: client, resultTTL: resultTTL}
}

func (r *RedisService) Close() error {
	return r.client.Close()
}

// PushJob enqueues an async submission
func (r *RedisService) PushJob(ctx context.Context, job *models.AsyncJob) error {
	var err error
	traced(ctx, "Redis.LPush", func(ctx1 context.Context) error {
		jsonData, marshalErr := json.Marshal(job)
		if marshalErr != nil {
			err = marshalErr
			return marshalErr
		}
		err = r.client.LPush(ctx, QueueKey, string(jsonData)).Err()

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.queue_key", QueueKey)
			seg.AddMetadata("redis.operation", "LPUSH")
			seg.AddMetadata("redis.job_id", job.JobID)
		}

		return err
	})
	return err
}

// PopJob blocks up to wait for the next job. A nil job with a nil error
// means the wait elapsed with nothing queued.
func (r *RedisService) PopJob(ctx context.Context, wait time.Duration) (*models.AsyncJob, error) {
	result, err := r.client.BRPop(ctx, wait, QueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// result[0] is the queue key, result[1] is the data
	var job models.AsyncJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("parsing queued job: %w", err)
	}
	return &job, nil
}

// SetResult stores a job result under its ID until the result TTL expires
func (r *RedisService) SetResult(ctx context.Context, result *models.AsyncJobResult) error {
	var err error
	traced(ctx, "Redis.Set", func(ctx1 context.Context) error {
		jsonData, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			err = marshalErr
			return marshalErr
		}
		key := ResultKeyPrefix + result.JobID
		err = r.client.Set(ctx, key, jsonData, r.resultTTL).Err()

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.key", key)
			seg.AddMetadata("redis.operation", "SET")
		}

		return err
	})
	return err
}

// GetResult retrieves a job result. A missing key yields ErrJobNotFound.
func (r *RedisService) GetResult(ctx context.Context, jobID string) (*models.AsyncJobResult, error) {
	var result *models.AsyncJobResult
	var finalErr error

	traced(ctx, "Redis.Get", func(ctx1 context.Context) error {
		key := ResultKeyPrefix + jobID
		jsonData, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			finalErr = ErrJobNotFound
			return nil
		}
		if err != nil {
			finalErr = err
			return err
		}

		var jobResult models.AsyncJobResult
		if err := json.Unmarshal([]byte(jsonData), &jobResult); err != nil {
			finalErr = err
			return err
		}
		result = &jobResult

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.key", key)
			seg.AddMetadata("redis.operation", "GET")
		}

		return nil
	})

	return result, finalErr
}

// Ping checks Redis connection
func (r *RedisService) Ping(ctx context.Context) error {
	var err error
	traced(ctx, "Redis.Ping", func(ctx1 context.Context) error {
		err = r.client.Ping(ctx).Err()

		if seg := xray.GetSegment(ctx1); seg != nil {
			seg.AddMetadata("redis.operation", "PING")
		}

		return err
	})
	return err
}
