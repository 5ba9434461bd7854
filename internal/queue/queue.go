// Package queue is a durable job queue on redis streams. Failed jobs are
// parked in a sorted set and re-enqueued after an exponential backoff;
// jobs that exhaust their attempts land on a dead letter stream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gikundiro/momo-gateway/pkg/logger"
	"github.com/gikundiro/momo-gateway/pkg/redis"
)

// Job is one delivery of a queued payload. Attempts counts prior
// failed deliveries, so the first run sees Attempts == 0.
type Job struct {
	ID        string
	JobID     string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
	LastError string

	// FinalAttempt is true when a failure here buries the job instead
	// of scheduling another retry.
	FinalAttempt bool
}

// Handler processes one job. A nil return acks the job; an error
// schedules a delayed retry or, after the last attempt, buries it.
type Handler func(ctx context.Context, job *Job) error

type Config struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxAttempts       int
	BackoffBaseDelay  time.Duration
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

type Queue struct {
	adapter redis.RedisAdapter
	config  Config
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// JobState in the Jobs listing.
const (
	StateWaiting = "waiting"
	StateActive  = "active"
	StateDelayed = "delayed"
)

// JobInfo describes one job for the operations API.
type JobInfo struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	State       string    `json:"state"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	ReadyAt     time.Time `json:"ready_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// delayedJob is the sorted set member payload for a parked retry.
type delayedJob struct {
	JobID      string            `json:"job_id"`
	Data       string            `json:"data"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Attempts   int               `json:"attempts"`
	EnqueuedAt int64             `json:"enqueued_at"`
	LastError  string            `json:"last_error,omitempty"`
}

func New(adapter redis.RedisAdapter, config Config) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = config.Name + "-workers"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.BackoffBaseDelay == 0 {
		config.BackoffBaseDelay = 2 * time.Second
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// Group may already exist after a restart.
	_ = q.adapter.XGroupCreateMkStream(q.config.Name, q.config.ConsumerGroup, "0")

	return q, nil
}

func (q *Queue) delayedKey() string { return q.config.Name + ":delayed" }
func (q *Queue) dlqKey() string     { return q.config.Name + ":dlq" }

// Enqueue adds a fresh job and returns its stable job id.
func (q *Queue) Enqueue(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	jobID := uuid.NewString()
	if _, err := q.append(jobID, data, metadata, 0, ""); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return jobID, nil
}

// EnqueueJSON marshals data and enqueues it.
func (q *Queue) EnqueueJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return q.Enqueue(ctx, payload, metadata)
}

func (q *Queue) append(jobID string, data []byte, metadata map[string]string, attempts int, lastError string) (string, error) {
	values := map[string]interface{}{
		"job_id":    jobID,
		"data":      string(data),
		"timestamp": time.Now().UnixMilli(),
		"attempts":  attempts,
	}
	if lastError != "" {
		values["last_error"] = lastError
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", err
	}
	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen)
	}
	return id, nil
}

// Consume starts the worker loop. Call Stop to drain it.
func (q *Queue) Consume(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("job handler is required")
	}

	q.handler = handler
	q.wg.Add(1)
	go q.consumeLoop()

	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.promoteDelayed()
			q.processJobs()
			q.claimStuckJobs()
		}
	}
}

// promoteDelayed moves due retries from the sorted set back onto the stream.
func (q *Queue) promoteDelayed() {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := q.adapter.ZRangeByScore(q.delayedKey(), "-inf", now, q.config.BatchSize)
	if err != nil || len(members) == 0 {
		return
	}

	for _, member := range members {
		var parked delayedJob
		if err := json.Unmarshal([]byte(member), &parked); err != nil {
			logger.Error("dropping undecodable delayed job", "queue", q.config.Name, "error", err.Error())
			_ = q.adapter.ZRem(q.delayedKey(), member)
			continue
		}

		if _, err := q.append(parked.JobID, []byte(parked.Data), parked.Metadata, parked.Attempts, parked.LastError); err != nil {
			logger.Error("failed to promote delayed job", "queue", q.config.Name, "job_id", parked.JobID, "error", err.Error())
			continue
		}
		_ = q.adapter.ZRem(q.delayedKey(), member)
	}
}

func (q *Queue) processJobs() {
	messages, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if err != redis.NilError {
			logger.Error("queue read failed", "queue", q.config.Name, "error", err.Error())
		}
		return
	}

	for _, streamMsg := range messages {
		q.handleJob(q.toJob(streamMsg))
	}
}

// claimStuckJobs reclaims deliveries held by consumers that died
// mid-processing. Those re-deliveries do not consume an attempt.
func (q *Queue) claimStuckJobs() {
	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	var ids []string
	for _, msg := range pendingExt {
		if msg.Idle >= q.config.VisibilityTimeout {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		ids...,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		q.handleJob(q.toJob(streamMsg))
	}
}

func (q *Queue) handleJob(job *Job) {
	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	err := q.handler(ctx, job)
	if err == nil {
		_ = q.ack(job.ID)
		return
	}

	q.retryOrBury(job, err)
}

// retryOrBury acks the failed delivery and either parks a retry with
// exponential backoff or, once attempts are exhausted, buries the job
// on the dead letter stream.
func (q *Queue) retryOrBury(job *Job, cause error) {
	_ = q.ack(job.ID)

	attempts := job.Attempts + 1
	if attempts >= q.config.MaxAttempts {
		q.bury(job, attempts, cause)
		return
	}

	delay := q.config.BackoffBaseDelay << (attempts - 1)
	readyAt := time.Now().Add(delay)

	member, err := json.Marshal(delayedJob{
		JobID:      job.JobID,
		Data:       string(job.Data),
		Metadata:   job.Metadata,
		Attempts:   attempts,
		EnqueuedAt: job.Timestamp.UnixMilli(),
		LastError:  cause.Error(),
	})
	if err != nil {
		q.bury(job, attempts, cause)
		return
	}

	if err := q.adapter.ZAdd(q.delayedKey(), float64(readyAt.UnixMilli()), string(member)); err != nil {
		logger.Error("failed to park retry, burying job",
			"queue", q.config.Name, "job_id", job.JobID, "error", err.Error())
		q.bury(job, attempts, cause)
		return
	}

	logger.Warn("job failed, retry scheduled",
		"queue", q.config.Name, "job_id", job.JobID,
		"attempt", attempts, "delay", delay, "error", cause.Error())
}

func (q *Queue) bury(job *Job, attempts int, cause error) {
	logger.Error("job exhausted attempts",
		"queue", q.config.Name, "job_id", job.JobID,
		"attempts", attempts, "error", cause.Error())

	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"job_id":         job.JobID,
		"data":           string(job.Data),
		"attempts":       attempts,
		"failed_at":      time.Now().UnixMilli(),
		"last_error":     cause.Error(),
		"original_queue": q.config.Name,
	}
	for k, v := range job.Metadata {
		values["meta_"+k] = v
	}

	if _, err := q.adapter.XAdd(q.dlqKey(), values); err != nil {
		logger.Error("failed to write dead letter", "queue", q.config.Name, "job_id", job.JobID, "error", err.Error())
	}
}

// ack acknowledges and removes the entry so stream length stays a
// usable depth measure.
func (q *Queue) ack(id string) error {
	if err := q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, id); err != nil {
		return err
	}
	return q.adapter.XDel(q.config.Name, id)
}

func (q *Queue) toJob(streamMsg redis.StreamMessage) *Job {
	job := &Job{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range streamMsg.Values {
		val, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "job_id":
			job.JobID = val
		case "data":
			job.Data = []byte(val)
		case "timestamp":
			if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
				job.Timestamp = time.UnixMilli(ms)
			}
		case "attempts":
			if n, err := strconv.Atoi(val); err == nil {
				job.Attempts = n
			}
		case "last_error":
			job.LastError = val
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				job.Metadata[k[5:]] = val
			}
		}
	}

	if job.Timestamp.IsZero() {
		job.Timestamp = time.Now()
	}
	job.FinalAttempt = job.Attempts+1 >= q.config.MaxAttempts

	return job
}

// Depth is the number of jobs waiting or parked for retry.
func (q *Queue) Depth() (int64, error) {
	streamLen, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return 0, err
	}
	delayed, err := q.adapter.ZCard(q.delayedKey())
	if err != nil {
		return 0, err
	}
	return streamLen + delayed, nil
}

// Jobs lists queued and parked jobs for the operations API.
func (q *Queue) Jobs(limit int64) ([]JobInfo, error) {
	if limit <= 0 {
		limit = 100
	}

	active := make(map[string]bool)
	if pendingExt, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", limit); err == nil {
		for _, p := range pendingExt {
			active[p.ID] = true
		}
	}

	var out []JobInfo

	messages, err := q.adapter.XRange(q.config.Name, "-", "+", limit)
	if err != nil {
		return nil, err
	}
	for _, streamMsg := range messages {
		job := q.toJob(streamMsg)
		state := StateWaiting
		if active[job.ID] {
			state = StateActive
		}
		out = append(out, JobInfo{
			ID:          job.ID,
			JobID:       job.JobID,
			State:       state,
			Attempts:    job.Attempts,
			MaxAttempts: q.config.MaxAttempts,
			EnqueuedAt:  job.Timestamp,
			LastError:   job.LastError,
		})
	}

	parked, err := q.adapter.ZRangeWithScores(q.delayedKey(), 0, limit-1)
	if err != nil {
		return out, nil
	}
	for _, member := range parked {
		var dj delayedJob
		if err := json.Unmarshal([]byte(member.Member), &dj); err != nil {
			continue
		}
		out = append(out, JobInfo{
			JobID:       dj.JobID,
			State:       StateDelayed,
			Attempts:    dj.Attempts,
			MaxAttempts: q.config.MaxAttempts,
			EnqueuedAt:  time.UnixMilli(dj.EnqueuedAt),
			ReadyAt:     time.UnixMilli(int64(member.Score)),
			LastError:   dj.LastError,
		})
	}

	return out, nil
}

// DeadLetters lists buried jobs.
func (q *Queue) DeadLetters(limit int64) ([]JobInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	messages, err := q.adapter.XRange(q.dlqKey(), "-", "+", limit)
	if err != nil {
		return nil, err
	}

	out := make([]JobInfo, 0, len(messages))
	for _, streamMsg := range messages {
		job := q.toJob(streamMsg)
		out = append(out, JobInfo{
			ID:          job.ID,
			JobID:       job.JobID,
			State:       "dead",
			Attempts:    job.Attempts,
			MaxAttempts: q.config.MaxAttempts,
			EnqueuedAt:  job.Timestamp,
			LastError:   job.LastError,
		})
	}
	return out, nil
}

// Stop cancels the consume loop and waits for in-flight jobs.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}
