package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gikundiro/momo-gateway/internal/config"
	"github.com/gikundiro/momo-gateway/internal/queue"
	"github.com/gikundiro/momo-gateway/pkg/logger"
	"github.com/gikundiro/momo-gateway/pkg/prom"
	"github.com/gikundiro/momo-gateway/pkg/redis"
	"github.com/gikundiro/momo-gateway/pkg/worker"
)

const ProcessingTimeout = time.Second * 30
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// ProcessorService consumes the parse queue and runs jobs through the
// registered processor on a bounded worker pool.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	queue     *queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

// Processor handles one job type.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
	GetType() string
}

func NewProcessorService(redis redis.RedisAdapter) (*ProcessorService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	service := &ProcessorService{
		adapter: redis,
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(10_000, config.Get().WorkerConcurrency, nil),
	}
	return service, nil
}

func (s *ProcessorService) RegisterProcessor(processor Processor) {
	s.processor = processor
	logger.Info("Registered processor", "type", processor.GetType())
}

// Queue exposes the underlying queue for the operations API.
func (s *ProcessorService) Queue() *queue.Queue {
	return s.queue
}

func (s *ProcessorService) Start() error {
	logger.Info("Starting Processor Service...")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	queueConfig := queue.Config{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxAttempts:       config.Get().QueueMaxAttempts,
		BackoffBaseDelay:  config.Get().QueueBackoffBaseDelay,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	}

	q, err := queue.New(s.adapter, queueConfig)
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}

	if err := q.Consume(s.jobHandler); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	s.queue = q

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("Processor Service started",
		"queue", queueConfig.Name, "workers", config.Get().WorkerConcurrency)
	return nil
}

// metricsReporter refreshes the queue depth gauge and logs throughput.
func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("Service metrics",
		"total_processed", stats["total_processed"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	if s.queue != nil {
		if depth, err := s.queue.Depth(); err == nil {
			prom.SetQueueDepth(config.Get().QueueName, float64(depth))
			logger.Info("Queue depth", "queue", config.Get().QueueName, "depth", depth)
		}
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("HEALTH CHECK FAILED: Redis connection error", "error", err)
		return
	}

	if s.queue != nil {
		depth, err := s.queue.Depth()
		if err != nil {
			logger.Warn("HEALTH CHECK WARNING: queue depth unavailable", "error", err)
			return
		}
		if depth > 10_000 {
			logger.Warn("HEALTH CHECK WARNING: queue has high lag", "depth", depth)
		}
	}

	logger.Info("HEALTH CHECK: OK - Service healthy")
}

func (s *ProcessorService) Stop() {
	logger.Info("Shutting down Processor Service...")

	s.cancel()

	if s.queue != nil {
		if err := s.queue.Stop(ShutdownTimeout); err != nil {
			logger.Error("Error stopping queue", "error", err)
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("Processor Service stopped")
}

type jobResult struct {
	job        *queue.Job
	resultChan chan error
	ctx        context.Context
}

// jobHandler bridges the queue consumer to the worker pool and blocks
// until the worker reports a result, so queue retry semantics hold.
func (s *ProcessorService) jobHandler(ctx context.Context, job *queue.Job) error {
	// The gauge tracks every job, success or failure.
	defer func() {
		if s.queue == nil {
			return
		}
		if depth, err := s.queue.Depth(); err == nil {
			prom.SetQueueDepth(config.Get().QueueName, float64(depth))
		}
	}()

	resultChan := make(chan error, 1)

	jobCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	s.worker.Enqueue(&jobResult{
		job:        job,
		resultChan: resultChan,
		ctx:        jobCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process job: %w", jobCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}

	start := time.Now()
	var resultErr error

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("Job context cancelled before processing started", "worker", workerIndex)
		return
	default:
	}

	if s.processor == nil {
		logger.Info("No processor registered", "worker", workerIndex)
		s.metrics.RecordFailure()
		resultErr = nil
	} else if err := s.processor.Process(jobRes.ctx, jobRes.job); err != nil {
		s.metrics.RecordFailure()
		logger.Error("Failed to process job", "worker", workerIndex, "job_id", jobRes.job.JobID, "error", err)
		resultErr = err
	} else {
		s.metrics.RecordSuccess(time.Since(start))
		resultErr = nil
	}

	// The handler may have timed out and stopped listening.
	select {
	case jobRes.resultChan <- resultErr:
	default:
	}
}
