package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type deliveryJob struct {
	Destination string
	Message     string
}

type worker struct {
	ID         int
	WorkerPool chan chan deliveryJob
	JobChannel chan deliveryJob
	Logger     *slog.Logger
}

func newWorker(id int, workerPool chan chan deliveryJob, logger *slog.Logger) *worker {
	return &worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan deliveryJob),
		Logger:     logger,
	}
}

func (w *worker) start(ctx context.Context, wg *sync.WaitGroup, processFunc func(deliveryJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker delivering notification", "worker_id", w.ID, "destination", job.Destination)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Client delivers notifications through an HTTP gateway using a small worker
// pool so slow providers never block request handlers. Message bodies are
// never logged.
type Client struct {
	gatewayURL  string
	apiKey      string
	sendTimeout time.Duration
	logger      *slog.Logger

	jobQueue   chan deliveryJob
	workerPool chan chan deliveryJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type Config struct {
	GatewayURL  string
	APIKey      string
	SendTimeout time.Duration
	MaxWorkers  int
	QueueSize   int
}

func NewClient(config Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	sendTimeout := config.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	client := &Client{
		gatewayURL:  config.GatewayURL,
		apiKey:      config.APIKey,
		sendTimeout: sendTimeout,
		logger:      logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan deliveryJob, queueSize),
		workerPool: make(chan chan deliveryJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			w := newWorker(i, c.workerPool, c.logger)
			w.start(c.ctx, &c.wg, c.deliver)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("notification worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- job:
				case <-c.ctx.Done():
					return
				}
			case <-c.ctx.Done():
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) Shutdown() {
	c.logger.Info("shutting down notification client")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("notification client shutdown complete")
}

// Send queues the message for asynchronous delivery. It only fails when the
// queue is saturated; delivery failures are logged by the worker.
func (c *Client) Send(_ context.Context, destination, message string) error {
	job := deliveryJob{Destination: destination, Message: message}

	select {
	case c.jobQueue <- job:
		c.logger.Debug("notification queued",
			"destination", destination,
			"queue_length", len(c.jobQueue))
		return nil
	default:
		c.logger.Warn("notification queue full, dropping message",
			"destination", destination,
			"queue_capacity", cap(c.jobQueue))
		return NewDeliveryError(fmt.Errorf("notification queue full"))
	}
}

func (c *Client) deliver(job deliveryJob) {
	payload := map[string]interface{}{
		"destination": job.Destination,
		"message":     job.Message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("failed to marshal notification payload", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		c.logger.Error("failed to create notification request", "error", err, "destination", job.Destination)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpClient := &http.Client{Timeout: c.sendTimeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger.Error("notification delivery failed", "error", err, "destination", job.Destination)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		c.logger.Error("notification gateway returned error status",
			"status", resp.StatusCode,
			"destination", job.Destination)
		return
	}

	c.logger.Info("notification delivered", "destination", job.Destination)
}
