package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

const (
	// IngestSubject carries ingestion requests.
	IngestSubject = "docstack.ingest"
	// DLQSubject receives requests that exhausted their retries.
	DLQSubject = "docstack.ingest.dlq"
	// MaxRetries before a request is dead-lettered.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// IngestRequest is the queue message asking for a file to be ingested.
type IngestRequest struct {
	Path string `json:"path"`
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request IngestRequest `json:"request"`
	Error   string        `json:"error"`
	Retries int           `json:"retries"`
}

// ingester is the slice of the Orchestrator the consumer needs.
type ingester interface {
	Ingest(ctx context.Context, path string) bool
}

// publisher is the slice of the NATS connection the consumer needs.
type publisher interface {
	Publish(subject string, data []byte) error
	PublishMsg(msg *nats.Msg) error
}

// Consumer pulls ingestion requests off NATS and runs them through the
// pipeline with retry and DLQ support.
type Consumer struct {
	pub    publisher
	ing    ingester
	logger *slog.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(pub publisher, ing ingester, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{pub: pub, ing: ing, logger: logger}
}

// Start subscribes to IngestSubject.
func (c *Consumer) Start(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.Subscribe(IngestSubject, c.handle)
}

// handle processes one queue message.
func (c *Consumer) handle(msg *nats.Msg) {
	var req IngestRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		c.logger.Error("queue: unmarshal failed", "err", err)
		return
	}

	retries := 0
	if msg.Header != nil {
		if v := msg.Header.Get(retryHeader); v != "" {
			fmt.Sscanf(v, "%d", &retries)
		}
	}

	if c.ing.Ingest(context.Background(), req.Path) {
		c.logger.Info("queue: ingested", "path", req.Path)
		return
	}

	retries++
	c.logger.Error("queue: ingest failed", "path", req.Path, "retry", retries)

	if retries >= MaxRetries {
		data, _ := json.Marshal(dlqMessage{
			Request: req,
			Error:   "ingest failed",
			Retries: retries,
		})
		if err := c.pub.Publish(DLQSubject, data); err != nil {
			c.logger.Error("queue: DLQ publish failed", "err", err)
		}
		return
	}

	retryMsg := nats.NewMsg(IngestSubject)
	retryMsg.Data = msg.Data
	retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
	if err := c.pub.PublishMsg(retryMsg); err != nil {
		c.logger.Error("queue: retry publish failed", "err", err)
	}
}
