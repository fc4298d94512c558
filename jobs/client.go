package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/pacslink/pacslink/internal/mail"
)

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueMail queues one transactional mail for delivery.
func (c *Client) EnqueueMail(ctx context.Context, msg mail.Message, ip, userID string) error {
	task, err := NewSendMailTask(SendMailPayload{Message: msg, IP: ip, UserID: userID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
	return err
}

// EnqueueStoragePurge queues a wipe of the user's uploads.
func (c *Client) EnqueueStoragePurge(ctx context.Context, userID string) error {
	task, err := NewStoragePurgeTask(StoragePurgePayload{UserID: userID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// EnqueueConvert queues background conversion of an upload.
func (c *Client) EnqueueConvert(ctx context.Context, objectID string) error {
	task, err := NewDicomConvertTask(DicomConvertPayload{ObjectID: objectID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
