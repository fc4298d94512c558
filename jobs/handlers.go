package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pacslink/pacslink/internal/audit"
	"github.com/pacslink/pacslink/internal/mail"
	"github.com/pacslink/pacslink/internal/storage"
	"github.com/pacslink/pacslink/internal/token"
)

// MailJob delivers queued mail and records the outcome in the audit trail.
type MailJob struct {
	Sender  mail.Sender
	Audit   *audit.Service
	Logger  *slog.Logger
	Metrics *Metrics
}

// Handle processes TaskSendMail tasks.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendMailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	msg := payload.Message
	track := j.Metrics.Track(TaskSendMail)

	if err := j.Sender.Send(ctx, msg); err != nil {
		j.Logger.Warn("send mail", slog.String("to", msg.To), slog.Any("error", err))
		if auditErr := j.Audit.Record(ctx, audit.Entry{
			IP:     payload.IP,
			Type:   "ERROR:MAIL",
			Action: fmt.Sprintf("MAIL %q delivery failed (%s)", msg.Subject, msg.To),
			Data:   err.Error(),
			UserID: payload.UserID,
		}); auditErr != nil {
			j.Logger.Warn("audit mail failure", slog.Any("error", auditErr))
		}
		return track.End(err)
	}

	if err := j.Audit.Record(ctx, audit.Entry{
		IP:     payload.IP,
		Type:   "MAIL",
		Action: fmt.Sprintf("MAIL %q delivered (%s)", msg.Subject, msg.To),
		UserID: payload.UserID,
	}); err != nil {
		j.Logger.Warn("audit mail success", slog.Any("error", err))
	}
	return track.End(nil)
}

// PurgeJob wipes a user's uploads.
type PurgeJob struct {
	Storage *storage.Service
	Logger  *slog.Logger
	Metrics *Metrics
}

// Handle processes TaskStoragePurge tasks.
func (j *PurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StoragePurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.UserID == "" {
		return asynq.SkipRetry
	}
	track := j.Metrics.Track(TaskStoragePurge)
	if err := j.Storage.PurgeUserFiles(ctx, payload.UserID); err != nil {
		j.Logger.Warn("purge user files", slog.String("user_id", payload.UserID), slog.Any("error", err))
		return track.End(err)
	}
	return track.End(nil)
}

// ConvertJob renders uploads to PNG in the background.
type ConvertJob struct {
	Storage *storage.Service
	Logger  *slog.Logger
	Metrics *Metrics
}

// Handle processes TaskDicomConvert tasks.
func (j *ConvertJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DicomConvertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	track := j.Metrics.Track(TaskDicomConvert)
	if err := j.Storage.ConvertObject(ctx, payload.ObjectID); err != nil {
		j.Logger.Warn("convert object", slog.String("object_id", payload.ObjectID), slog.Any("error", err))
		return track.End(err)
	}
	return track.End(nil)
}

// SweepJob reclaims expired verification tokens.
type SweepJob struct {
	Tokens  *token.Service
	Logger  *slog.Logger
	Metrics *Metrics
}

// Handle processes TaskTokenSweep tasks.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	track := j.Metrics.Track(TaskTokenSweep)
	deleted, err := j.Tokens.Sweep(ctx)
	if err != nil {
		return track.End(err)
	}
	if deleted > 0 {
		j.Logger.Info("token sweep", slog.Int64("deleted", deleted))
	}
	return track.End(nil)
}
