// Package jobs defines the background task types and the Asynq worker.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/pacslink/pacslink/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSendMail delivers one transactional mail.
	TaskSendMail = "mail:send"
	// TaskStoragePurge wipes a user's uploads (records, local files, bucket).
	TaskStoragePurge = "storage:purge"
	// TaskDicomConvert renders an uploaded DICOM file to PNG and ships it to the bucket.
	TaskDicomConvert = "dicom:convert"
	// TaskTokenSweep deletes verification tokens past their due date.
	TaskTokenSweep = "token:sweep"
)

// SendMailPayload describes one mail:send task.
type SendMailPayload struct {
	Message mail.Message `json:"message"`
	// IP and UserID feed the audit trail written after delivery.
	IP     string `json:"ip,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// StoragePurgePayload describes one storage:purge task.
type StoragePurgePayload struct {
	UserID string `json:"userId"`
}

// DicomConvertPayload describes one dicom:convert task.
type DicomConvertPayload struct {
	ObjectID string `json:"objectId"`
}

// NewSendMailTask constructs an Asynq task.
func NewSendMailTask(payload SendMailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendMail, data), nil
}

// NewStoragePurgeTask constructs an Asynq task.
func NewStoragePurgeTask(payload StoragePurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStoragePurge, data), nil
}

// NewDicomConvertTask constructs an Asynq task.
func NewDicomConvertTask(payload DicomConvertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDicomConvert, data), nil
}

// NewTokenSweepTask constructs the nightly sweep task.
func NewTokenSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTokenSweep, nil)
}
