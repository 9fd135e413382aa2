package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/ledgerdesk/ledgerdesk/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskOverdueSweep flags invoices past their due date.
	TaskOverdueSweep = "invoices:overdue_sweep"

	sendEmailMaxRetry    = 5
	overdueSweepMaxRetry = 3
)

// NewSendEmailTask constructs an Asynq task carrying msg.
func NewSendEmailTask(msg mail.Message) (*asynq.Task, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(sendEmailMaxRetry), asynq.Queue(QueueDefault)), nil
}

// NewOverdueSweepTask constructs the overdue sweep task.
func NewOverdueSweepTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueSweep, nil, asynq.MaxRetry(overdueSweepMaxRetry), asynq.Queue(QueueDefault))
}
