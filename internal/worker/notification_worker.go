package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"roombook/internal/domain"
	"roombook/internal/events"
	"roombook/internal/metrics"
	"roombook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const taskRetry = "retry"

// TaskStore persists the notification queue.
type TaskStore interface {
	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// NotificationWorker delivers booking lifecycle notifications. Every task is
// persisted first, then handed over through Redis or an in-memory queue.
// Retries and anything the fast paths drop are picked up by polling the store.
type NotificationWorker struct {
	store         TaskStore
	notifier      domain.Notifier
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotificationTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	sendTimeout   time.Duration
	logger        zerolog.Logger
}

func NewNotificationWorker(store TaskStore, notifier domain.Notifier, redisClient *redis.Client,
	retry RetryPolicy, pollInterval time.Duration, logger *zerolog.Logger) *NotificationWorker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "notification_worker").Logger()
	}

	return &NotificationWorker{
		store:         store,
		notifier:      notifier,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.NotificationTask, models.WorkerQueueSize),
		redisQueueKey: "notifications:queue",
		deadLetterKey: "notifications:deadletter",
		pollInterval:  pollInterval,
		batchSize:     20,
		sendTimeout:   15 * time.Second,
		logger:        l,
	}
}

// HandleEvent is an events.EventHandler that queues a lifecycle event.
func (w *NotificationWorker) HandleEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode event %s: %w", event.ID, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.EnqueueNotification(ctx, event.Type, payload.BookingID, event.Payload)
}

// EnqueueNotification persists the task and schedules it via redis or the in-memory queue.
func (w *NotificationWorker) EnqueueNotification(ctx context.Context, eventType string, bookingID int64, payload []byte) error {
	if eventType == "" {
		return errors.New("event type is required")
	}
	if bookingID == 0 {
		return errors.New("booking id is required")
	}

	task := models.NotificationTask{
		EventType: eventType,
		BookingID: bookingID,
		Payload:   string(payload),
		Status:    models.TaskPending,
	}
	if err := w.store.CreateNotificationTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notification task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notification worker started")
	defer w.logger.Info().Msg("notification worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingNotificationTasks(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("fetch pending notifications")
			}
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}
		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *NotificationWorker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *NotificationWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP failed")
		}
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.NotificationTask{}, false
	}
	return task, true
}

func (w *NotificationWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	err := w.notifier.Notify(sendCtx, task)
	cancel()
	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification("delivered")
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark notification completed")
	}
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncNotification("retry")
	nextTime := w.retryPolicy.RetryAt(time.Now(), attempt)
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("notification delivery failed")
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, taskRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark notification retry")
	}
}

func (w *NotificationWorker) failTask(ctx context.Context, task *models.NotificationTask, cause error) {
	metrics.IncNotification("failed")
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("event", task.EventType).Msg("notification moved to dead letter")
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark notification failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *NotificationWorker) pushRedis(ctx context.Context, task models.NotificationTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotificationWorker) pushDeadLetter(ctx context.Context, task *models.NotificationTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
	}
}

var _ domain.NotificationQueue = (*NotificationWorker)(nil)
