package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"admissionsbot/internal/domain"
	"admissionsbot/internal/events"
	"admissionsbot/internal/messages"
	"admissionsbot/internal/metrics"
	"admissionsbot/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TaskStore is the persistent side of the outbox.
type TaskStore interface {
	domain.CRMQueueStore
	GetCRMTask(ctx context.Context, id int64) (*models.CRMTask, error)
}

// CRMWorker consumes crm_queue tasks and applies them to the CRM. Tasks are
// written to SQLite first; Redis and the local channel only wake the worker
// early, the database poll is the source of truth.
type CRMWorker struct {
	store         TaskStore
	crm           domain.CRMGateway
	redis         *redis.Client
	sender        domain.Dispatcher
	msgs          *messages.Builder
	retryPolicy   RetryPolicy
	queue         chan models.CRMTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
	now           func() time.Time
}

// NewCRMWorker builds a worker with sane defaults. redisClient and sender
// may be nil.
func NewCRMWorker(
	store TaskStore,
	crm domain.CRMGateway,
	redisClient *redis.Client,
	sender domain.Dispatcher,
	msgs *messages.Builder,
	retry RetryPolicy,
	logger *zerolog.Logger,
) *CRMWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &CRMWorker{
		store:         store,
		crm:           crm,
		redis:         redisClient,
		sender:        sender,
		msgs:          msgs,
		retryPolicy:   retry,
		queue:         make(chan models.CRMTask, models.WorkerQueueSize),
		redisQueueKey: "crm:queue",
		deadLetterKey: "crm:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
		now:           time.Now,
	}
}

// Enqueue persists task to DB and schedules it via redis or in-memory queue.
func (w *CRMWorker) Enqueue(ctx context.Context, taskType string, userID int64, payload interface{}) error {
	switch taskType {
	case models.CRMTaskAddNote, models.CRMTaskUpdateLead, models.CRMTaskCreateTask:
	default:
		return fmt.Errorf("unknown crm task type %q", taskType)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.CRMTask{
		TaskType: taskType,
		UserID:   userID,
		Payload:  string(payloadBytes),
		Status:   models.TaskPending,
	}
	if err := w.store.CreateCRMTask(ctx, &task); err != nil {
		return fmt.Errorf("persist crm task: %w", err)
	}
	metrics.IncOutbox(taskType, "enqueued")

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("crm_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("crm_worker: in-memory queue full, task left to polling")
	}
	return nil
}

// Subscribe turns booking status changes into CRM lead updates.
func (w *CRMWorker) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingStatusChanged, func(e *events.Event) error {
		var p events.BookingEventPayload
		if err := e.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		if p.CRMLeadID == 0 {
			return nil
		}
		ctx := context.Background()
		if err := w.Enqueue(ctx, models.CRMTaskUpdateLead, p.UserID, models.LeadUpdatePayload{
			LeadID:    p.CRMLeadID,
			BookingID: p.BookingID,
			Status:    p.Status,
		}); err != nil {
			return err
		}
		return w.Enqueue(ctx, models.CRMTaskAddNote, p.UserID, models.NotePayload{
			LeadID: p.CRMLeadID,
			Text:   fmt.Sprintf("Tour #%d status changed to %s by %s", p.BookingID, p.Status, p.ChangedBy),
		})
	})
}

// Start launches main loop; stops when ctx is done.
func (w *CRMWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("crm_worker: started")
	defer w.logger.Info().Msg("crm_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingCRMTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("crm_worker: fetch pending")
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

func (w *CRMWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	case task := <-w.queue:
		w.processTask(ctx, &task)
	}
}

func (w *CRMWorker) tryLocalQueue() (models.CRMTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.CRMTask{}, false
	}
}

func (w *CRMWorker) tryRedis(ctx context.Context) (models.CRMTask, bool) {
	if w.redis == nil {
		return models.CRMTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil) {
			return models.CRMTask{}, false
		}
		w.logger.Warn().Err(err).Msg("crm_worker: redis BRPOP error")
		return models.CRMTask{}, false
	}
	if len(res) != 2 {
		return models.CRMTask{}, false
	}
	var task models.CRMTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("crm_worker: decode redis task")
		return models.CRMTask{}, false
	}
	return task, true
}

// processTask runs one task. Wake-ups may carry stale copies, so the stored
// row decides whether the task is still runnable.
func (w *CRMWorker) processTask(ctx context.Context, task *models.CRMTask) {
	if task.ID != 0 {
		current, err := w.store.GetCRMTask(ctx, task.ID)
		if err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("crm_worker: reload task")
			return
		}
		if !runnable(current, w.now()) {
			return
		}
		task = current
	}

	if err := w.handleTask(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncOutbox(task.TaskType, "completed")
	if err := w.store.UpdateCRMTaskStatus(ctx, task.ID, models.TaskCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("crm_worker: mark completed")
	}
}

func runnable(task *models.CRMTask, now time.Time) bool {
	switch task.Status {
	case models.TaskPending:
		return true
	case models.TaskRetry:
		return task.NextRetryAt == nil || !task.NextRetryAt.After(now)
	}
	return false
}

func (w *CRMWorker) handleTask(ctx context.Context, task *models.CRMTask) error {
	if w.crm == nil {
		return fmt.Errorf("%w: crm integration disabled", domain.ErrPermanent)
	}

	switch task.TaskType {
	case models.CRMTaskAddNote:
		var p models.NotePayload
		if err := json.Unmarshal([]byte(task.Payload), &p); err != nil {
			return fmt.Errorf("%w: decode payload: %v", domain.ErrPermanent, err)
		}
		return w.crm.AddNote(ctx, p.LeadID, p.Text)
	case models.CRMTaskUpdateLead:
		var p models.LeadUpdatePayload
		if err := json.Unmarshal([]byte(task.Payload), &p); err != nil {
			return fmt.Errorf("%w: decode payload: %v", domain.ErrPermanent, err)
		}
		if p.LeadID == 0 || p.Status == "" {
			return fmt.Errorf("%w: lead id or status missing", domain.ErrPermanent)
		}
		_, err := w.crm.UpsertLead(ctx, p.LeadID, 0, models.LeadFields{TourStatus: p.Status})
		return err
	case models.CRMTaskCreateTask:
		var p models.TaskPayload
		if err := json.Unmarshal([]byte(task.Payload), &p); err != nil {
			return fmt.Errorf("%w: decode payload: %v", domain.ErrPermanent, err)
		}
		return w.crm.CreateTask(ctx, p.LeadID, p.Text, p.Due)
	default:
		return fmt.Errorf("%w: unknown task type: %s", domain.ErrPermanent, task.TaskType)
	}
}

func (w *CRMWorker) retryOrFail(ctx context.Context, task *models.CRMTask, cause error) {
	attempt := task.RetryCount + 1
	if !w.retryPolicy.ShouldRetry(attempt, cause) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncOutbox(task.TaskType, "retry")
	nextTime := w.now().Add(w.retryPolicy.NextDelay(attempt))
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("crm_worker: task will be retried")
	if err := w.store.UpdateCRMTaskStatus(ctx, task.ID, models.TaskRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("crm_worker: mark retry")
	}
}

func (w *CRMWorker) failTask(ctx context.Context, task *models.CRMTask, cause error) {
	metrics.IncOutbox(task.TaskType, "failed")
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("task_type", task.TaskType).Msg("crm_worker: task failed")
	if err := w.store.UpdateCRMTaskStatus(ctx, task.ID, models.TaskFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("crm_worker: mark failed")
	}
	w.pushDeadLetter(ctx, task)
	w.escalate(ctx, task, cause)
}

func (w *CRMWorker) escalate(ctx context.Context, task *models.CRMTask, cause error) {
	if w.sender == nil || w.msgs == nil {
		return
	}
	notice := w.msgs.EscalationNotice(fmt.Sprintf("CRM %s task #%d failed", task.TaskType, task.ID), task.UserID, cause)
	if notice.ChatID == 0 {
		return
	}
	if err := w.sender.Send(ctx, notice); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("crm_worker: escalation failed")
	}
}

func (w *CRMWorker) pushRedis(ctx context.Context, task models.CRMTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *CRMWorker) pushDeadLetter(ctx context.Context, task *models.CRMTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("crm_worker: encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("crm_worker: deadletter push")
	}
}
