package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type ScheduledTask struct {
	cronID cron.EntryID
	cron   *cron.Cron
	cancel chan struct{}
}

func NewScheduledTask(cronSpec string, taskFunc func()) (*ScheduledTask, error) {
	c := cron.New()
	cancel := make(chan struct{})
	task := &ScheduledTask{
		cron:   c,
		cancel: cancel,
	}

	// SkipIfStillRunning: следующий запуск пропускается, пока идёт предыдущий
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		select {
		case <-cancel:
			return
		default:
			taskFunc()
		}
	}))

	id, err := c.AddJob(cronSpec, job)
	if err != nil {
		return nil, err
	}

	task.cronID = id
	c.Start()
	return task, nil
}

// Cancel снимает задачу и ждёт завершения текущего запуска.
func (s *ScheduledTask) Cancel() {
	s.cron.Remove(s.cronID)
	close(s.cancel)
	<-s.cron.Stop().Done()
}

// PumpProcessor продвигает все активные пампы.
type PumpProcessor interface {
	ProcessAllActivePumps(ctx context.Context, now time.Time) (int, error)
}

// NewPumpTask периодически вызывает ProcessAllActivePumps. Это лишь ещё один
// внешний триггер: начисление идемпотентно, чтение портфеля тоже его вызывает.
func NewPumpTask(log *slog.Logger, cronSpec string, processor PumpProcessor, timeout time.Duration) (*ScheduledTask, error) {
	return NewScheduledTask(cronSpec, pumpJob(log, processor, timeout))
}

func pumpJob(log *slog.Logger, processor PumpProcessor, timeout time.Duration) func() {
	const op = "scheduler.pumpJob"
	logger := log.With(slog.String("op", op))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		ticked, err := processor.ProcessAllActivePumps(ctx, time.Now())
		if err != nil {
			logger.Error("failed to process pumps", slog.Any("error", err))
			return
		}
		if ticked > 0 {
			logger.Info("pumps processed", slog.Int("ticked", ticked))
		}
	}
}
