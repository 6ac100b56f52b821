// Package scheduler запускает выполнения workflow по cron-расписанию.
//
// Это второй (помимо HTTP) источник Trigger: каждый тик — обычное
// выполнение с Source = "cron". Перекрывающиеся тики пропускаются
// (cron.SkipIfStillRunning).
//
// Структура:
//   - scheduler.go — Scheduler (Start, Stop, Tick)
//   - cron.go      — парсинг cron-выражений и вычисление следующего запуска
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Executor: orch,
//	    CronExpr: "*/5 * * * *",
//	    Logger:   logger,
//	})
//	if err := sched.Start(ctx); err != nil {
//	    logger.Error("scheduler start failed", "error", err)
//	}
package scheduler
