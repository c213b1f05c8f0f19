// Package retry повторяет неудачные операции с ограниченным числом попыток и задержкой.
package retry

import (
	"context"
	"time"
)

// Strategy описывает политику повторов.
// MaxRetries — число повторов сверх первой попытки: операция выполняется
// не более MaxRetries+1 раз; отрицательное значение трактуется как 0.
// Delay — задержка перед первым повтором. При Exponential задержка
// удваивается перед каждым следующим повтором.
type Strategy struct {
	MaxRetries  int
	Delay       time.Duration
	Exponential bool
}

// retries возвращает число повторов, отсекая отрицательные значения:
// первая попытка выполняется всегда.
func (s Strategy) retries() int {
	if s.MaxRetries < 0 {
		return 0
	}
	return s.MaxRetries
}

// Do выполняет fn, повторяя при ошибке согласно стратегии.
// Возвращает последнюю ошибку без обертывания, чтобы вызывающая сторона
// могла классифицировать исходный сбой.
func Do(fn func() error, strat Strategy) error {
	var err error
	delay := strat.Delay
	retries := strat.retries()
	for attempt := 0; attempt <= retries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == retries {
			break
		}
		time.Sleep(delay)
		if strat.Exponential {
			delay *= 2
		}
	}
	return err
}

// DoContext выполняет fn с повторами, прерываясь при отмене контекста.
// Если контекст отменён во время ожидания, возвращается ctx.Err().
func DoContext(ctx context.Context, strat Strategy, fn func() error) error {
	var err error
	delay := strat.Delay
	retries := strat.retries()
	for attempt := 0; attempt <= retries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == retries {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		if strat.Exponential {
			delay *= 2
		}
	}
	return err
}
