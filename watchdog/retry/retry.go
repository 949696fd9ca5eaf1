package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/evaafi/oracle-watchdog/watchdog/log"
)

// ErrExhausted is matched by the error Do returns once every attempt failed.
var ErrExhausted = errors.New("retry budget exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the wall clock SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryConfig 재시도 설정
type RetryConfig struct {
	MaxAttempts int           // 최대 시도 횟수
	BaseDelay   time.Duration // 기본 딜레이
	MaxDelay    time.Duration // 최대 딜레이
	Multiplier  float64       // 백오프 승수
	Sleep       SleepFunc     // nil이면 Sleep 사용
}

// DefaultRetryConfig 기본 재시도 설정
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// FixedRetryConfig waits the same delay between every attempt.
func FixedRetryConfig(attempts int, delay time.Duration) *RetryConfig {
	return &RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   delay,
		MaxDelay:    delay,
		Multiplier:  1.0,
	}
}

// RetryableFunc receives the 1-based attempt number.
type RetryableFunc func(attempt int) error

// IsRetryable 재시도 가능한 에러인지 판단하는 함수 타입
type IsRetryable func(error) bool

// AlwaysRetryable treats every failure as transient.
func AlwaysRetryable(err error) bool {
	return err != nil
}

// Do 재시도 로직 실행
func Do(ctx context.Context, config *RetryConfig, fn RetryableFunc, isRetryable IsRetryable) error {
	if config.MaxAttempts < 1 {
		return fmt.Errorf("invalid retry config: max attempts %d", config.MaxAttempts)
	}

	sleep := config.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	log.Debugf("retry.Do start, max attempts: %d", config.MaxAttempts)

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			log.Debugf("retry.Do succeeded on attempt %d", attempt)
			return nil
		}

		lastErr = err
		log.Debugf("retry.Do attempt %d/%d failed: %v", attempt, config.MaxAttempts, err)

		// 마지막 시도라면 재시도하지 않음
		if attempt == config.MaxAttempts {
			break
		}

		if !isRetryable(err) {
			return err
		}

		delay := calculateDelay(config, attempt)
		log.Debugf("retry.Do waiting %v before next attempt", delay)

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, config.MaxAttempts, lastErr)
}

// calculateDelay 백오프 딜레이 계산
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	multiplier := config.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(config.BaseDelay) * math.Pow(multiplier, float64(attempt-1))

	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}
