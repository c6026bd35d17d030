package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/kiranahq/kirana-backend/pkg/logger"
)

const (
	defaultPollInterval = 5 * time.Second
	maxBackoff          = time.Minute
	jitterWindow        = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type pinger interface {
	Ping(context.Context) error
}

type batchProcessor interface {
	ProcessBatch(ctx context.Context) (published, failed int, err error)
}

// ServiceParams groups dependencies for the publisher drain loop.
type ServiceParams struct {
	Logger       *logger.Logger
	DB           pinger
	Publisher    batchProcessor
	PollInterval time.Duration
}

// Service polls the outbox and hands staged notifications to the publisher.
// Batch errors back off exponentially; an empty poll sleeps one interval.
type Service struct {
	logg         *logger.Logger
	db           pinger
	publisher    batchProcessor
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		publisher:    params.Publisher,
		pollInterval: interval,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "notification publisher context canceled")
			return ctx.Err()
		default:
		}

		published, failed, err := s.publisher.ProcessBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "notification batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = s.pollInterval

		// Drain immediately while there is work.
		if published > 0 || failed > 0 {
			continue
		}

		if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, floor time.Duration) time.Duration {
	next := current * 2
	if next < floor {
		next = floor
	}
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
