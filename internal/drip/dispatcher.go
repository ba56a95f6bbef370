/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package drip

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/metrics"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MessageSender delivers a rendered message on its channel.
type MessageSender interface {
	Send(ctx context.Context, msg messaging.Message) (messaging.Result, error)
}

// TemplateDataSource supplies the template fields for a participant.
type TemplateDataSource interface {
	TemplateData(ctx context.Context, p models.Participant) (messaging.TemplateData, error)
}

// StaleChecker reports messages that no longer apply and should be skipped.
type StaleChecker interface {
	Stale(ctx context.Context, msg models.ScheduledMessage) (bool, error)
}

// DispatcherConfig contains configuration for Dispatcher
type DispatcherConfig struct {
	Messages        store.MessageStore
	Funnel          store.FunnelStore
	Sender          MessageSender
	Data            TemplateDataSource
	StaleCheckers   []StaleChecker
	Window          SendWindow
	AdminEmail      string
	PollingInterval time.Duration
	CleanupInterval time.Duration
	BatchSize       int
	Concurrency     int
}

// Dispatcher polls for due scheduled messages and sends them
type Dispatcher struct {
	messages      store.MessageStore
	funnel        store.FunnelStore
	sender        MessageSender
	data          TemplateDataSource
	staleCheckers []StaleChecker
	window        SendWindow
	adminEmail    string

	// State management for processed messages
	processedIds    map[string]time.Time
	mutex           sync.RWMutex
	pollingInterval time.Duration
	cleanupInterval time.Duration
	batchSize       int
	concurrency     int
	failures        atomic.Int64
	now             func() time.Time

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewDispatcher creates a new drip dispatcher
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 15 * time.Minute
	}
	return &Dispatcher{
		messages:        cfg.Messages,
		funnel:          cfg.Funnel,
		sender:          cfg.Sender,
		data:            cfg.Data,
		staleCheckers:   cfg.StaleCheckers,
		window:          cfg.Window,
		adminEmail:      cfg.AdminEmail,
		processedIds:    make(map[string]time.Time),
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cfg.CleanupInterval,
		batchSize:       cfg.BatchSize,
		concurrency:     cfg.Concurrency,
		now:             time.Now,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start begins the polling process
func (d *Dispatcher) Start(ctx context.Context) {
	go d.pollLoop(ctx)
	go d.cleanupLoop(ctx)

	zap.L().Info("Drip dispatcher started",
		zap.Duration("polling_interval", d.pollingInterval),
		zap.Int("batch_size", d.batchSize),
		zap.Int("concurrency", d.concurrency))
}

// Stop gracefully stops the dispatcher and waits for the poll loop to exit
func (d *Dispatcher) Stop() {
	zap.L().Info("Stopping drip dispatcher")
	d.stopOnce.Do(func() { close(d.stopChan) })
	<-d.doneChan
	zap.L().Info("Drip dispatcher stopped")
}

// Failures returns the number of failed sends since start.
func (d *Dispatcher) Failures() int64 {
	return d.failures.Load()
}

// pollLoop runs the main polling loop
func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer close(d.doneChan)

	ticker := time.NewTicker(d.pollingInterval)
	defer ticker.Stop()

	d.poll(ctx)

	for {
		select {
		case <-ticker.C:
			d.poll(ctx)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) {
	n, err := d.RunOnce(ctx)
	if err != nil {
		zap.L().Error("Dispatcher batch failed", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("Dispatcher batch complete", zap.Int("messages", n))
	}
}

// RunOnce dispatches one batch of due messages and returns how many were handled.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordBatch(time.Since(start)) }()

	due, err := d.messages.DueMessages(ctx, d.now(), d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch due messages: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	var handled atomic.Int64
	for _, msg := range due {
		if d.isProcessed(msg.Id) {
			continue
		}
		g.Go(func() error {
			if err := d.process(gctx, msg); err != nil {
				zap.L().Error("Failed to process scheduled message",
					zap.String("message_id", msg.Id),
					zap.String("participant_id", msg.ParticipantId),
					zap.Error(err))
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return nil
			}
			handled.Add(1)
			return nil
		})
	}

	err = g.Wait()
	return int(handled.Load()), err
}

// isProcessed checks if this message was already handled by this process
func (d *Dispatcher) isProcessed(id string) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	_, exists := d.processedIds[id]
	return exists
}

// markProcessed marks a message as handled
func (d *Dispatcher) markProcessed(id string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.processedIds[id] = time.Now()
}

// cleanupLoop periodically cleans old processed message ids
func (d *Dispatcher) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.cleanupProcessed()
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupProcessed removes entries older than one cleanup interval
func (d *Dispatcher) cleanupProcessed() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	cutoff := time.Now().Add(-d.cleanupInterval)
	cleaned := 0

	for id, processedTime := range d.processedIds {
		if processedTime.Before(cutoff) {
			delete(d.processedIds, id)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up processed message ids",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(d.processedIds)))
	}
}
