// Package taskqueue triggers and consumes background task runs over a
// Watermill publisher/subscriber pair.
package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lupa-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	metaTaskID    = "task_id"
	metaTags      = "tags"
	metaQueuedAt  = "queued_at"
	defaultPrefix = "tasks."
)

type TriggerOptions struct {
	Tags []string
}

// Run is one delivered trigger.
type Run struct {
	ID       string
	TaskID   string
	Tags     []string
	Payload  []byte
	QueuedAt time.Time
}

// Decode unmarshals the run's payload into v.
func (r Run) Decode(v interface{}) error {
	return json.Unmarshal(r.Payload, v)
}

type Handler func(ctx context.Context, run Run) error

// Gate is called before a run is acknowledged. It blocks until the run may
// start and returns the func that frees its slot.
type Gate func(ctx context.Context, run Run) (release func(), err error)

type Queue struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     logger.ILogger
}

func New(publisher message.Publisher, subscriber message.Subscriber, log logger.ILogger) *Queue {
	return &Queue{publisher: publisher, subscriber: subscriber, logger: log}
}

func topic(taskID string) string {
	return defaultPrefix + taskID
}

// Trigger enqueues a run of taskID and returns its run id.
func (q *Queue) Trigger(ctx context.Context, taskID string, payload interface{}, opts TriggerOptions) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(context.WithoutCancel(ctx))
	msg.Metadata.Set(metaTaskID, taskID)
	msg.Metadata.Set(metaTags, strings.Join(opts.Tags, ","))
	msg.Metadata.Set(metaQueuedAt, strconv.FormatInt(time.Now().UnixMilli(), 10))

	if err := q.publisher.Publish(topic(taskID), msg); err != nil {
		return "", fmt.Errorf("failed to trigger %s: %w", taskID, err)
	}
	return msg.UUID, nil
}

// Handle consumes runs of taskID until ctx is done. Each run is acked once
// the gate admits it and then executed on its own goroutine.
func (q *Queue) Handle(ctx context.Context, taskID string, gate Gate, handler Handler) error {
	messages, err := q.subscriber.Subscribe(ctx, topic(taskID))
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			run := toRun(msg)

			release := func() {}
			if gate != nil {
				r, err := gate(ctx, run)
				if err != nil {
					msg.Nack()
					if ctx.Err() != nil {
						return
					}
					continue
				}
				release = r
			}
			msg.Ack()

			go func() {
				defer release()
				q.execute(ctx, run, handler)
			}()
		}
	}()
	return nil
}

func (q *Queue) execute(ctx context.Context, run Run, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("taskqueue", "Task run panicked", map[string]interface{}{
				"task_id": run.TaskID,
				"run_id":  run.ID,
				"panic":   fmt.Sprint(r),
			})
		}
	}()

	if err := handler(ctx, run); err != nil {
		q.logger.Error("taskqueue", "Task run failed", map[string]interface{}{
			"task_id": run.TaskID,
			"run_id":  run.ID,
			"tags":    run.Tags,
			"error":   err.Error(),
		})
	}
}

func toRun(msg *message.Message) Run {
	run := Run{
		ID:      msg.UUID,
		TaskID:  msg.Metadata.Get(metaTaskID),
		Payload: msg.Payload,
	}
	if tags := msg.Metadata.Get(metaTags); tags != "" {
		run.Tags = strings.Split(tags, ",")
	}
	if ms, err := strconv.ParseInt(msg.Metadata.Get(metaQueuedAt), 10, 64); err == nil {
		run.QueuedAt = time.UnixMilli(ms)
	}
	return run
}
