package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandlePublishBatchTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	summary, err := q.e.Run(ctx)
	if err != nil {
		return err
	}

	log.Printf("Batch tick %s done: processed=%d published=%d failed=%d",
		summary.RunID, summary.PostsProcessed, summary.PostsPublished, summary.PostsFailed)
	return nil
}
