package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueueBatch schedules a background batch tick. The uniqueness window keeps
// a slow run from stacking duplicate ticks behind itself.
func EnqueueBatch(asynqClient *asynq.Client, payload PublishBatchPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishBatch, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.Unique(4*time.Minute))
	if err != nil {
		return err
	}

	log.Printf("Batch tick enqueued: %+v", payload)
	return nil
}
