package queue

import (
	"github.com/promoloop/publish-engine/internal/engine"
)

type Queue struct {
	e *engine.Engine
}

func NewQueue(e *engine.Engine) *Queue {
	return &Queue{e: e}
}

const TaskTypePublishBatch = "publish:batch"

type PublishBatchPayload struct {
	Reason string `json:"reason"`
}
