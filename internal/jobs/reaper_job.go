package job

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/promoloop/publish-engine/internal/repository"
)

// stuckAfter is how long a post may sit in publishing before it is assumed
// abandoned by a dead run.
const stuckAfter = 15 * time.Minute

// ReaperJob returns posts stranded in the in-flight state to the scheduled
// pool so the next tick can pick them up again.
type ReaperJob struct {
	pr repository.PostRepository
}

func NewReaperJob(pr repository.PostRepository) *ReaperJob {
	return &ReaperJob{pr: pr}
}

func (j *ReaperJob) ResetStuckPosts() {
	ctx := context.Background()

	reset, err := j.pr.ResetStuck(ctx, time.Now().UTC().Add(-stuckAfter))
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if reset > 0 {
		log.Printf("Reset %d stuck posts back to scheduled", reset)
	}
}
