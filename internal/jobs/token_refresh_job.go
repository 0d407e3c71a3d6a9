package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/promoloop/publish-engine/internal/credential"
	"github.com/promoloop/publish-engine/internal/models"
	"github.com/promoloop/publish-engine/internal/repository"
)

// TokenRefreshJob proactively rotates tokens expiring soon so dispatch
// rarely has to refresh inline.
type TokenRefreshJob struct {
	cr repository.ConnectionRepository
	cm credential.Manager
}

func NewTokenRefreshJob(cr repository.ConnectionRepository, cm credential.Manager) *TokenRefreshJob {
	return &TokenRefreshJob{cr: cr, cm: cm}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	connections, err := j.cr.ListExpiring(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, conn := range connections {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(conn *models.Connection) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.cm.Refresh(ctx, conn); err != nil {
				slog.Info("unable to refresh connection", "platform", conn.Platform, "connection_id", conn.ID)
			}
		}(conn)
	}

	wg.Wait()
}
