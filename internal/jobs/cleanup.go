package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/config"
	"github.com/aithera/therapy-server-go/internal/repository"
)

const orphanBatchSize = 50

type enqueuer interface {
	Enqueue(ctx context.Context, kind Kind, payload any) error
}

// CleanupJob periodically purges expired refresh tokens and re-enqueues
// plan materialization for assessments that never got their sessions.
type CleanupJob struct {
	refreshTokenRepo repository.RefreshTokenRepository
	gad7Repo         repository.GAD7Repository
	enqueuer         enqueuer
	interval         time.Duration
	now              func() time.Time
	done             chan struct{}
}

func NewCleanupJob(
	refreshTokenRepo repository.RefreshTokenRepository,
	gad7Repo repository.GAD7Repository,
	enqueuer enqueuer,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		refreshTokenRepo: refreshTokenRepo,
		gad7Repo:         gad7Repo,
		enqueuer:         enqueuer,
		interval:         interval,
		now:              time.Now,
		done:             make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "refresh tokens", j.refreshTokenRepo.DeleteExpired)
	if j.gad7Repo != nil && j.enqueuer != nil {
		j.runCleanup(ctx, "orphan plans", j.requeueOrphanPlans)
	}
}

func (j *CleanupJob) requeueOrphanPlans(ctx context.Context) (int64, error) {
	results, err := j.gad7Repo.FindWithoutSessions(ctx, j.now().Add(-config.OrphanPlanGrace), orphanBatchSize)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, result := range results {
		if err := j.enqueuer.Enqueue(ctx, KindMaterializePlan, MaterializePlanPayload{GAD7ResultID: result.ID}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
