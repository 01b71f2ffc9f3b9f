package service

import (
	"context"
	"fmt"

	icebreakerRepo "chimu.app/backend/internal/modules/icebreaker/repository"
	searchService "chimu.app/backend/internal/modules/search/service"
	"github.com/sirupsen/logrus"
)

const CatalogSyncJobName = "icebreaker_catalog_sync"

const syncBatchSize = 500

// CatalogSyncJob pushes the whole icebreaker catalog into the search index.
type CatalogSyncJob struct {
	repo     icebreakerRepo.IcebreakerRepository
	index    searchService.CatalogIndex
	schedule string
}

func NewCatalogSyncJob(repo icebreakerRepo.IcebreakerRepository, index searchService.CatalogIndex, schedule string) *CatalogSyncJob {
	return &CatalogSyncJob{repo: repo, index: index, schedule: schedule}
}

func (j *CatalogSyncJob) Name() string     { return CatalogSyncJobName }
func (j *CatalogSyncJob) Schedule() string { return j.schedule }

func (j *CatalogSyncJob) Run(ctx context.Context) error {
	questions, err := j.repo.AllQuestions(ctx)
	if err != nil {
		return fmt.Errorf("load icebreaker catalog: %w", err)
	}

	for start := 0; start < len(questions); start += syncBatchSize {
		end := min(start+syncBatchSize, len(questions))
		if err := j.index.IndexQuestions(ctx, questions[start:end]...); err != nil {
			return err
		}
	}

	logrus.WithField("questions", len(questions)).Info("icebreaker catalog synced")
	return nil
}
