package crawler

import (
	"context"
	"log"
	"time"

	"github.com/tranquilae/Tranquilae-sub003/deduper"
	"github.com/tranquilae/Tranquilae-sub003/models"
)

// IngestResult is returned by an ingest run.
type IngestResult struct {
	Pages int `json:"pages"`
	Items int `json:"items"`
	Saved int `json:"saved"`
}

// IngestService runs a crawl and upserts the discovered (name, video URL)
// pairs into the exercise media store. Persistence is best effort: one bad
// row must not abort the batch.
type IngestService struct {
	crawler *Crawler
	repo    models.MediaRepository
	logger  *log.Logger
	source  string
}

func NewIngestService(crawler *Crawler, repo models.MediaRepository, logger *log.Logger) *IngestService {
	if logger == nil {
		logger = log.Default()
	}

	return &IngestService{
		crawler: crawler,
		repo:    repo,
		logger:  logger,
		source:  "crawler",
	}
}

// Run crawls the seeds and persists deduplicated media items.
func (s *IngestService) Run(ctx context.Context, seeds []string, opts Options) (*IngestResult, error) {
	report, err := s.crawler.Run(ctx, seeds, opts)
	if err != nil {
		return nil, err
	}

	dedup := deduper.New()

	type item struct {
		name     string
		videoURL string
	}

	var items []item

	// The canonical video URL is the dedup key: the same video reached via
	// watch and embed forms on different pages yields one item, with the
	// first page's derived name winning.
	for _, page := range report.Pages {
		for _, videoURL := range page.Videos {
			if !dedup.AddIfNotExists(ctx, videoURL) {
				continue
			}

			items = append(items, item{name: page.Name, videoURL: videoURL})
		}
	}

	result := &IngestResult{
		Pages: report.PagesVisited,
		Items: len(items),
	}

	now := time.Now().UTC()

	for _, it := range items {
		err := s.repo.Upsert(ctx, &models.ExerciseMediaOverride{
			Name:      it.name,
			VideoURL:  it.videoURL,
			Source:    s.source,
			UpdatedAt: now,
		})
		if err != nil {
			s.logger.Printf("ingest: failed to save %q: %v", it.name, err)

			continue
		}

		result.Saved++
	}

	return result, nil
}
