package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"chimu.app/backend/internal/entity"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
)

const IcebreakerIndex = "icebreaker_questions"

// CatalogIndex mirrors the global icebreaker catalog into Meilisearch.
// Callers treat ErrDisabled as "search the database instead".
type CatalogIndex interface {
	IndexQuestions(ctx context.Context, questions ...entity.IcebreakerQuestion) error
	SearchQuestions(ctx context.Context, query, category string, limit int) ([]uuid.UUID, error)
}

var ErrDisabled = errors.New("search index is not configured")

type meiliCatalogIndex struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

type questionDoc struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Category string `json:"category"`
}

// NewCatalogIndex returns an index backed by client, or a disabled one when client is nil.
func NewCatalogIndex(client meilisearch.ServiceManager) CatalogIndex {
	if client == nil {
		logrus.Warn("meilisearch is not configured, icebreaker search falls back to the database")
		return disabledIndex{}
	}

	s := &meiliCatalogIndex{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndex()
	return s
}

func (s *meiliCatalogIndex) initIndex() {
	filterable := []any{"category"}
	if _, err := s.client.Index(IcebreakerIndex).UpdateFilterableAttributes(&filterable); err != nil {
		logrus.WithError(err).Warn("failed to update icebreaker filterable attributes")
	}

	searchable := []string{"question", "category"}
	if _, err := s.client.Index(IcebreakerIndex).UpdateSearchableAttributes(&searchable); err != nil {
		logrus.WithError(err).Warn("failed to update icebreaker searchable attributes")
	}
}

func (s *meiliCatalogIndex) clean(text string) string {
	cleaned := html.UnescapeString(s.sanitizer.Sanitize(text))
	return strings.Join(strings.Fields(cleaned), " ")
}

func (s *meiliCatalogIndex) IndexQuestions(_ context.Context, questions ...entity.IcebreakerQuestion) error {
	if len(questions) == 0 {
		return nil
	}

	docs := make([]questionDoc, 0, len(questions))
	for _, q := range questions {
		doc := questionDoc{ID: q.ID.String(), Question: s.clean(q.Question)}
		if q.Category != nil {
			doc.Category = s.clean(*q.Category)
		}
		docs = append(docs, doc)
	}

	primaryKey := "id"
	task, err := s.client.Index(IcebreakerIndex).AddDocuments(docs, &primaryKey)
	if err != nil {
		return fmt.Errorf("index icebreaker questions: %w", err)
	}
	logrus.WithFields(logrus.Fields{"count": len(docs), "task_uid": task.TaskUID}).Debug("queued icebreaker indexing")
	return nil
}

func (s *meiliCatalogIndex) SearchQuestions(_ context.Context, query, category string, limit int) ([]uuid.UUID, error) {
	req := &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	}
	if category != "" {
		req.Filter = fmt.Sprintf("category = %q", category)
	}

	resp, err := s.client.Index(IcebreakerIndex).Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("search icebreaker questions: %w", err)
	}

	// hits are re-encoded so the decoding does not depend on the client's hit representation
	raw, err := json.Marshal(resp.Hits)
	if err != nil {
		return nil, fmt.Errorf("decode search hits: %w", err)
	}
	var hits []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, fmt.Errorf("decode search hits: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		if id, err := uuid.Parse(h.ID); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type disabledIndex struct{}

func (disabledIndex) IndexQuestions(context.Context, ...entity.IcebreakerQuestion) error {
	return nil
}

func (disabledIndex) SearchQuestions(context.Context, string, string, int) ([]uuid.UUID, error) {
	return nil, ErrDisabled
}
