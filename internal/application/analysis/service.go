package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/learncode/internal/application"
	domain "github.com/bryanwahyu/learncode/internal/domain/analysis"
	"github.com/bryanwahyu/learncode/internal/domain/ai"
)

// Service implements the analysis use cases.
// Service is safe for concurrent use; it holds no per-request state.
type Service struct {
	Repo    domain.Repository
	AI      ai.Client
	Archive domain.Archive // optional
	Clock   application.Clock
}

// Result is what Analyze hands back. ID is empty when the record could not be stored.
type Result struct {
	ID           domain.ID `json:"id,omitempty"`
	Title        string    `json:"title"`
	Language     string    `json:"language"`
	Framework    *string   `json:"framework"`
	LearningPath string    `json:"learningPath"`
}

// Analyze generates a roadmap for code and stores it for owner.
func (s *Service) Analyze(ctx context.Context, owner domain.Owner, code string) (*Result, error) {
	if owner.UserID == "" {
		return nil, fmt.Errorf("%w: owner is required", application.ErrInvalidInput)
	}
	snippet := domain.TruncateCode(code)
	if snippet == "" {
		return nil, fmt.Errorf("%w: code is required", application.ErrInvalidInput)
	}
	if s.AI == nil {
		return nil, ai.ErrMissingCredentials
	}

	// satu kali panggil AI, tanpa retry
	raw, err := s.AI.GenerateRoadmap(ctx, snippet)
	if err != nil {
		return nil, fmt.Errorf("generating roadmap: %w", err)
	}
	roadmap, err := domain.ParseRoadmap(raw)
	if err != nil {
		return nil, err
	}
	if n := len(domain.ParseLearningPath(roadmap.LearningPath)); n != 3 {
		log.Warn().Int("levels", n).Msg("roadmap does not have three levels")
	}

	res := &Result{
		Title:        roadmap.Title,
		Language:     roadmap.Language,
		Framework:    roadmap.Framework,
		LearningPath: roadmap.LearningPath,
	}

	rec := &domain.Analysis{
		ID:           domain.ID(uuid.New().String()),
		OwnerID:      owner.UserID,
		Code:         snippet,
		Title:        roadmap.Title,
		Language:     roadmap.Language,
		Framework:    roadmap.Framework,
		LearningPath: roadmap.LearningPath,
		Labels:       []string{},
		CreatedAt:    s.Clock.Now(),
	}
	if err := s.Repo.Save(ctx, rec); err != nil {
		// the generated roadmap is still useful without an id
		log.Error().Err(err).Str("owner", owner.UserID).Msg("saving analysis failed")
		return res, nil
	}
	res.ID = rec.ID

	s.archive(ctx, rec, raw)
	return res, nil
}

func (s *Service) archive(ctx context.Context, rec *domain.Analysis, raw string) {
	if s.Archive == nil {
		return
	}
	body, err := json.Marshal(map[string]any{
		"id":         rec.ID,
		"owner_id":   rec.OwnerID,
		"created_at": rec.CreatedAt,
		"code":       rec.Code,
		"reply":      raw,
	})
	if err != nil {
		return
	}
	key := fmt.Sprintf("analyses/%s/%s.json", rec.OwnerID, rec.ID)
	if _, err := s.Archive.Put(ctx, key, body); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("archiving provider reply failed")
	}
}

// Get returns one analysis owned by owner.
func (s *Service) Get(ctx context.Context, owner domain.Owner, id domain.ID) (*domain.Analysis, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.Repo.Get(ctx, id, owner)
}

// List returns summaries of owner's analyses, newest first.
func (s *Service) List(ctx context.Context, owner domain.Owner, f domain.Filter) ([]*domain.Summary, error) {
	list, err := s.Repo.List(ctx, owner, f.Normalize())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Summary{}
	}
	return list, nil
}

// UpdateLabels replaces the label set of an owned analysis.
func (s *Service) UpdateLabels(ctx context.Context, owner domain.Owner, id domain.ID, labels []string) ([]string, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if labels == nil {
		return nil, fmt.Errorf("%w: labels must be an array of strings", application.ErrInvalidInput)
	}
	clean, err := domain.NormalizeLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", application.ErrInvalidInput, err)
	}
	saved, err := s.Repo.UpdateLabels(ctx, id, owner, clean)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		// the caller already holds the new set; a lost write is not surfaced
		log.Warn().Err(err).Str("analysis_id", string(id)).Msg("saving labels failed")
		return clean, nil
	}
	return saved, nil
}

// LearningPath returns the parsed levels of an owned analysis.
func (s *Service) LearningPath(ctx context.Context, owner domain.Owner, id domain.ID) ([]domain.Level, error) {
	a, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return domain.ParseLearningPath(a.LearningPath), nil
}

func validateID(id domain.ID) error {
	v := strings.TrimSpace(string(id))
	if v == "" || v == "undefined" || v == "null" {
		return fmt.Errorf("%w: analysis id is required", application.ErrInvalidInput)
	}
	if _, err := uuid.Parse(v); err != nil {
		return fmt.Errorf("%w: malformed analysis id", application.ErrInvalidInput)
	}
	return nil
}
