package explanation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/learncode/internal/application"
	"github.com/bryanwahyu/learncode/internal/domain/ai"
	"github.com/bryanwahyu/learncode/internal/domain/analysis"
	domain "github.com/bryanwahyu/learncode/internal/domain/explanation"
)

// MaxCachedTopicLength is the longest topic, in characters, that fits the
// cache key column. Longer topics are still explained but never cached.
const MaxCachedTopicLength = 200

// Source tells where an explanation came from.
type Source string

const (
	SourceCache     Source = "cache"
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// Request asks for one topic. AnalysisID and LevelName are optional.
type Request struct {
	Topic      string
	AnalysisID analysis.ID
	LevelName  string
}

// Resource is an external search link for a topic.
type Resource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Result is the explanation plus the context it was resolved in.
type Result struct {
	Explanation string     `json:"explanation"`
	Source      Source     `json:"source"`
	Language    string     `json:"language"`
	Framework   *string    `json:"framework"`
	Resources   []Resource `json:"resources"`
}

// Service explains roadmap topics, reading through the explanation cache.
type Service struct {
	Analyses analysis.Repository
	Cache    domain.Cache
	AI       ai.Client // nil when no credentials are configured
	Clock    application.Clock
	// TTL > 0 makes older entries count as misses. Zero keeps entries forever.
	TTL time.Duration
}

// Explain never fails except for an empty topic; every other failure degrades
// to defaults or to a fallback text.
func (s *Service) Explain(ctx context.Context, owner analysis.Owner, req Request) (*Result, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", application.ErrInvalidInput)
	}

	language, framework := s.resolveContext(ctx, owner, req.AnalysisID)
	key := domain.NewKey(topic, language, framework)

	res := &Result{
		Language:  key.Language,
		Framework: key.Framework,
		Resources: searchLinks(key),
	}

	cacheable := len([]rune(topic)) <= MaxCachedTopicLength
	if cacheable {
		if text, ok := s.lookup(ctx, key); ok {
			res.Explanation = text
			res.Source = SourceCache
			return res, nil
		}
	} else {
		log.Debug().Int("topic_len", len([]rune(topic))).Msg("topic too long for cache, generating directly")
	}

	text, err := s.generate(ctx, key, strings.TrimSpace(req.LevelName))
	if err != nil {
		log.Warn().Err(err).Str("topic", key.Topic).Str("language", key.Language).Msg("topic explanation fell back")
		res.Explanation = Fallback(key.Topic, key.Language)
		res.Source = SourceFallback
		return res, nil
	}

	if cacheable {
		now := s.Clock.Now()
		entry := &domain.Entry{Key: key, Explanation: text, CreatedAt: now, UpdatedAt: now}
		if err := s.Cache.Upsert(ctx, entry); err != nil {
			// next request for this key simply misses again
			log.Warn().Err(err).Str("topic", key.Topic).Msg("caching explanation failed")
		}
	}

	res.Explanation = text
	res.Source = SourceGenerated
	return res, nil
}

func (s *Service) resolveContext(ctx context.Context, owner analysis.Owner, id analysis.ID) (string, *string) {
	if strings.TrimSpace(string(id)) == "" || s.Analyses == nil {
		return domain.DefaultLanguage, nil
	}
	a, err := s.Analyses.Get(ctx, id, owner)
	if err != nil {
		log.Debug().Err(err).Str("analysis_id", string(id)).Msg("explain context lookup failed, using defaults")
		return domain.DefaultLanguage, nil
	}
	return a.Language, analysis.NormalizeFramework(a.Framework)
}

func (s *Service) lookup(ctx context.Context, key domain.Key) (string, bool) {
	e, err := s.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Str("topic", key.Topic).Msg("explanation cache read failed")
		}
		return "", false
	}
	// a store comparing keys loosely may hand back a neighbouring row
	if !e.Key.Equal(key) {
		return "", false
	}
	if s.TTL > 0 && s.Clock.Now().Sub(e.UpdatedAt) > s.TTL {
		return "", false
	}
	text := strings.TrimSpace(e.Explanation)
	return text, text != ""
}

func (s *Service) generate(ctx context.Context, key domain.Key, levelName string) (string, error) {
	if s.AI == nil {
		return "", ai.ErrMissingCredentials
	}
	text, err := s.AI.ExplainTopic(ctx, ai.TopicPrompt{
		Topic:     key.Topic,
		LevelName: levelName,
		Language:  key.Language,
		Framework: key.Framework,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ai.ErrEmptyCompletion
	}
	return text, nil
}

// Fallback is the text returned when no explanation could be generated.
func Fallback(topic, language string) string {
	return fmt.Sprintf("%s is a key concept in %s. We couldn't generate a detailed explanation right now, "+
		"so try again in a moment or use the search links to explore it.", topic, language)
}

// searchLinks mirrors the topic view's search buttons: topic plus framework when
// known, otherwise topic plus language.
func searchLinks(key domain.Key) []Resource {
	term := key.Topic
	if key.Framework != nil {
		term += " " + *key.Framework
	} else if key.Language != "" {
		term += " " + key.Language
	}
	q := url.QueryEscape(term)
	return []Resource{
		{Name: "google", URL: "https://www.google.com/search?q=" + q},
		{Name: "youtube", URL: "https://www.youtube.com/results?search_query=" + q},
	}
}
