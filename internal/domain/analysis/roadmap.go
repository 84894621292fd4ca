package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRoadmap means the provider reply could not be used as a roadmap.
var ErrMalformedRoadmap = errors.New("malformed roadmap")

const (
	defaultTitle    = "Code Analysis"
	defaultLanguage = "Unknown"
)

// Roadmap is the typed form of the provider's JSON reply.
type Roadmap struct {
	Title        string  `json:"title"`
	Language     string  `json:"language"`
	Framework    *string `json:"framework"`
	LearningPath string  `json:"learningPath"`
}

// ParseRoadmap decodes and validates a provider reply. learningPath is required;
// title and language fall back to defaults.
func ParseRoadmap(raw string) (Roadmap, error) {
	body := stripFence(raw)
	if body == "" {
		return Roadmap{}, fmt.Errorf("%w: empty reply", ErrMalformedRoadmap)
	}

	var doc struct {
		Title        *string         `json:"title"`
		Language     *string         `json:"language"`
		Framework    json.RawMessage `json:"framework"`
		LearningPath json.RawMessage `json:"learningPath"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Roadmap{}, fmt.Errorf("%w: %v", ErrMalformedRoadmap, err)
	}

	var path string
	if len(doc.LearningPath) == 0 || json.Unmarshal(doc.LearningPath, &path) != nil {
		return Roadmap{}, fmt.Errorf("%w: learningPath missing or not a string", ErrMalformedRoadmap)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Roadmap{}, fmt.Errorf("%w: learningPath is empty", ErrMalformedRoadmap)
	}

	r := Roadmap{Title: defaultTitle, Language: defaultLanguage, LearningPath: path}
	if doc.Title != nil && strings.TrimSpace(*doc.Title) != "" {
		r.Title = strings.TrimSpace(*doc.Title)
	}
	if doc.Language != nil && strings.TrimSpace(*doc.Language) != "" {
		r.Language = strings.TrimSpace(*doc.Language)
	}
	if len(doc.Framework) > 0 {
		var fw string
		if json.Unmarshal(doc.Framework, &fw) == nil {
			r.Framework = NormalizeFramework(&fw)
		}
	}
	return r, nil
}

// stripFence removes a ```json fence some models wrap around JSON mode output.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Level is one difficulty tier of a learning path.
type Level struct {
	Name   string   `json:"name"`
	Topics []string `json:"topics"`
}

// ParseLearningPath splits roadmap text into levels. Lines starting with
// "level" open a new level; "-", "•" and "*" lines are topics. Topics seen
// before any level header are grouped under "Foundations".
func ParseLearningPath(text string) []Level {
	var levels []Level
	var cur *Level
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(strings.ToLower(line), "level"):
			if cur != nil {
				levels = append(levels, *cur)
			}
			cur = &Level{Name: line, Topics: []string{}}
		case strings.HasPrefix(line, "-"), strings.HasPrefix(line, "•"), strings.HasPrefix(line, "*"):
			if cur == nil {
				cur = &Level{Name: "Foundations", Topics: []string{}}
			}
			topic := strings.TrimLeft(line, "-•* \t")
			if topic != "" {
				cur.Topics = append(cur.Topics, topic)
			}
		}
	}
	if cur != nil {
		levels = append(levels, *cur)
	}
	return levels
}
