package explanation

import (
	"strings"
	"time"
)

// DefaultLanguage is used when no analysis context is available.
const DefaultLanguage = "programming"

// Key addresses one cached explanation. A nil Framework is its own key value,
// distinct from every named framework.
type Key struct {
	Topic     string
	Language  string
	Framework *string
}

// NewKey builds a normalized key. Blank frameworks become nil and a blank
// language becomes DefaultLanguage.
func NewKey(topic, language string, framework *string) Key {
	k := Key{Topic: strings.TrimSpace(topic), Language: strings.TrimSpace(language)}
	if k.Language == "" {
		k.Language = DefaultLanguage
	}
	if framework != nil {
		if fw := strings.TrimSpace(*framework); fw != "" {
			k.Framework = &fw
		}
	}
	return k
}

// FrameworkColumn is the stored form of Framework; nil is stored as "".
func (k Key) FrameworkColumn() string {
	if k.Framework == nil {
		return ""
	}
	return *k.Framework
}

// FrameworkFromColumn reverses FrameworkColumn.
func FrameworkFromColumn(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Equal compares keys by value.
func (k Key) Equal(o Key) bool {
	return k.Topic == o.Topic && k.Language == o.Language && k.FrameworkColumn() == o.FrameworkColumn()
}

// Entry is a cached explanation.
type Entry struct {
	Key         Key
	Explanation string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
