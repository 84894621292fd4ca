package analysis

import (
	"strings"
	"time"
)

// ID identifier type
type ID string

// MaxCodeLength is the number of characters of a snippet that are analyzed and stored.
const MaxCodeLength = 800

// Analysis is a code snippet paired with its generated learning roadmap.
// Everything except Labels is fixed at creation.
type Analysis struct {
	ID           ID        `json:"id"`
	OwnerID      string    `json:"-"`
	Code         string    `json:"code"`
	Title        string    `json:"title"`
	Language     string    `json:"language"`
	Framework    *string   `json:"framework"`
	LearningPath string    `json:"learningPath"`
	Labels       []string  `json:"labels"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary is the list view of an analysis.
type Summary struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	Framework *string   `json:"framework"`
	Labels    []string  `json:"labels"`
	CreatedAt time.Time `json:"createdAt"`
}

// Owner is the identity a record must belong to. Records created before local
// user ids existed were keyed by email, so LegacyID widens the match.
type Owner struct {
	UserID   string
	LegacyID string
}

// IDs returns every owner_id value that counts as a match.
func (o Owner) IDs() []string {
	ids := []string{o.UserID}
	if o.LegacyID != "" && o.LegacyID != o.UserID {
		ids = append(ids, o.LegacyID)
	}
	return ids
}

// Owns reports whether ownerID belongs to o.
func (o Owner) Owns(ownerID string) bool {
	for _, id := range o.IDs() {
		if id != "" && id == ownerID {
			return true
		}
	}
	return false
}

// Filter narrows a listing.
type Filter struct {
	Search   string // case-insensitive title substring
	Label    string
	Page     int
	PageSize int
}

// Normalize fills in paging defaults.
func (f Filter) Normalize() Filter {
	f.Search = strings.TrimSpace(f.Search)
	f.Label = strings.TrimSpace(f.Label)
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f
}

// Offset is the row offset for the current page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// NormalizeFramework maps blank or "null" frameworks to nil.
func NormalizeFramework(fw *string) *string {
	if fw == nil {
		return nil
	}
	v := strings.TrimSpace(*fw)
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
		return nil
	}
	return &v
}

// TruncateCode trims the snippet and keeps at most MaxCodeLength characters.
func TruncateCode(code string) string {
	code = strings.TrimSpace(code)
	r := []rune(code)
	if len(r) > MaxCodeLength {
		return string(r[:MaxCodeLength])
	}
	return code
}
