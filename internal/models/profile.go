package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SkillLevel is one enumerated tier of playing ability.
type SkillLevel string

const (
	LevelBeginner     SkillLevel = "Beginner"
	LevelNovice       SkillLevel = "Novice"
	LevelIntermediate SkillLevel = "Intermediate"
	LevelAdvanced     SkillLevel = "Advanced"
	LevelProfessional SkillLevel = "Professional"
	LevelPro          SkillLevel = "Pro"
	LevelExpert       SkillLevel = "Expert"
)

var skillLevels = []SkillLevel{
	LevelBeginner, LevelNovice, LevelIntermediate, LevelAdvanced,
	LevelProfessional, LevelPro, LevelExpert,
}

// SkillLevels returns every known tier, lowest first.
func SkillLevels() []SkillLevel {
	out := make([]SkillLevel, len(skillLevels))
	copy(out, skillLevels)
	return out
}

// Valid reports whether l is one of the known tiers.
func (l SkillLevel) Valid() bool {
	for _, known := range skillLevels {
		if l == known {
			return true
		}
	}
	return false
}

// Weekdays in canonical form, Monday first.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// CanonicalDay maps "mon", "Mon", "monday" and friends to "Monday".
// The second result is false for anything that is not a weekday.
func CanonicalDay(day string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(day))
	if len(d) < 3 {
		return "", false
	}
	for _, w := range Weekdays {
		lw := strings.ToLower(w)
		if d == lw || d == lw[:3] {
			return w, true
		}
	}
	return "", false
}

// NormalizeDays canonicalises days, drops unknown names and duplicates,
// and keeps the first-seen order.
func NormalizeDays(days []string) []string {
	seen := make(map[string]struct{}, len(days))
	out := make([]string, 0, len(days))
	for _, raw := range days {
		d, ok := CanonicalDay(raw)
		if !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// Profile is a user's public matching profile. It is created at registration,
// mutated only by its owner and never deleted.
type Profile struct {
	// ID is the stable identity issued by the identity provider.
	ID     string `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"type:text;not null" json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`

	Level          SkillLevel     `gorm:"type:text;not null;index" json:"level"`
	AcceptedLevels pq.StringArray `gorm:"type:text[]" json:"accepted_levels"`
	AvailableDays  pq.StringArray `gorm:"type:text[]" json:"available_days"`

	AvatarURL *string `json:"avatar_url,omitempty"`

	// TelegramChatID enables match notifications when non-zero.
	TelegramChatID int64  `gorm:"index" json:"-"`
	Language       string `gorm:"type:text;default:'en'" json:"language"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the identity is not set yet.
func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

// Accepts reports whether level is among the profile's accepted opponent levels.
func (p *Profile) Accepts(level SkillLevel) bool {
	for _, l := range p.AcceptedLevels {
		if SkillLevel(l) == level {
			return true
		}
	}
	return false
}

// Normalize trims the free-text fields and canonicalises the availability set.
func (p *Profile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Gender = strings.TrimSpace(p.Gender)
	p.AvailableDays = pq.StringArray(NormalizeDays(p.AvailableDays))

	seen := make(map[string]struct{}, len(p.AcceptedLevels))
	levels := make(pq.StringArray, 0, len(p.AcceptedLevels))
	for _, l := range p.AcceptedLevels {
		l = strings.TrimSpace(l)
		if _, dup := seen[l]; dup || l == "" {
			continue
		}
		seen[l] = struct{}{}
		levels = append(levels, l)
	}
	p.AcceptedLevels = levels
	if p.Language == "" {
		p.Language = "en"
	}
}
