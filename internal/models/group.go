package models

import "time"

// Language codes supported by localized group texts.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
	LangUrdu    = "ur"
)

// LocalizedText holds one string per supported language.
type LocalizedText struct {
	EN string `json:"en" yaml:"en"`
	AR string `json:"ar" yaml:"ar"`
	UR string `json:"ur" yaml:"ur"`
}

// In returns the text for lang, falling back to English.
func (t LocalizedText) In(lang string) string {
	switch lang {
	case LangArabic:
		if t.AR != "" {
			return t.AR
		}
	case LangUrdu:
		if t.UR != "" {
			return t.UR
		}
	}
	return t.EN
}

// Group represents a chat channel.
type Group struct {
	ID          string        `json:"id" yaml:"id"`
	Name        LocalizedText `json:"name" yaml:"name"`
	Description LocalizedText `json:"description" yaml:"description"`
	Icon        string        `json:"icon" yaml:"icon"`
	Color       string        `json:"color" yaml:"color"`
	MemberCount int           `json:"member_count" yaml:"member_count"`
	CreatedBy   string        `json:"created_by" yaml:"created_by"`
	CreatedAt   time.Time     `json:"created_at" yaml:"created_at"`
	IsDefault   bool          `json:"is_default" yaml:"is_default"`
}

// GroupRow is the flat database shape of a Group.
type GroupRow struct {
	ID            string    `db:"id"`
	NameEN        string    `db:"name_en"`
	NameAR        string    `db:"name_ar"`
	NameUR        string    `db:"name_ur"`
	DescriptionEN string    `db:"description_en"`
	DescriptionAR string    `db:"description_ar"`
	DescriptionUR string    `db:"description_ur"`
	Icon          string    `db:"icon"`
	Color         string    `db:"color"`
	MemberCount   int       `db:"member_count"`
	CreatedBy     string    `db:"created_by"`
	CreatedAt     time.Time `db:"created_at"`
	IsDefault     bool      `db:"is_default"`
}

// Group converts the row into the API model.
func (r GroupRow) Group() Group {
	return Group{
		ID:          r.ID,
		Name:        LocalizedText{EN: r.NameEN, AR: r.NameAR, UR: r.NameUR},
		Description: LocalizedText{EN: r.DescriptionEN, AR: r.DescriptionAR, UR: r.DescriptionUR},
		Icon:        r.Icon,
		Color:       r.Color,
		MemberCount: r.MemberCount,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		IsDefault:   r.IsDefault,
	}
}
