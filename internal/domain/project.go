package domain

import "time"

type Project struct {
	ID            string     `db:"id" json:"id"`
	Title         string     `db:"title" json:"title"`
	Slug          string     `db:"slug" json:"slug"`
	Excerpt       string     `db:"excerpt" json:"excerpt"`
	Status        Status     `db:"status" json:"status"`
	Location      string     `db:"location" json:"location"`
	CoverImage    string     `db:"cover_image" json:"cover_image"`
	Beneficiaries int        `db:"beneficiaries" json:"beneficiaries"`
	StartDate     *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate       *time.Time `db:"end_date" json:"end_date,omitempty"`
	Goals         StringList `db:"goals" json:"goals"`
	Content       Document   `db:"content" json:"content"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ProjectInput carries the writable fields of a project. Updates replace
// every field, including the whole content document.
type ProjectInput struct {
	Title         string     `json:"title" validate:"required,max=200"`
	Slug          string     `json:"slug" validate:"omitempty,max=200"`
	Excerpt       string     `json:"excerpt" validate:"max=500"`
	Status        Status     `json:"status" validate:"omitempty,oneof=draft published archived"`
	Location      string     `json:"location" validate:"max=200"`
	CoverImage    string     `json:"cover_image" validate:"omitempty,url"`
	Beneficiaries int        `json:"beneficiaries" validate:"gte=0"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	Goals         []string   `json:"goals" validate:"dive,required"`
	Content       Document   `json:"content"`
}

// Values returns the column values written for the input.
func (in ProjectInput) Values() map[string]any {
	goals := StringList(in.Goals)
	if goals == nil {
		goals = StringList{}
	}
	content := in.Content
	if content == nil {
		content = Document{}
	}
	return map[string]any{
		"title":         in.Title,
		"slug":          in.Slug,
		"excerpt":       in.Excerpt,
		"status":        in.Status,
		"location":      in.Location,
		"cover_image":   in.CoverImage,
		"beneficiaries": in.Beneficiaries,
		"start_date":    in.StartDate,
		"end_date":      in.EndDate,
		"goals":         goals,
		"content":       content,
	}
}

// ProjectImage is one picture of a project gallery.
type ProjectImage struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	URL       string    `db:"url" json:"url"`
	ObjectKey string    `db:"object_key" json:"object_key"`
	Caption   string    `db:"caption" json:"caption"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
