package domain

import "time"

type BlogPost struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Slug        string     `db:"slug" json:"slug"`
	Excerpt     string     `db:"excerpt" json:"excerpt"`
	Author      string     `db:"author" json:"author"`
	CoverImage  string     `db:"cover_image" json:"cover_image"`
	Status      Status     `db:"status" json:"status"`
	Tags        StringList `db:"tags" json:"tags"`
	Views       int        `db:"views" json:"views"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	Content     Document   `db:"content" json:"content"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

type BlogPostInput struct {
	Title      string   `json:"title" validate:"required,max=200"`
	Slug       string   `json:"slug" validate:"omitempty,max=200"`
	Excerpt    string   `json:"excerpt" validate:"max=500"`
	Author     string   `json:"author" validate:"max=120"`
	CoverImage string   `json:"cover_image" validate:"omitempty,url"`
	Status     Status   `json:"status" validate:"omitempty,oneof=draft published archived"`
	Tags       []string `json:"tags" validate:"dive,required,max=50"`
	Content    Document `json:"content"`
}

func (in BlogPostInput) Values() map[string]any {
	tags := StringList(in.Tags)
	if tags == nil {
		tags = StringList{}
	}
	content := in.Content
	if content == nil {
		content = Document{}
	}
	return map[string]any{
		"title":       in.Title,
		"slug":        in.Slug,
		"excerpt":     in.Excerpt,
		"author":      in.Author,
		"cover_image": in.CoverImage,
		"status":      in.Status,
		"tags":        tags,
		"content":     content,
	}
}

// Comment belongs to one blog post and is shown publicly only once
// published.
type Comment struct {
	ID          string    `db:"id" json:"id"`
	BlogID      string    `db:"blog_id" json:"blog_id"`
	AuthorName  string    `db:"author_name" json:"author_name"`
	AuthorEmail string    `db:"author_email" json:"author_email"`
	Body        string    `db:"body" json:"body"`
	IsApproved  bool      `db:"is_approved" json:"is_approved"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type CommentInput struct {
	AuthorName  string `json:"author_name" validate:"required,max=120"`
	AuthorEmail string `json:"author_email" validate:"required,email"`
	Body        string `json:"body" validate:"required,max=5000"`
}
