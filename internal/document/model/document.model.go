package model

import "time"

// Document is a titled piece of content owned by exactly one user. Content
// and Markdown are stored independently; neither is derived from the other.
type Document struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Markdown  string    `json:"markdown"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentPreview is the list-view projection of a Document.
type DocumentPreview struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Markdown  string    `json:"markdown"`
	CreatedAt time.Time `json:"createdAt"`
}

// Preview copies the preview fields of d without transforming them.
func (d Document) Preview() DocumentPreview {
	return DocumentPreview{
		ID:        d.ID,
		Title:     d.Title,
		Markdown:  d.Markdown,
		CreatedAt: d.CreatedAt,
	}
}

type CreateDocRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Markdown string `json:"markdown"`
}

// UpdateDocRequest is a partial update; nil fields are left unchanged.
type UpdateDocRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Markdown *string `json:"markdown"`
}

func (r UpdateDocRequest) Empty() bool {
	return r.Title == nil && r.Content == nil && r.Markdown == nil
}
