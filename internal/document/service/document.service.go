package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"naskah/internal/document/model"
	"naskah/internal/document/repository"
	"naskah/pkg/logger"
	"naskah/socket"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const (
	DefaultTitle   = "Untitled Document"
	maxTitleLength = 255
)

var (
	ErrNotFound     = repository.ErrNotFound
	ErrForbidden    = errors.New("document belongs to another user")
	ErrInvalidInput = errors.New("invalid document input")
)

// Store is the persistence the service needs; *repository.DocumentRepository
// satisfies it.
type Store interface {
	Create(ctx context.Context, d *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	ListPreviewsByUser(ctx context.Context, userID string) ([]model.DocumentPreview, error)
	Update(ctx context.Context, d *model.Document) error
	Delete(ctx context.Context, id, userID string) error
}

// Publisher receives change events for the owner's live views. *socket.Hub
// satisfies it.
type Publisher interface {
	Publish(msg socket.WSMessage)
}

type DocumentService struct {
	Repo   Store
	Hub    Publisher
	policy *bluemonday.Policy
	now    func() time.Time
}

func NewDocumentService(repo Store, hub Publisher) *DocumentService {
	return &DocumentService{
		Repo:   repo,
		Hub:    hub,
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
	}
}

func (s *DocumentService) Create(ctx context.Context, userID string, req model.CreateDocRequest) (*model.Document, error) {
	now := s.timestamp()
	d := &model.Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     s.cleanTitle(req.Title),
		Content:   req.Content,
		Markdown:  req.Markdown,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.publish(socket.CreatedType, d)
	return d, nil
}

// Get returns the document if userID owns it.
func (s *DocumentService) Get(ctx context.Context, userID, id string) (*model.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	d, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		logger.Sugar.Warnf("User %s tried to access doc %s owned by another user", userID, id)
		return nil, ErrForbidden
	}
	return d, nil
}

func (s *DocumentService) List(ctx context.Context, userID string) ([]model.DocumentPreview, error) {
	return s.Repo.ListPreviewsByUser(ctx, userID)
}

// Update applies the non-nil fields of patch and refreshes UpdatedAt.
func (s *DocumentService) Update(ctx context.Context, userID, id string, patch model.UpdateDocRequest) (*model.Document, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		d.Title = s.cleanTitle(*patch.Title)
	}
	if patch.Content != nil {
		d.Content = *patch.Content
	}
	if patch.Markdown != nil {
		d.Markdown = *patch.Markdown
	}
	d.UpdatedAt = s.timestamp()
	if d.UpdatedAt.Before(d.CreatedAt) {
		d.UpdatedAt = d.CreatedAt
	}

	if err := s.Repo.Update(ctx, d); err != nil {
		return nil, err
	}
	s.publish(socket.UpdatedType, d)
	return d, nil
}

func (s *DocumentService) Delete(ctx context.Context, userID, id string) error {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.publish(socket.DeletedType, d)
	return nil
}

// cleanTitle strips markup, collapses whitespace and falls back to the
// default title when nothing is left.
func (s *DocumentService) cleanTitle(title string) string {
	title = html.UnescapeString(s.policy.Sanitize(title))
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}
	return title
}

// timestamp is truncated to what every supported store can round-trip.
func (s *DocumentService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *DocumentService) publish(eventType string, d *model.Document) {
	if s.Hub == nil {
		return
	}
	payload, err := json.Marshal(d.Preview())
	if err != nil {
		logger.Sugar.Errorf("Failed to marshal %s event for doc %s: %v", eventType, d.ID, err)
		return
	}
	s.Hub.Publish(socket.WSMessage{
		Type:    eventType,
		DocID:   d.ID,
		UserID:  d.UserID,
		Payload: payload,
	})
}
