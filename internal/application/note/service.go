package note

import (
	"context"
	"fmt"
	"time"

	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldTitle   = "title"
	fieldContent = "content"
)

type Service interface {
	Create(ctx context.Context, ownerID string, req domain.CreateNoteRequest) (*domain.Note, error)
	List(ctx context.Context, ownerID string) ([]domain.Note, error)
	Update(ctx context.Context, ownerID, noteID string, req domain.UpdateNoteRequest) (*domain.Note, error)
	Delete(ctx context.Context, ownerID, noteID string) error
}

type noteStore interface {
	Put(ctx context.Context, n *domain.Note) error
	Get(ctx context.Context, noteID string) (*domain.Note, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.Note, error)
	Update(ctx context.Context, noteID string, updates map[string]interface{}) error
	Delete(ctx context.Context, noteID string) error
}

type service struct {
	repo noteStore
}

func NewService(repo noteStore) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, ownerID string, req domain.CreateNoteRequest) (*domain.Note, error) {
	now := time.Now().UTC()
	n := &domain.Note{
		NoteID:    id.New(),
		Title:     req.Title,
		Content:   req.Content,
		Owner:     ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create the note: %w", err)
	}
	return n, nil
}

func (s *service) List(ctx context.Context, ownerID string) ([]domain.Note, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) Update(ctx context.Context, ownerID, noteID string, req domain.UpdateNoteRequest) (*domain.Note, error) {
	n, err := s.owned(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, noteID, map[string]interface{}{
		fieldTitle:   req.Title,
		fieldContent: req.Content,
	}); err != nil {
		return nil, err
	}
	n.Title = req.Title
	n.Content = req.Content
	return n, nil
}

func (s *service) Delete(ctx context.Context, ownerID, noteID string) error {
	if _, err := s.owned(ctx, ownerID, noteID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, noteID)
}

// owned loads a note and enforces the ownership boundary: notes are only
// ever returned or mutated for their owner.
func (s *service) owned(ctx context.Context, ownerID, noteID string) (*domain.Note, error) {
	n, err := s.repo.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if n.Owner != ownerID {
		return nil, fmt.Errorf("you are not authorized to modify this note: %w", domain.ErrForbidden)
	}
	return n, nil
}
