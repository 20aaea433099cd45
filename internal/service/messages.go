package service

import (
	"context"
	"log/slog"

	"foundation_site/internal/domain"
	"foundation_site/internal/resource"
	"foundation_site/internal/storage"
)

const tableMessages = "messages"

type MessageService struct {
	base
	messages *resource.Resource[domain.Message]
}

func NewMessageService(gateway Gateway, cache *resource.Cache, notifier Notifier, logger *slog.Logger, opts ...resource.Option) *MessageService {
	return &MessageService{
		base:     newBase(notifier, logger, tableMessages),
		messages: resource.New[domain.Message](tableMessages, gateway, cache, logger, opts...),
	}
}

// Submit records a contact form submission.
func (s *MessageService) Submit(ctx context.Context, in domain.MessageInput) (string, error) {
	var id string
	op := operation{resource: tableMessages, action: "submit", done: "Message sent"}
	err := s.run(ctx, nil, op, func(ctx context.Context) error {
		if err := validateInput(in); err != nil {
			return err
		}
		var err error
		id, err = s.messages.Create(ctx, storage.Values{
			"name":    in.Name,
			"email":   in.Email,
			"phone":   in.Phone,
			"subject": in.Subject,
			"body":    in.Body,
			"is_read": false,
		})
		return err
	})
	return id, err
}

func (s *MessageService) List(ctx context.Context, actor *domain.Actor, unreadOnly bool) ([]domain.Message, error) {
	if err := domain.Authorize(actor, domain.CapMessagesRead); err != nil {
		return nil, err
	}
	q := storage.Query{}
	if unreadOnly {
		q = q.Where("is_read", false)
	}
	return s.messages.List(ctx, q)
}

func (s *MessageService) Get(ctx context.Context, actor *domain.Actor, id string) (domain.Message, error) {
	if err := domain.Authorize(actor, domain.CapMessagesRead); err != nil {
		return domain.Message{}, err
	}
	return s.messages.Get(ctx, id)
}

func (s *MessageService) MarkRead(ctx context.Context, actor *domain.Actor, id string, read bool) error {
	op := operation{resource: tableMessages, action: "mark_read", done: "Message updated", cap: domain.CapMessagesWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.messages.Update(ctx, id, storage.Values{"is_read": read})
	})
}

func (s *MessageService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	op := operation{resource: tableMessages, action: "delete", done: "Message deleted", cap: domain.CapMessagesWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.messages.Remove(ctx, id)
	})
}
