package service

import (
	"context"
	"fmt"
	"time"

	"flowdesk/internal/mailer"
	"flowdesk/internal/model"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Notifier turns lifecycle and workflow events into stored
// notifications. The in-app record is always written; the email
// channel is gated by the recipient's preferences, and digest mode
// defers delivery to the periodic flush.
//
// Recipient ids double as delivery addresses; the user directory is
// external to this core.
type Notifier struct {
	store Store
	mail  mailer.Mailer
	log   *zap.Logger
	now   func() time.Time
}

func NewNotifier(store Store, mail mailer.Mailer, log *zap.Logger) *Notifier {
	return &Notifier{store: store, mail: mail, log: log, now: time.Now}
}

type NotifyInput struct {
	UserID    string
	Type      model.NotificationType
	Title     string
	Body      string
	RequestID *string
	// Email marks this as an email candidate on top of the in-app
	// record.
	Email bool
}

// Dispatch stores the in-app notification and, for email candidates,
// either sends immediately, defers to the digest queue, or suppresses
// per the recipient's preferences.
func (n *Notifier) Dispatch(ctx context.Context, in NotifyInput) error {
	if err := n.store.InsertNotification(ctx, &model.Notification{
		ID:        ulid.Make().String(),
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     in.Title,
		Body:      in.Body,
		RequestID: in.RequestID,
	}); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if !in.Email {
		return nil
	}

	prefs, err := n.store.GetPreferences(ctx, in.UserID)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	if !prefs.EmailAllowed(in.Type) {
		// Suppressed outright, not queued.
		return nil
	}

	if prefs.Digest != model.DigestNone {
		if err := n.store.EnqueueDigest(ctx, &model.DigestEntry{
			ID:        ulid.Make().String(),
			UserID:    in.UserID,
			Subject:   in.Title,
			Body:      in.Body,
			RequestID: in.RequestID,
			Mode:      prefs.Digest,
		}); err != nil {
			return fmt.Errorf("failed to queue digest entry: %w", err)
		}
		return nil
	}

	return n.mail.Send(ctx, mailer.Message{
		To:      in.UserID,
		Subject: in.Title,
		Text:    in.Body,
	})
}

// FlushDigests sends one batched email per user for the given mode
// and marks the entries flushed. Called from the daily and weekly
// cron jobs.
func (n *Notifier) FlushDigests(ctx context.Context, mode model.DigestMode) error {
	entries, err := n.store.ListPendingDigests(ctx, mode)
	if err != nil {
		return fmt.Errorf("failed to list pending digests: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	byUser := make(map[string][]model.DigestEntry)
	order := make([]string, 0)
	for _, e := range entries {
		if _, ok := byUser[e.UserID]; !ok {
			order = append(order, e.UserID)
		}
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	now := n.now()
	for _, userID := range order {
		batch := byUser[userID]
		body := ""
		ids := make([]string, 0, len(batch))
		for _, e := range batch {
			body += fmt.Sprintf("- %s\n", e.Subject)
			if e.Body != "" {
				body += fmt.Sprintf("  %s\n", e.Body)
			}
			ids = append(ids, e.ID)
		}
		subject := fmt.Sprintf("Your %s digest (%d updates)", mode, len(batch))
		if err := n.mail.Send(ctx, mailer.Message{To: userID, Subject: subject, Text: body}); err != nil {
			n.log.Error("Failed to send digest",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		if err := n.store.MarkDigestsFlushed(ctx, ids, now); err != nil {
			n.log.Error("Failed to mark digests flushed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
	return nil
}
