package queries

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/fitsync/internal/model"
)

// ErrForbidden is returned when a user mutates something they do not own.
var ErrForbidden = errors.New("forbidden")

// WriteBackend is the mutation side of the backend.
type WriteBackend interface {
	GetProfileByID(ctx context.Context, id string) (model.Profile, error)
	PutProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	PutSession(ctx context.Context, s model.Session) (model.Session, error)
	DeleteSession(ctx context.Context, id, userID string) error
	AddPalmares(ctx context.Context, p model.Palmares) (model.Palmares, error)
	AddPersonalRecord(ctx context.Context, pr model.PersonalRecord) (model.PersonalRecord, error)
	AddComment(ctx context.Context, c model.Comment) (model.Comment, error)
	AddSessionPhoto(ctx context.Context, p model.SessionPhoto) (model.SessionPhoto, error)
	CreateConversation(ctx context.Context, participants []string) (model.Conversation, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) (model.Message, error)
}

// Writer runs mutations and then invalidates the tags they affect.
// Invalidation happens only after the backend write succeeded.
type Writer struct {
	backend WriteBackend
	inv     *Invalidator
}

// NewWriter creates a Writer.
func NewWriter(backend WriteBackend, inv *Invalidator) *Writer {
	return &Writer{backend: backend, inv: inv}
}

// UpdateProfile saves p. The public profile under the old and the new
// username, the owner's own profile, and the feed (which shows authors)
// are invalidated.
func (w *Writer) UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	p.Username = NormalizeUsername(p.Username)

	var oldUsername string
	if p.ID != "" {
		if old, err := w.backend.GetProfileByID(ctx, p.ID); err == nil {
			oldUsername = old.Username
		}
	}

	saved, err := w.backend.PutProfile(ctx, p)
	if err != nil {
		return model.Profile{}, err
	}

	w.inv.InvalidateProfile(saved.Username)
	if oldUsername != "" && oldUsername != saved.Username {
		w.inv.InvalidateProfile(oldUsername)
	}
	w.inv.InvalidateMyProfile(saved.ID)
	w.inv.InvalidateFeed()
	return saved, nil
}

// AddSession creates a journal entry.
func (w *Writer) AddSession(ctx context.Context, s model.Session) (model.Session, error) {
	s.ID = ""
	saved, err := w.backend.PutSession(ctx, s)
	if err != nil {
		return model.Session{}, err
	}
	w.invalidateSession(saved)
	return saved, nil
}

// UpdateSession replaces an existing entry owned by s.UserID.
func (w *Writer) UpdateSession(ctx context.Context, s model.Session) (model.Session, error) {
	existing, err := w.backend.GetSession(ctx, s.ID)
	if err != nil {
		return model.Session{}, err
	}
	if existing.UserID != s.UserID {
		return model.Session{}, fmt.Errorf("update session %s: %w", s.ID, ErrForbidden)
	}

	saved, err := w.backend.PutSession(ctx, s)
	if err != nil {
		return model.Session{}, err
	}
	w.invalidateSession(saved)
	return saved, nil
}

// DeleteSession removes sessionID if userID owns it.
func (w *Writer) DeleteSession(ctx context.Context, sessionID, userID string) error {
	existing, err := w.backend.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return fmt.Errorf("delete session %s: %w", sessionID, ErrForbidden)
	}
	if err := w.backend.DeleteSession(ctx, sessionID, userID); err != nil {
		return err
	}
	w.invalidateSession(existing)
	return nil
}

func (w *Writer) invalidateSession(s model.Session) {
	w.inv.InvalidateSessions(s.UserID)
	w.inv.InvalidateSession(s.ID)
	w.inv.InvalidateFeed()
}

// AddPalmares records a competition result.
func (w *Writer) AddPalmares(ctx context.Context, p model.Palmares) (model.Palmares, error) {
	saved, err := w.backend.AddPalmares(ctx, p)
	if err != nil {
		return model.Palmares{}, err
	}
	w.inv.InvalidatePalmares(saved.UserID)
	return saved, nil
}

// AddPersonalRecord records a best lift.
func (w *Writer) AddPersonalRecord(ctx context.Context, pr model.PersonalRecord) (model.PersonalRecord, error) {
	saved, err := w.backend.AddPersonalRecord(ctx, pr)
	if err != nil {
		return model.PersonalRecord{}, err
	}
	w.inv.InvalidatePRs(saved.UserID)
	return saved, nil
}

// AddComment posts a comment; the backend notifies the session owner.
// Comments are read live, so nothing is invalidated.
func (w *Writer) AddComment(ctx context.Context, c model.Comment) (model.Comment, error) {
	return w.backend.AddComment(ctx, c)
}

// AddSessionPhoto attaches an uploaded photo owned by the session owner.
// Photos are read live, so nothing is invalidated.
func (w *Writer) AddSessionPhoto(ctx context.Context, p model.SessionPhoto) (model.SessionPhoto, error) {
	sess, err := w.backend.GetSession(ctx, p.SessionID)
	if err != nil {
		return model.SessionPhoto{}, err
	}
	if sess.UserID != p.UserID {
		return model.SessionPhoto{}, fmt.Errorf("add photo to %s: %w", p.SessionID, ErrForbidden)
	}
	return w.backend.AddSessionPhoto(ctx, p)
}

// StartConversation opens a direct message thread.
func (w *Writer) StartConversation(ctx context.Context, participants []string) (model.Conversation, error) {
	return w.backend.CreateConversation(ctx, participants)
}

// SendMessage posts a direct message; the backend notifies every other
// participant with a message notification.
func (w *Writer) SendMessage(ctx context.Context, conversationID, senderID, content string) (model.Message, error) {
	return w.backend.SendMessage(ctx, conversationID, senderID, content)
}
