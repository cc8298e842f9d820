package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/fitsync/internal/model"
)

// ErrNotParticipant is returned when a user sends into a conversation they
// are not part of.
var ErrNotParticipant = errors.New("not a conversation participant")

// CreateConversation opens a conversation between the given users.
// Duplicate participant IDs are collapsed.
func (s *Store) CreateConversation(ctx context.Context, participants []string) (model.Conversation, error) {
	seen := make(map[string]struct{}, len(participants))
	var members []string
	for _, id := range participants {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) < 2 {
		return model.Conversation{}, fmt.Errorf("create conversation: need at least two participants")
	}
	sort.Strings(members)

	conv := model.Conversation{ID: s.ids.Generate(), Participants: members}
	ts := s.stamp()
	conv.CreatedAt = fromStamp(ts)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO conversations (id, created_at) VALUES (?, ?)`, conv.ID, ts); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		for _, id := range members {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_participants (conversation_id, user_id) VALUES (?, ?)
			`, conv.ID, id)
			if err != nil {
				return fmt.Errorf("insert participant %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

// SendMessage appends a message and inserts a message notification for
// every other participant in the same transaction.
func (s *Store) SendMessage(ctx context.Context, conversationID, senderID, content string) (model.Message, error) {
	if content == "" {
		return model.Message{}, fmt.Errorf("send message: empty content")
	}
	msg := model.Message{
		ID:             s.ids.Generate(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	ts := s.stamp()
	msg.CreatedAt = fromStamp(ts)

	var inserted []model.Notification
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		members, err := participantsTx(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return ErrNotFound
		}
		isMember := false
		for _, id := range members {
			if id == senderID {
				isMember = true
				break
			}
		}
		if !isMember {
			return ErrNotParticipant
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, msg.ID, conversationID, senderID, content, ts)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		for _, id := range members {
			if id == senderID {
				continue
			}
			n, err := s.insertNotificationTx(ctx, tx, model.Notification{
				UserID:  id,
				ActorID: senderID,
				Type:    model.NotificationMessage,
			})
			if err != nil {
				return err
			}
			inserted = append(inserted, n)
		}
		return nil
	})
	if err != nil {
		return model.Message{}, err
	}
	s.feed.notify(inserted...)
	return msg, nil
}

// ListMessages returns a conversation's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		var (
			m  model.Message
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = fromStamp(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListConversations returns the conversations userID takes part in,
// newest first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.created_at FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = ?
		ORDER BY c.created_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}

	var out []model.Conversation
	for rows.Next() {
		var (
			c  model.Conversation
			ts int64
		)
		if err := rows.Scan(&c.ID, &ts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.CreatedAt = fromStamp(ts)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	rows.Close()

	// The single connection is free again once rows is closed.
	for i := range out {
		members, err := s.participants(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Participants = members
	}
	if out == nil {
		out = []model.Conversation{}
	}
	return out, nil
}

func (s *Store) participants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = ? ORDER BY user_id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func participantsTx(ctx context.Context, tx *sql.Tx, conversationID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = ? ORDER BY user_id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
