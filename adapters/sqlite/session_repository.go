package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/chatgate/domain/entities"
	"github.com/satriahrh/chatgate/domain/repositories"
)

const sessionColumns = `id, user_id, title, model_used, created_at, updated_at, last_message_at, message_count, is_archived`

type SessionRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*entities.SessionRecord, error) {
	var s entities.SessionRecord
	var modelUsed sql.NullString
	var createdAt, updatedAt, lastMessageAt string
	var archived int

	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &modelUsed,
		&createdAt, &updatedAt, &lastMessageAt, &s.MessageCount, &archived); err != nil {
		return nil, err
	}

	s.ModelUsed = stringPtr(modelUsed)
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	s.LastMessageAt = parseTime(lastMessageAt)
	s.IsArchived = archived == 1
	return &s, nil
}

// Create implements repositories.SessionRepository
func (r *SessionRepository) Create(ctx context.Context, userID, title string, modelUsed *string) (*entities.SessionRecord, error) {
	session := entities.NewSessionRecord(userID, title, modelUsed)
	if err := session.Validate(); err != nil {
		return nil, err
	}
	session.ID = uuid.NewString()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0)
	`, session.ID, session.UserID, session.Title, nullString(session.ModelUsed),
		formatTime(session.CreatedAt), formatTime(session.UpdatedAt), formatTime(session.LastMessageAt))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// GetByID implements repositories.SessionRepository
func (r *SessionRepository) GetByID(ctx context.Context, userID, id string) (*entities.SessionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM chat_sessions WHERE id = ? AND user_id = ?
	`, id, userID)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return session, nil
}

// ListByUser implements repositories.SessionRepository
func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SessionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM chat_sessions
		WHERE user_id = ? AND is_archived = 0
		ORDER BY last_message_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*entities.SessionRecord{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Update implements repositories.SessionRepository
func (r *SessionRepository) Update(ctx context.Context, userID, id string, patch entities.SessionPatch) (*entities.SessionRecord, error) {
	session, err := r.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(session)

	_, err = r.db.ExecContext(ctx, `
		UPDATE chat_sessions SET title = ?, model_used = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, session.Title, nullString(session.ModelUsed), formatTime(session.UpdatedAt), id, userID)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return session, nil
}

// Archive implements repositories.SessionRepository
func (r *SessionRepository) Archive(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE chat_sessions SET is_archived = 1, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, formatTime(time.Now()), id, userID)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return requireAffected(result)
}

// Delete implements repositories.SessionRepository
func (r *SessionRepository) Delete(ctx context.Context, userID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}
	return tx.Commit()
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

type MessageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

const messageColumns = `id, session_id, role, content, model, tokens_used, metadata, created_at`

func scanMessage(row rowScanner) (*entities.MessageRecord, error) {
	var m entities.MessageRecord
	var role, createdAt string
	var model, metadata sql.NullString
	var tokens sql.NullInt64

	if err := row.Scan(&m.ID, &m.SessionID, &role, &m.Content, &model, &tokens, &metadata, &createdAt); err != nil {
		return nil, err
	}

	m.Role = entities.Role(role)
	m.Model = stringPtr(model)
	if tokens.Valid {
		n := int(tokens.Int64)
		m.TokensUsed = &n
	}
	m.Metadata = decodeMetadata(metadata)
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

// Save implements repositories.MessageRepository
func (r *MessageRepository) Save(ctx context.Context, message *entities.MessageRecord) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if err := message.Validate(); err != nil {
		return err
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	metadata, err := encodeMetadata(message.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	var tokens sql.NullInt64
	if message.TokensUsed != nil {
		tokens = sql.NullInt64{Int64: int64(*message.TokensUsed), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, message.ID, message.SessionID, string(message.Role), message.Content,
		nullString(message.Model), tokens, metadata, formatTime(message.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE chat_sessions SET message_count = message_count + 1, last_message_at = ?
		WHERE id = ?
	`, formatTime(message.CreatedAt), message.SessionID)
	if err != nil {
		return fmt.Errorf("bump session: %w", err)
	}

	return tx.Commit()
}

// GetByID implements repositories.MessageRepository
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*entities.MessageRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id = ?`, id)
	message, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}
	return message, nil
}

// ListBySession implements repositories.MessageRepository
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*entities.MessageRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []*entities.MessageRecord{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

// Delete implements repositories.MessageRepository
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireAffected(result)
}

// Clear implements repositories.MessageRepository
func (r *MessageRepository) Clear(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE chat_sessions SET message_count = 0 WHERE id = ?`, sessionID); err != nil {
		r.logger.Warn("Failed to reset message count", zap.String("session_id", sessionID), zap.Error(err))
	}
	return nil
}
