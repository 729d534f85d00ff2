package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatgate/internal/app/db"
	"chatgate/internal/app/user"
)

// Postgres implements Store on top of a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an initialized pgx pool (see internal/app/db).
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// InsertMessage persists the message and its initial read receipts in one
// transaction so a crash cannot leave a message without the sender's receipt.
func (p *Postgres) InsertMessage(ctx context.Context, m Message) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert message: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, image_key, kind, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ChatID, m.SenderID, m.Content, m.ImageKey, m.Kind, m.CreatedAt,
	)
	if err != nil {
		// A duplicate ID means a retried pipeline already persisted this message.
		if db.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("insert message: %w", err)
	}

	for _, r := range m.ReadBy {
		_, err = tx.Exec(ctx,
			`INSERT INTO message_reads (message_id, user_id, read_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (message_id, user_id) DO NOTHING`,
			m.ID, r.UserID, r.ReadAt,
		)
		if err != nil {
			return fmt.Errorf("insert initial read receipt: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert message: %w", err)
	}
	return nil
}

// FindMessage loads the message row joined with the sender's display data,
// then attaches the read receipt set.
func (p *Postgres) FindMessage(ctx context.Context, id string) (*MessageWithSender, error) {
	var m MessageWithSender
	err := p.pool.QueryRow(ctx,
		`SELECT m.id, m.chat_id, m.sender_id, m.content, m.image_key, m.kind, m.created_at,
		        u.id, u.username
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1`,
		id,
	).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.ImageKey, &m.Kind, &m.CreatedAt,
		&m.Sender.ID, &m.Sender.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}

	readBy, err := p.readReceipts(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	m.ReadBy = readBy

	return &m, nil
}

func (p *Postgres) readReceipts(ctx context.Context, messageID string) ([]ReadReceipt, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT user_id, read_at
		 FROM message_reads
		 WHERE message_id = $1
		 ORDER BY read_at, user_id`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("load read receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]ReadReceipt, 0, 4)
	for rows.Next() {
		var r ReadReceipt
		if err := rows.Scan(&r.UserID, &r.ReadAt); err != nil {
			return nil, fmt.Errorf("scan read receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// SetLastMessage updates the chat's latest-message pointer.
func (p *Postgres) SetLastMessage(ctx context.Context, chatID, messageID string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE chats SET last_message_id = $2 WHERE id = $1`,
		chatID, messageID,
	)
	if err != nil {
		return fmt.Errorf("update last message pointer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ChatSummary re-joins the chat with its participants and current latest
// message. This is the SQL rendition of the aggregate the clients consume.
func (p *Postgres) ChatSummary(ctx context.Context, chatID string) (*ChatSummary, error) {
	var (
		s             ChatSummary
		lastMessageID *string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, kind, name, COALESCE(created_by, ''), last_message_id, created_at
		 FROM chats WHERE id = $1`,
		chatID,
	).Scan(&s.ID, &s.Kind, &s.Name, &s.CreatedBy, &lastMessageID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find chat: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT u.id, u.username
		 FROM chat_participants cp
		 JOIN users u ON u.id = cp.user_id
		 WHERE cp.chat_id = $1
		 ORDER BY u.username`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("load chat participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("scan chat participant: %w", err)
		}
		s.Participants = append(s.Participants, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if lastMessageID != nil && *lastMessageID != "" {
		last, err := p.FindMessage(ctx, *lastMessageID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// A dangling pointer (message purged by retention) renders as no
		// latest message rather than an error.
		if err == nil {
			s.LastMessage = last
		}
	}

	return &s, nil
}

// MarkMessagesRead inserts one receipt per unread message in a single
// statement. The conflict clause makes concurrent readers safe: each reader's
// receipts are independent rows and duplicates are silently skipped.
func (p *Postgres) MarkMessagesRead(ctx context.Context, chatID, readerID string, readAt time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO message_reads (message_id, user_id, read_at)
		 SELECT m.id, $2, $3
		 FROM messages m
		 WHERE m.chat_id = $1
		 ON CONFLICT (message_id, user_id) DO NOTHING`,
		chatID, readerID, readAt,
	)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
