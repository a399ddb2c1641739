package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ecemk/konvo/models"
	"github.com/ecemk/konvo/pkg"
)

// sqliteCallRepository, CallRepository'nin SQLite implementasyonu.
//
// Session aggregate'i tek satırda saklanır: participants, rejected_by ve
// peer_links JSON kolonlardır. Satır her zaman bütün olarak okunur/yazılır;
// eşzamanlılık kontrolü DB'de değil, service katmanında keymutex ile yapılır.
type sqliteCallRepository struct {
	db *sql.DB
}

// NewSQLiteCallRepository, yeni bir SQLite call repository oluşturur.
func NewSQLiteCallRepository(db *sql.DB) CallRepository {
	return &sqliteCallRepository{db: db}
}

const callColumns = `id, chat_id, status, started_at, ended_at, participants, rejected_by, peer_links`

func (r *sqliteCallRepository) Create(ctx context.Context, call *models.CallSession) error {
	participants, rejectedBy, peerLinks, err := marshalCallColumns(call)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO calls (id, chat_id, status, started_at, ended_at, participants, rejected_by, peer_links)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, call.ID, call.ChatID, call.Status, call.StartedAt, call.EndedAt, participants, rejectedBy, peerLinks)
	if err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}

	return nil
}

func (r *sqliteCallRepository) GetByID(ctx context.Context, id string) (*models.CallSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+callColumns+` FROM calls WHERE id = ?
	`, id)

	call, err := scanCall(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkg.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}

	return call, nil
}

func (r *sqliteCallRepository) Save(ctx context.Context, call *models.CallSession) error {
	participants, rejectedBy, peerLinks, err := marshalCallColumns(call)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE calls
		SET status = ?, ended_at = ?, participants = ?, rejected_by = ?, peer_links = ?
		WHERE id = ?
	`, call.Status, call.EndedAt, participants, rejectedBy, peerLinks, call.ID)
	if err != nil {
		return fmt.Errorf("failed to save call: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}

	return nil
}

func (r *sqliteCallRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*models.CallSession, error) {
	// json_each ile participants JSON array'i içinde kullanıcı aranır.
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE EXISTS (
			SELECT 1 FROM json_each(calls.participants)
			WHERE json_extract(json_each.value, '$.user_id') = ?
		)
		ORDER BY started_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls for user: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

func (r *sqliteCallRepository) ListForChat(ctx context.Context, chatID string, limit int) ([]*models.CallSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE chat_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls for chat: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

func (r *sqliteCallRepository) ListOngoingByParticipant(ctx context.Context, userID string) ([]*models.CallSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE status = ? AND EXISTS (
			SELECT 1 FROM json_each(calls.participants)
			WHERE json_extract(json_each.value, '$.user_id') = ?
		)
	`, models.CallStatusOngoing, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ongoing calls: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

// marshalCallColumns, session'ın JSON kolonlarını serialize eder.
func marshalCallColumns(call *models.CallSession) (participants, rejectedBy, peerLinks []byte, err error) {
	if call.Participants == nil {
		call.Participants = []models.CallParticipant{}
	}
	if call.RejectedBy == nil {
		call.RejectedBy = []string{}
	}
	if call.PeerLinks == nil {
		call.PeerLinks = make(map[models.PeerKey]*models.PeerLink)
	}

	participants, err = json.Marshal(call.Participants)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal participants: %w", err)
	}
	rejectedBy, err = json.Marshal(call.RejectedBy)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal rejected_by: %w", err)
	}
	peerLinks, err = json.Marshal(call.PeerLinks)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal peer_links: %w", err)
	}
	return participants, rejectedBy, peerLinks, nil
}

// scanner, sql.Row ve sql.Rows'un ortak Scan interface'i.
type scanner interface {
	Scan(dest ...any) error
}

func scanCall(s scanner) (*models.CallSession, error) {
	var call models.CallSession
	var endedAt sql.NullTime
	var participants, rejectedBy, peerLinks []byte

	if err := s.Scan(
		&call.ID, &call.ChatID, &call.Status, &call.StartedAt, &endedAt,
		&participants, &rejectedBy, &peerLinks,
	); err != nil {
		return nil, err
	}

	if endedAt.Valid {
		t := endedAt.Time
		call.EndedAt = &t
	}

	if err := json.Unmarshal(participants, &call.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}
	if err := json.Unmarshal(rejectedBy, &call.RejectedBy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rejected_by: %w", err)
	}
	if err := json.Unmarshal(peerLinks, &call.PeerLinks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal peer_links: %w", err)
	}

	return &call, nil
}

func scanCalls(rows *sql.Rows) ([]*models.CallSession, error) {
	calls := []*models.CallSession{}
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call row: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate call rows: %w", err)
	}
	return calls, nil
}
