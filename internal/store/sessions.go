package store

import (
	"database/sql"
	"time"

	"wabridge/internal/model"
)

func (s *Store) CreateSession(id, ownerID string, slot int) (model.Session, error) {
	now := time.Now().UnixMilli()
	_, err := s.conn.Exec(
		`INSERT INTO sessions (id, owner_id, slot, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, ownerID, slot, string(model.StatusDisconnected), now, now,
	)
	if err != nil {
		return model.Session{}, err
	}
	return s.GetSession(id)
}

func (s *Store) GetSession(id string) (model.Session, error) {
	row := s.conn.QueryRow(
		`SELECT id, owner_id, slot, status, phone, display_name, profile_pic_url,
		        last_seen, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListActiveSessions returns every session whose status is not
// "disconnected". These are the rows startup restoration reconnects.
func (s *Store) ListActiveSessions() ([]model.Session, error) {
	rows, err := s.conn.Query(
		`SELECT id, owner_id, slot, status, phone, display_name, profile_pic_url,
		        last_seen, created_at, updated_at
		 FROM sessions WHERE status != ? ORDER BY id`,
		string(model.StatusDisconnected))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) UpdateSessionStatus(id string, status model.SessionStatus) error {
	return s.updateSession(
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UnixMilli(), id)
}

// SetSessionConnected records the profile the provider reported at handshake
// alongside the connected status.
func (s *Store) SetSessionConnected(id, phone, displayName, profilePicURL string) error {
	now := time.Now().UnixMilli()
	return s.updateSession(
		`UPDATE sessions SET status = ?, phone = ?, display_name = ?,
		        profile_pic_url = ?, last_seen = ?, updated_at = ?
		 WHERE id = ?`,
		string(model.StatusConnected), phone, displayName, profilePicURL, now, now, id)
}

// MarkSessionReconnecting flips a session back to connecting after a
// transient drop. The status guard keeps a concurrent destroy from being
// overwritten: a disconnected row stays disconnected.
func (s *Store) MarkSessionReconnecting(id string) error {
	_, err := s.conn.Exec(
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ? AND status != ?`,
		string(model.StatusConnecting), time.Now().UnixMilli(), id,
		string(model.StatusDisconnected))
	return err
}

// ResetSession puts the row back to its pre-auth shape: disconnected, profile
// fields cleared. The row itself survives; only destroy/logout calls this.
func (s *Store) ResetSession(id string) error {
	err := s.updateSession(
		`UPDATE sessions SET status = ?, phone = '', display_name = '',
		        profile_pic_url = '', updated_at = ?
		 WHERE id = ?`,
		string(model.StatusDisconnected), time.Now().UnixMilli(), id)
	if err == ErrNotFound {
		return nil
	}
	return err
}

func (s *Store) TouchSession(id string, lastSeen int64) error {
	err := s.updateSession(
		`UPDATE sessions SET last_seen = ?, updated_at = ? WHERE id = ?`,
		lastSeen, time.Now().UnixMilli(), id)
	if err == ErrNotFound {
		return nil
	}
	return err
}

func (s *Store) updateSession(query string, args ...any) error {
	res, err := s.conn.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.Session, error) {
	var sess model.Session
	var status string
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.Slot, &status, &sess.Phone,
		&sess.DisplayName, &sess.ProfilePicURL, &sess.LastSeen,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	sess.Status = model.SessionStatus(status)
	return sess, nil
}
