package store

import (
	"database/sql"
	"time"

	"github.com/fxamacker/cbor/v2"

	"wabridge/internal/model"
)

// Auth state is serialized with CBOR rather than JSON: the credential and key
// material is raw bytes, and CBOR byte strings round-trip bit-for-bit where a
// generic JSON encoding would mangle them. Deterministic encoding keeps the
// stored blob stable for identical state.
var (
	authEncMode cbor.EncMode
	authDecMode cbor.DecMode
)

func init() {
	var err error
	authEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	authDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// LoadAuthState returns the stored auth state for the session, or fresh
// first-time-auth state when no row exists.
func (s *Store) LoadAuthState(sessionID string) (*model.AuthState, error) {
	var blob []byte
	err := s.conn.QueryRow(
		`SELECT blob FROM auth_state WHERE session_id = ?`, sessionID).Scan(&blob)
	if err == sql.ErrNoRows {
		return model.NewAuthState(), nil
	}
	if err != nil {
		return nil, err
	}

	state := &model.AuthState{}
	if err := authDecMode.Unmarshal(blob, state); err != nil {
		return nil, err
	}
	if state.Keys == nil {
		state.Keys = make(map[string]map[string][]byte)
	}
	return state, nil
}

// SaveAuthState upserts the full blob. Callers coalesce saves to credential
// or key mutations, so writing the whole key map every time is acceptable.
func (s *Store) SaveAuthState(sessionID string, state *model.AuthState) error {
	blob, err := authEncMode.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(
		`INSERT INTO auth_state (session_id, blob, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET blob = excluded.blob,
		        updated_at = excluded.updated_at`,
		sessionID, blob, time.Now().UnixMilli())
	return err
}

// AuthStateExists reports whether a stored blob exists without decoding it.
func (s *Store) AuthStateExists(sessionID string) (bool, error) {
	var n int
	err := s.conn.QueryRow(
		`SELECT COUNT(*) FROM auth_state WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAuthState removes the blob, forcing a fresh QR/pairing auth on the
// next connect. Missing row is a no-op.
func (s *Store) DeleteAuthState(sessionID string) error {
	_, err := s.conn.Exec(`DELETE FROM auth_state WHERE session_id = ?`, sessionID)
	return err
}
