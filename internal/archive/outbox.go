package archive

import "time"

// OutboxEntry records a locally sent message under its client-assigned id.
// The server does not acknowledge individual sends, so entries are cleared
// when a history replace confirms the transcript.
type OutboxEntry struct {
	ClientMsgID   string
	Peer          string
	Body          string
	ProvisionalID int64
	CreatedAt     int64
}

// QueueOutbox records a message that was just handed to the transport.
func (db *DB) QueueOutbox(clientMsgID, peer, body string, provisionalID int64) error {
	_, err := db.Exec(`
		INSERT INTO outbox (client_msg_id, peer, body, provisional_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		clientMsgID, peer, body, provisionalID, time.Now().UnixMilli())
	return err
}

// ClearOutbox drops every outbox entry for a peer; called once a server
// transcript covering the conversation has been archived.
func (db *DB) ClearOutbox(peer string) error {
	_, err := db.Exec(`DELETE FROM outbox WHERE peer = ?`, peer)
	return err
}

// PendingOutbox returns recorded sends oldest first.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT client_msg_id, peer, body, provisional_id, created_at
		FROM outbox ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ClientMsgID, &e.Peer, &e.Body, &e.ProvisionalID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
