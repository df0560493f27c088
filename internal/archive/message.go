package archive

import (
	"time"

	"github.com/saifulwebid/ngobrol/internal/protocol"
)

// UpsertMessage inserts or updates a message record, idempotent on id.
func (db *DB) UpsertMessage(m protocol.Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (id, sender, recipient, body, read, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			read = excluded.read`,
		m.ID, m.From, m.To, m.Body, m.Read, m.Timestamp.UnixMilli(), now)
	return err
}

// MarkRead flips every archived message from sender to recipient to read.
func (db *DB) MarkRead(sender, recipient string) error {
	_, err := db.Exec(`UPDATE messages SET read = 1 WHERE sender = ? AND recipient = ?`, sender, recipient)
	return err
}

// Conversation returns the archived transcript between two users in
// timestamp order, regardless of direction.
func (db *DB) Conversation(user1, user2 string, limit int) ([]protocol.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT id, sender, recipient, body, read, timestamp
		FROM messages
		WHERE (sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?)
		ORDER BY timestamp ASC
		LIMIT ?`, user1, user2, user2, user1, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []protocol.Message
	for rows.Next() {
		var m protocol.Message
		var ts int64
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Body, &m.Read, &ts); err != nil {
			return nil, err
		}
		m.Timestamp = time.UnixMilli(ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
