package statement

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	sessionBucketName = "sessions"
	resultBucketName  = "results"
)

// DB defines the interface for database operations.
type DB interface {
	// SaveSession saves a session to the database
	SaveSession(session *Session) error

	// GetSession retrieves a session by ID
	GetSession(id string) (*Session, error)

	// ListSessions returns all sessions
	ListSessions() ([]*Session, error)

	// DeleteSession removes a session from the database
	DeleteSession(id string) error

	// SaveResult saves the last aggregated result for a session
	SaveResult(sessionID string, result *AggregatedResult) error

	// GetResult retrieves the last aggregated result for a session
	GetResult(sessionID string) (*AggregatedResult, error)

	// DeleteResult removes a session's result
	DeleteResult(sessionID string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(resultBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveSession saves a session to the database.
func (b *BoltDB) SaveSession(session *Session) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshaling session: %w", err)
		}
		return bucket.Put([]byte(session.ID), data)
	})
}

// GetSession retrieves a session by ID.
func (b *BoltDB) GetSession(id string) (*Session, error) {
	var session *Session
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("session not found: %s", id)
		}
		return json.Unmarshal(data, &session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns all sessions.
func (b *BoltDB) ListSessions() ([]*Session, error) {
	sessions := make([]*Session, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("unmarshaling session: %w", err)
			}
			sessions = append(sessions, &session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes a session from the database.
func (b *BoltDB) DeleteSession(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		return bucket.Delete([]byte(id))
	})
}

// SaveResult saves the last aggregated result for a session. Each run
// replaces the previous one wholesale.
func (b *BoltDB) SaveResult(sessionID string, result *AggregatedResult) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(resultBucketName))
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshaling result: %w", err)
		}
		return bucket.Put([]byte(sessionID), data)
	})
}

// GetResult retrieves the last aggregated result for a session.
func (b *BoltDB) GetResult(sessionID string) (*AggregatedResult, error) {
	var result *AggregatedResult
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(resultBucketName))
		data := bucket.Get([]byte(sessionID))
		if data == nil {
			return fmt.Errorf("no extraction result for session: %s", sessionID)
		}
		return json.Unmarshal(data, &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteResult removes a session's result.
func (b *BoltDB) DeleteResult(sessionID string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(resultBucketName))
		return bucket.Delete([]byte(sessionID))
	})
}

// Close closes the database connection.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
