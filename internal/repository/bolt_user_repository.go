package repository

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/abelzeko/weather-bot/internal/entities"
	bbolt "go.etcd.io/bbolt"
)

const usersBucketName = "users" // userId -> boltUser

// boltUser is the JSON document stored per user
type boltUser struct {
	ID           int64     `json:"id"`
	Nickname     string    `json:"nickname"`
	Registered   bool      `json:"registered"`
	RegisteredAt time.Time `json:"registered_at"`
}

// BoltUserRepository implements UserRepository on top of a bbolt file
type BoltUserRepository struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// NewBoltUserRepository creates or opens the DB and its buckets
func NewBoltUserRepository(fileName string, logger *slog.Logger) (*BoltUserRepository, error) {
	if err := ensureDir(fileName); err != nil {
		return nil, err
	}

	logger.Info("opening database", "driver", "bolt", "path", fileName)
	db, err := bbolt.Open(fileName, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db %s: %w", fileName, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists([]byte(usersBucketName)); e != nil {
			return fmt.Errorf("failed to create top level bucket %s: %w", usersBucketName, e)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltUserRepository{db: db, logger: logger}, nil
}

// Close releases the file lock
func (b *BoltUserRepository) Close() error {
	return b.db.Close()
}

// UpsertUser stores the user in a single read-write transaction
func (b *BoltUserRepository) UpsertUser(user entities.User) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(usersBucketName))
		key := itob64(user.ID)

		rec := boltUser{ID: user.ID, RegisteredAt: time.Now().UTC()}
		if existing := bkt.Get(key); existing != nil {
			if err := json.Unmarshal(existing, &rec); err != nil {
				return fmt.Errorf("failed to decode user %d: %w", user.ID, err)
			}
		}
		rec.Nickname = user.DisplayName
		rec.Registered = true

		buf, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return bkt.Put(key, buf)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}

	b.logger.Debug("user upserted", "user_id", user.ID)
	return nil
}

// IsRegistered returns false when no record exists
func (b *BoltUserRepository) IsRegistered(userID int64) (bool, error) {
	user, err := b.GetUser(userID)
	if err == ErrUserNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Registered, nil
}

// GetUser retrieves a single user record
func (b *BoltUserRepository) GetUser(userID int64) (entities.User, error) {
	var rec boltUser
	err := b.db.View(func(tx *bbolt.Tx) error {
		buf := tx.Bucket([]byte(usersBucketName)).Get(itob64(userID))
		if buf == nil {
			return ErrUserNotFound
		}
		return json.Unmarshal(buf, &rec)
	})
	if err == ErrUserNotFound {
		return entities.User{}, err
	}
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	return entities.User{
		ID:           rec.ID,
		DisplayName:  rec.Nickname,
		Registered:   rec.Registered,
		RegisteredAt: rec.RegisteredAt,
	}, nil
}

// CountRegistered returns the number of registered users
func (b *BoltUserRepository) CountRegistered() (int, error) {
	n := 0
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(usersBucketName)).ForEach(func(_, v []byte) error {
			var rec boltUser
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Registered {
				n++
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// itob64 returns an 8-byte big endian representation of v
func itob64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
