package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"

	"donation-gate/internal/domain"
)

var (
	intentsBucket    = []byte("intents")
	referencesBucket = []byte("intent_references")
	tokensBucket     = []byte("intent_tokens")
)

// boltIntentRepo keeps intents in a single BoltDB file. Bolt serializes write
// transactions, so the pending guard in Approve is checked and applied atomically.
// Secondary buckets index reference -> id and token -> id.
type boltIntentRepo struct {
	db   *bolt.DB
	path string
}

func NewBoltIntentRepo(path string) (IntentRepo, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{intentsBucket, referencesBucket, tokensBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &boltIntentRepo{db: db, path: path}, nil
}

func (r *boltIntentRepo) Create(ctx context.Context, intent *domain.Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		refs := tx.Bucket(referencesBucket)
		intents := tx.Bucket(intentsBucket)

		if refs.Get([]byte(intent.ExternalReferenceID)) != nil {
			return fmt.Errorf("%w: intent for reference %s already exists", domain.ErrIntegrity, intent.ExternalReferenceID)
		}
		id := []byte(intent.ID.String())
		if intents.Get(id) != nil {
			return fmt.Errorf("%w: intent %s already exists", domain.ErrIntegrity, intent.ID)
		}
		if intent.AccessToken != "" {
			if err := claimToken(tx, intent.AccessToken, id); err != nil {
				return err
			}
		}

		data, err := json.Marshal(intent)
		if err != nil {
			return err
		}
		if err := intents.Put(id, data); err != nil {
			return err
		}
		return refs.Put([]byte(intent.ExternalReferenceID), id)
	})
}

func claimToken(tx *bolt.Tx, token string, id []byte) error {
	tokens := tx.Bucket(tokensBucket)
	if tokens.Get([]byte(token)) != nil {
		return fmt.Errorf("%w: access token collision", domain.ErrIntegrity)
	}
	return tokens.Put([]byte(token), id)
}

func getIntent(tx *bolt.Tx, id []byte) (*domain.Intent, error) {
	if id == nil {
		return nil, domain.ErrNotFound
	}
	v := tx.Bucket(intentsBucket).Get(id)
	if v == nil {
		return nil, domain.ErrNotFound
	}
	var i domain.Intent
	if err := json.Unmarshal(v, &i); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *boltIntentRepo) view(ctx context.Context, fn func(tx *bolt.Tx) (*domain.Intent, error)) (*domain.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *domain.Intent
	err := r.db.View(func(tx *bolt.Tx) error {
		i, err := fn(tx)
		out = i
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *boltIntentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Intent, error) {
	return r.view(ctx, func(tx *bolt.Tx) (*domain.Intent, error) {
		return getIntent(tx, []byte(id.String()))
	})
}

func (r *boltIntentRepo) FindByReference(ctx context.Context, referenceID string) (*domain.Intent, error) {
	return r.view(ctx, func(tx *bolt.Tx) (*domain.Intent, error) {
		return getIntent(tx, tx.Bucket(referencesBucket).Get([]byte(referenceID)))
	})
}

func (r *boltIntentRepo) FindApprovedByToken(ctx context.Context, token string) (*domain.Intent, error) {
	return r.view(ctx, func(tx *bolt.Tx) (*domain.Intent, error) {
		if token == "" {
			return nil, domain.ErrNotFound
		}
		i, err := getIntent(tx, tx.Bucket(tokensBucket).Get([]byte(token)))
		if err != nil {
			return nil, err
		}
		if !i.IsApproved() || i.AccessToken != token {
			return nil, domain.ErrNotFound
		}
		return i, nil
	})
}

func (r *boltIntentRepo) Approve(ctx context.Context, referenceID string, approval domain.Approval) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	applied := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		id := tx.Bucket(referencesBucket).Get([]byte(referenceID))
		i, err := getIntent(tx, id)
		if err != nil {
			return err
		}
		if !i.Apply(approval) {
			return nil
		}
		if err := claimToken(tx, approval.Token, id); err != nil {
			return err
		}

		data, err := json.Marshal(i)
		if err != nil {
			return err
		}
		applied = true
		return tx.Bucket(intentsBucket).Put(id, data)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *boltIntentRepo) scan(ctx context.Context, keep func(*domain.Intent) bool) ([]domain.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	intents := []domain.Intent{}
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(intentsBucket).ForEach(func(k, v []byte) error {
			var i domain.Intent
			if err := json.Unmarshal(v, &i); err != nil {
				return err
			}
			if keep(&i) {
				intents = append(intents, i)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *boltIntentRepo) List(ctx context.Context) ([]domain.Intent, error) {
	intents, err := r.scan(ctx, func(*domain.Intent) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(intents, func(a, b int) bool {
		return intents[a].CreatedAt.After(intents[b].CreatedAt)
	})
	return intents, nil
}

func (r *boltIntentRepo) FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.Intent, error) {
	intents, err := r.scan(ctx, func(i *domain.Intent) bool {
		return i.Status == domain.IntentPending && i.CreatedAt.Before(before)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(intents, func(a, b int) bool {
		return intents[a].CreatedAt.Before(intents[b].CreatedAt)
	})
	if limit > 0 && len(intents) > limit {
		intents = intents[:limit]
	}
	return intents, nil
}

func (r *boltIntentRepo) Health(ctx context.Context) map[string]string {
	stats := map[string]string{
		"driver": "bolt",
		"path":   r.path,
	}
	err := r.db.View(func(tx *bolt.Tx) error {
		stats["intents"] = strconv.Itoa(tx.Bucket(intentsBucket).Stats().KeyN)
		return nil
	})
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	dbStats := r.db.Stats()
	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["open_read_txs"] = strconv.Itoa(dbStats.OpenTxN)
	stats["read_txs"] = strconv.Itoa(dbStats.TxN)
	return stats
}

func (r *boltIntentRepo) Close() error {
	return r.db.Close()
}
