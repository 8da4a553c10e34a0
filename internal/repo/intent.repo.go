package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"donation-gate/internal/database"
	"donation-gate/internal/domain"
)

const uniqueViolation = "23505"

type IntentRepo interface {
	database.Service

	// Create persists a new pending intent. A reused reference is an integrity error.
	Create(ctx context.Context, intent *domain.Intent) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Intent, error)
	FindByReference(ctx context.Context, referenceID string) (*domain.Intent, error)
	// Approve applies the pending -> approved transition only while the intent
	// is still pending. It reports whether this call performed the transition.
	Approve(ctx context.Context, referenceID string, approval domain.Approval) (bool, error)
	FindApprovedByToken(ctx context.Context, token string) (*domain.Intent, error)
	// List returns every intent, newest first.
	List(ctx context.Context) ([]domain.Intent, error)
	FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.Intent, error)
}

type intentRepo struct {
	db *sql.DB
}

func NewIntentRepo(db *sql.DB) IntentRepo {
	return &intentRepo{db: db}
}

const intentColumns = `id, external_reference_id, amount, currency, status, external_payment_id, access_token, created_at, approved_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*domain.Intent, error) {
	var (
		i          domain.Intent
		paymentID  sql.NullString
		token      sql.NullString
		approvedAt sql.NullTime
	)
	err := row.Scan(
		&i.ID,
		&i.ExternalReferenceID,
		&i.Amount,
		&i.Currency,
		&i.Status,
		&paymentID,
		&token,
		&i.CreatedAt,
		&approvedAt,
	)
	if err != nil {
		return nil, err
	}
	i.ExternalPaymentID = paymentID.String
	i.AccessToken = token.String
	if approvedAt.Valid {
		t := approvedAt.Time
		i.ApprovedAt = &t
	}
	return &i, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *intentRepo) Create(ctx context.Context, intent *domain.Intent) error {
	query := `INSERT INTO intents (` + intentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var approvedAt sql.NullTime
	if intent.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *intent.ApprovedAt, Valid: true}
	}

	_, err := r.db.ExecContext(
		ctx, query,
		intent.ID,
		intent.ExternalReferenceID,
		intent.Amount,
		intent.Currency,
		intent.Status,
		nullable(intent.ExternalPaymentID),
		nullable(intent.AccessToken),
		intent.CreatedAt,
		approvedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: intent for reference %s already exists", domain.ErrIntegrity, intent.ExternalReferenceID)
	}
	return err
}

func (r *intentRepo) findOne(ctx context.Context, where string, arg any) (*domain.Intent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+intentColumns+` FROM intents WHERE `+where, arg)
	i, err := scanIntent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (r *intentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Intent, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *intentRepo) FindByReference(ctx context.Context, referenceID string) (*domain.Intent, error) {
	return r.findOne(ctx, `external_reference_id = $1`, referenceID)
}

func (r *intentRepo) FindApprovedByToken(ctx context.Context, token string) (*domain.Intent, error) {
	// No stored token can contain bytes a text column refuses.
	if !utf8.ValidString(token) || strings.ContainsRune(token, 0) {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, `access_token = $1 AND status = 'approved'`, token)
}

func (r *intentRepo) Approve(ctx context.Context, referenceID string, approval domain.Approval) (bool, error) {
	query := `
		UPDATE intents
		SET status = $2,
		    external_payment_id = $3,
		    access_token = $4,
		    approved_at = $5
		WHERE external_reference_id = $1
		  AND status = $6
	`
	res, err := r.db.ExecContext(
		ctx,
		query,
		referenceID,
		domain.IntentApproved,
		approval.PaymentID,
		approval.Token,
		approval.ApprovedAt,
		domain.IntentPending,
	)
	if isUniqueViolation(err) {
		return false, fmt.Errorf("%w: access token collision", domain.ErrIntegrity)
	}
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 1 {
		return false, fmt.Errorf("%w: approval touched %d intents for reference %s", domain.ErrIntegrity, n, referenceID)
	}
	return n == 1, nil
}

func (r *intentRepo) List(ctx context.Context) ([]domain.Intent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+intentColumns+` FROM intents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *intentRepo) FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.Intent, error) {
	query := `
		SELECT ` + intentColumns + ` FROM intents
		WHERE status = $1
		AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, domain.IntentPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]domain.Intent, error) {
	intents := []domain.Intent{}
	for rows.Next() {
		i, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, *i)
	}
	return intents, rows.Err()
}

func (r *intentRepo) Health(ctx context.Context) map[string]string {
	return database.Health(ctx, r.db)
}

func (r *intentRepo) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
