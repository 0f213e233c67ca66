package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrCitizenNotFound is returned when no citizen matches a wallet or id.
var ErrCitizenNotFound = errors.New("citizen not found")

// ErrWalletTaken is returned when registering an already-registered wallet.
var ErrWalletTaken = errors.New("wallet is already registered")

// Repository defines data access for the citizen registry.
type Repository interface {
	CreateCitizen(ctx context.Context, citizen *Citizen) error
	GetByWallet(ctx context.Context, wallet string) (*Citizen, error)
	GetByID(ctx context.Context, id int64) (*Citizen, error)
	AdjustReputation(ctx context.Context, id int64, delta int64) (int64, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewRepository creates a postgres-backed citizen repository
func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateCitizen(ctx context.Context, citizen *Citizen) error {
	query := `
		INSERT INTO citizens (wallet, name_ref, reputation_score, is_active, registered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (wallet) DO NOTHING
		RETURNING id`
	row := r.db.QueryRowxContext(ctx, query,
		citizen.Wallet, citizen.NameRef, citizen.ReputationScore, citizen.IsActive, citizen.RegisteredAt)
	err := row.Scan(&citizen.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrWalletTaken
	}
	return err
}

func (r *postgresRepository) GetByWallet(ctx context.Context, wallet string) (*Citizen, error) {
	var citizen Citizen
	err := r.db.GetContext(ctx, &citizen, "SELECT * FROM citizens WHERE wallet = $1", wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCitizenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &citizen, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Citizen, error) {
	var citizen Citizen
	err := r.db.GetContext(ctx, &citizen, "SELECT * FROM citizens WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCitizenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &citizen, nil
}

func (r *postgresRepository) AdjustReputation(ctx context.Context, id int64, delta int64) (int64, error) {
	var score int64
	err := r.db.QueryRowxContext(ctx,
		"UPDATE citizens SET reputation_score = reputation_score + $2 WHERE id = $1 RETURNING reputation_score",
		id, delta).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCitizenNotFound
	}
	return score, err
}

func (r *postgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE citizens SET is_active = $2 WHERE id = $1", id, active)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCitizenNotFound
	}
	return nil
}
