package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keidrun/coinietrade/internal/domain"
)

// SecretStore implements domain.SecretStore using PostgreSQL. It only ever
// returns the encrypted secret blob; decryption happens in the wiring layer.
type SecretStore struct {
	pool *pgxpool.Pool
}

// NewSecretStore creates a new SecretStore.
func NewSecretStore(pool *pgxpool.Pool) *SecretStore {
	return &SecretStore{pool: pool}
}

// GetByUserAndSite returns the stored credential pair for one venue.
func (s *SecretStore) GetByUserAndSite(ctx context.Context, userID, siteName string) (domain.VenueSecret, error) {
	var sec domain.VenueSecret
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, site_name, api_key, encrypted_secret, modified_at
		FROM venue_secrets WHERE user_id = $1 AND site_name = $2`,
		userID, siteName,
	).Scan(&sec.UserID, &sec.SiteName, &sec.APIKey, &sec.EncryptedSecret, &sec.ModifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VenueSecret{}, domain.ErrNotFound
		}
		return domain.VenueSecret{}, fmt.Errorf("postgres: get secret %s/%s: %w", userID, siteName, err)
	}
	return sec, nil
}

// Compile-time interface check.
var _ domain.SecretStore = (*SecretStore)(nil)
