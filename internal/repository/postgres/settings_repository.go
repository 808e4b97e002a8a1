package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// settingsRow is the id of the single merchant_settings and
// oauth_credentials row.
const settingsRow = 1

// SettingsRepository implements settings.Store and
// settings.CredentialRepository. Writes are plain upserts; the last writer
// wins.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Merchant returns the stored configuration, or a zero configuration when
// the merchant has not saved any yet.
func (r *SettingsRepository) Merchant(ctx context.Context) (*settings.MerchantConfig, error) {
	c := &settings.MerchantConfig{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT enabled, title, description, client_id, client_secret, branch_id,
		        purpose_template, sandbox, mini_app_only
		 FROM merchant_settings WHERE id = $1`, settingsRow,
	).Scan(&c.Enabled, &c.Title, &c.Description, &c.ClientID, &c.ClientSecret, &c.BranchID,
		&c.PurposeTemplate, &c.Sandbox, &c.MiniAppOnly)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, nil
		}
		return nil, fmt.Errorf("get merchant settings: %w", err)
	}
	return c, nil
}

func (r *SettingsRepository) SaveMerchant(ctx context.Context, c *settings.MerchantConfig) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO merchant_settings
		 (id, enabled, title, description, client_id, client_secret, branch_id,
		  purpose_template, sandbox, mini_app_only, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
		 ON CONFLICT (id) DO UPDATE SET
		  enabled = EXCLUDED.enabled, title = EXCLUDED.title, description = EXCLUDED.description,
		  client_id = EXCLUDED.client_id, client_secret = EXCLUDED.client_secret,
		  branch_id = EXCLUDED.branch_id, purpose_template = EXCLUDED.purpose_template,
		  sandbox = EXCLUDED.sandbox, mini_app_only = EXCLUDED.mini_app_only,
		  updated_at = EXCLUDED.updated_at`,
		settingsRow, c.Enabled, c.Title, c.Description, c.ClientID, c.ClientSecret, c.BranchID,
		c.PurposeTemplate, c.Sandbox, c.MiniAppOnly,
	)
	if err != nil {
		return fmt.Errorf("save merchant settings: %w", err)
	}
	return nil
}

func (r *SettingsRepository) GetCredential(ctx context.Context) (*settings.Credential, error) {
	c := &settings.Credential{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT access_token, refresh_token, expires_at FROM oauth_credentials WHERE id = $1`, settingsRow,
	).Scan(&c.AccessToken, &c.RefreshToken, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

// SaveCredential replaces the token triple in one statement so readers never
// see a new access token next to an old expiry.
func (r *SettingsRepository) SaveCredential(ctx context.Context, c *settings.Credential) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO oauth_credentials (id, access_token, refresh_token, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		  access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token,
		  expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`,
		settingsRow, c.AccessToken, c.RefreshToken, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}
