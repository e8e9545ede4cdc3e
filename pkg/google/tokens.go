package google

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
)

// TokenStore persists per-user OAuth tokens in the control database and
// implements ClientProvider. Account linking happens in a separate flow
// that writes rows here; this service only reads and refreshes them.
type TokenStore struct {
	db    *sql.DB
	oauth *oauth2.Config
}

func NewTokenStore(db *sql.DB, cfg config.GoogleToolConfig) *TokenStore {
	return &TokenStore{
		db: db,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     googleoauth.Endpoint,
		},
	}
}

// AuthorizedClient loads the user's token, refreshes it when stale, and
// returns an HTTP client carrying it. Every failure mode maps to an
// AuthError so callers collapse them into one reconnect remedy.
func (s *TokenStore) AuthorizedClient(ctx context.Context, userID string) (*http.Client, error) {
	token, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	source := s.oauth.TokenSource(ctx, token)
	fresh, err := source.Token()
	if err != nil {
		return nil, &AuthError{Code: CodeRefreshFailed, UserID: userID, Err: err}
	}

	if fresh.AccessToken != token.AccessToken {
		if err := s.save(ctx, userID, fresh); err != nil {
			slog.Warn("failed to persist refreshed google token", "user", userID, "error", err)
		}
	}

	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(fresh)), nil
}

func (s *TokenStore) load(ctx context.Context, userID string) (*oauth2.Token, error) {
	var accessToken, refreshToken string
	var expiry time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, COALESCE(refresh_token, ''), expiry
		 FROM google_tokens WHERE user_id = $1`, userID).
		Scan(&accessToken, &refreshToken, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &AuthError{Code: CodeNotConnected, UserID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load google token: %w", err)
	}
	if refreshToken == "" {
		return nil, &AuthError{Code: CodeNoRefresh, UserID: userID}
	}
	return &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       expiry,
	}, nil
}

func (s *TokenStore) save(ctx context.Context, userID string, token *oauth2.Token) error {
	refreshToken := token.RefreshToken
	_, err := s.db.ExecContext(ctx,
		`UPDATE google_tokens
		 SET access_token = $1, refresh_token = COALESCE(NULLIF($2, ''), refresh_token), expiry = $3
		 WHERE user_id = $4`,
		token.AccessToken, refreshToken, token.Expiry, userID)
	return err
}
