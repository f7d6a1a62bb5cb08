package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamvault/auth-service/internal/events"
	pkghash "github.com/streamvault/auth-service/internal/hash"
	"github.com/streamvault/auth-service/internal/logging"
	"github.com/streamvault/auth-service/internal/media"
	"github.com/streamvault/auth-service/internal/models"
	"github.com/streamvault/auth-service/internal/repo"
	"github.com/streamvault/auth-service/internal/tokens"
)

type AuthService struct {
	Repo     *repo.GormRepo
	Uploader media.Uploader
	Producer events.Producer

	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

type SessionResult struct {
	User *models.User
	TokenPair
}

// Issue signs a fresh access+refresh pair for the user and persists the
// refresh token as the single live credential, invalidating any prior one.
func (s *AuthService) Issue(ctx context.Context, userID uuid.UUID) (*SessionResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.issue")

	user, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		l.Error("issue_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	pair, err := s.signPair(user)
	if err != nil {
		l.Error("issue_failed", "status", 500, "reason", "cannot sign tokens", "error", err)
		return nil, ErrInternal
	}

	if err := s.Repo.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		l.Error("issue_failed", "status", 500, "reason", "cannot persist refresh token", "error", err)
		return nil, ErrInternal
	}

	return &SessionResult{User: user.Sanitized(), TokenPair: *pair}, nil
}

func (s *AuthService) signPair(user *models.User) (*TokenPair, error) {
	accessExp := time.Now().Add(s.AccessTTL)
	accessToken, err := tokens.SignAccess(user.ID.String(), user.Username, user.Email, s.AccessSecret, accessExp)
	if err != nil {
		return nil, err
	}

	refreshExp := time.Now().Add(s.RefreshTTL)
	refreshToken, err := tokens.SignRefresh(user.ID.String(), s.RefreshSecret, refreshExp)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, username, email, password string) (*SessionResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if username == "" && email == "" {
		return nil, ErrValidation
	}

	user, err := s.Repo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if repo.IsNotFound(err) {
			l.Warn("login_failed", "status", 404, "reason", "user does not exist")
			return nil, ErrNotFound
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	if !pkghash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password", "username", user.Username)
		return nil, ErrInvalidCredentials
	}

	res, err := s.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeUserLoggedIn, user)
	l.Info("login_successful", "username", user.Username)
	return res, nil
}

// Refresh exchanges a presented refresh token for a new pair. The token
// must verify cryptographically AND match the stored credential byte for
// byte; a verified token that no longer matches has already been rotated
// out and is treated as a replay.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*SessionResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if presented == "" {
		return nil, ErrMissingRefreshToken
	}

	claims, err := tokens.RefreshClaimsFromToken(presented, s.RefreshSecret)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "token does not verify")
		return nil, ErrExpiredRefreshToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			l.Warn("refresh_failed", "status", 401, "reason", "unknown subject")
			return nil, ErrInvalidRefreshToken
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	if user.RefreshToken == "" || user.RefreshToken != presented {
		l.Warn("refresh_failed", "status", 401, "reason", "token already rotated or revoked", "user_id", user.ID)
		return nil, ErrUsedRefreshToken
	}

	pair, err := s.signPair(user)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot sign tokens", "error", err)
		return nil, ErrInternal
	}

	// Compare-and-swap on the stored value: if a concurrent refresh got
	// there first, the presented token no longer matches and this one
	// loses.
	if err := s.Repo.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, repo.ErrStaleRefreshToken) {
			l.Warn("refresh_failed", "status", 401, "reason", "lost rotation race", "user_id", user.ID)
			return nil, ErrUsedRefreshToken
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	l.Info("refresh_successful", "user_id", user.ID)
	return &SessionResult{User: user.Sanitized(), TokenPair: *pair}, nil
}

// Logout clears the stored refresh credential. Logging out twice is a
// no-op, not an error.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if err := s.Repo.ClearRefreshToken(ctx, userID); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return ErrInternal
	}

	s.publish(ctx, events.TypeUserLoggedOut, &models.User{ID: userID})
	l.Info("logout_successful", "user_id", userID)
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType string, user *models.User) {
	if s.Producer == nil {
		return
	}
	l := logging.FromContext(ctx)
	event := events.Event{
		Type:     eventType,
		UserID:   user.ID.String(),
		Username: user.Username,
		At:       time.Now().UTC(),
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Producer.Publish(pubCtx, event); err != nil {
			l.Warn("event_publish_failed", "type", eventType, "error", err)
		}
	}()
}

func anyBlank(fields ...string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return true
		}
	}
	return false
}
