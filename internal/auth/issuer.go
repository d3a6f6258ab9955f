package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenPair carries a fresh access/refresh token set. Neither token is
// stored server-side; validity is entirely signature plus expiry.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Issuer produces token pairs for authenticated users. Roles and permissions
// are resolved at issuance, so role changes take effect on the next
// login/refresh, never retroactively on outstanding access tokens.
type Issuer struct {
	codec      *Codec
	resolver   *PermissionResolver
	store      DirectoryStore
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// IssuerOption configures Issuer behavior.
type IssuerOption func(*Issuer)

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.refreshTTL = ttl
		}
	}
}

func NewIssuer(codec *Codec, store DirectoryStore, opts ...IssuerOption) (*Issuer, error) {
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	if store == nil {
		return nil, errors.New("auth: directory store is required")
	}
	issuer := &Issuer{
		codec:      codec,
		resolver:   NewPermissionResolver(store),
		store:      store,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// Login verifies credentials and issues a fresh pair.
func (i *Issuer) Login(ctx context.Context, email, password string) (TokenPair, Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	user, err := i.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Identity{}, ErrInvalidCredentials
		}
		return TokenPair{}, Identity{}, err
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	return i.issue(ctx, user)
}

// Refresh validates a refresh token and issues a new pair. Roles and
// permissions are re-resolved here, which is where the staleness window of
// the previous token ends.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (TokenPair, Identity, error) {
	claims, err := i.codec.Parse(refreshToken)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	user, err := i.store.FindUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Identity{}, ErrInvalidCredentials
		}
		return TokenPair{}, Identity{}, err
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	return i.issue(ctx, user)
}

func (i *Issuer) issue(ctx context.Context, user *User) (TokenPair, Identity, error) {
	roles, err := i.resolver.Roles(ctx, user.ID)
	if err != nil {
		return TokenPair{}, Identity{}, fmt.Errorf("resolve roles: %w", err)
	}
	// A token with no roles at all is never issued; users without
	// assignments act under the implicit USER role.
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}
	perms, err := i.resolver.PermissionsFor(ctx, roles)
	if err != nil {
		return TokenPair{}, Identity{}, fmt.Errorf("resolve permissions: %w", err)
	}

	identity := Identity{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Roles:       roles,
		Permissions: perms,
	}

	accessToken, accessExp, err := i.codec.Issue(identity, i.accessTTL)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	refreshToken, refreshExp, err := i.codec.Issue(identity, i.refreshTTL)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, identity, nil
}
