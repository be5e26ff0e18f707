package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

const tokenIssuer = "apotekku"

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveAccount    = errors.New("account is inactive")
	errInvalidToken       = errors.New("invalid or expired token")
)

// AuthManager issues and verifies bearer tokens and checks the manager PIN.
// Accounts live in the user store; the manager keeps a hashed copy so a login
// does not need a round trip when the account is already known.
type AuthManager struct {
	mu         sync.RWMutex
	secret     []byte
	tokenTTL   time.Duration
	managerPIN string
	users      UserStore
	accounts   map[string]account
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type account struct {
	hash    string
	role    string
	active  bool
	created time.Time
}

type tokenClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(ctx context.Context, secret string, tokenTTL time.Duration, managerPIN string, users UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	// An unset PIN leaves the stored value unhashed, which never verifies.
	pinHash := ""
	if pin := strings.TrimSpace(managerPIN); pin != "" {
		if hashed, err := hashPassword(pin); err == nil {
			pinHash = hashed
		}
	}

	manager := &AuthManager{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		managerPIN: pinHash,
		users:      users,
		accounts:   make(map[string]account),
	}
	manager.reload(ctx)
	return manager
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	acct, ok := a.lookup(username)
	if !ok {
		a.reload(ctx)
		acct, ok = a.lookup(username)
	}
	if !ok || !verifyPassword(acct.hash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !acct.active {
		return domain.LoginResponse{}, errInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, acct.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        acct.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	claims := &tokenClaims{}
	token, err := jwtlib.ParseWithClaims(raw, claims, func(*jwtlib.Token) (any, error) {
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errInvalidToken
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}

// ValidateManagerPIN reports whether pin matches the configured manager PIN.
func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	input := strings.TrimSpace(pin)
	if input == "" || !isPasswordHash(a.managerPIN) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.managerPIN), []byte(input)) == nil
}

func (a *AuthManager) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.CashierUser{}, store.Invalid("username", "must be at least 4 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.CashierUser{}, store.Invalid("username", "must not contain spaces")
	}
	if len(strings.TrimSpace(req.Password)) < 6 {
		return domain.CashierUser{}, store.Invalid("password", "must be at least 6 characters")
	}

	a.reload(ctx)
	if _, exists := a.lookup(username); exists {
		return domain.CashierUser{}, fmt.Errorf("%w: username already exists", store.ErrConflict)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.CashierUser{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	if a.users != nil {
		if err := a.users.CreateUser(ctx, domain.UserAccount{
			Username:  username,
			Password:  hash,
			Role:      domain.RoleCashier,
			Active:    true,
			CreatedAt: now,
		}); err != nil {
			return domain.CashierUser{}, err
		}
	}

	a.mu.Lock()
	a.accounts[username] = account{hash: hash, role: domain.RoleCashier, active: true, created: now}
	a.mu.Unlock()

	return domain.CashierUser{Username: username, Role: domain.RoleCashier, Active: true, CreatedAt: now}, nil
}

func (a *AuthManager) ListCashiers(ctx context.Context) []domain.CashierUser {
	a.reload(ctx)

	a.mu.RLock()
	result := make([]domain.CashierUser, 0, len(a.accounts))
	for username, acct := range a.accounts {
		if acct.role != domain.RoleCashier {
			continue
		}
		result = append(result, domain.CashierUser{
			Username:  username,
			Role:      acct.role,
			Active:    acct.active,
			CreatedAt: acct.created,
		})
	}
	a.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result
}

func (a *AuthManager) lookup(username string) (account, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acct, ok := a.accounts[username]
	return acct, ok
}

// reload refreshes the account cache from the user store. Plain-text passwords
// found in the store are replaced with bcrypt hashes.
func (a *AuthManager) reload(ctx context.Context) {
	if a.users == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	users, err := a.users.ListUsers(ctx)
	if err != nil || len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" {
			continue
		}
		hash := user.Password
		if !isPasswordHash(hash) {
			rehashed, err := hashPassword(hash)
			if err != nil {
				continue
			}
			hash = rehashed
			_ = a.users.UpdateUserPassword(ctx, username, hash)
		}
		a.accounts[username] = account{hash: hash, role: user.Role, active: user.Active, created: user.CreatedAt}
	}
}

func verifyPassword(hash string, input string) bool {
	if strings.TrimSpace(input) == "" || !isPasswordHash(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
