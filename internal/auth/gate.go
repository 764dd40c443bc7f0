package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	appErrors "github.com/fatali-fataliyev/migasto/errors"
	"github.com/fatali-fataliyev/migasto/internal/contextutil"
	"github.com/fatali-fataliyev/migasto/logging"
)

const bearerScheme = "Bearer"

var errInvalidCredentials = appErrors.New(appErrors.ErrAuth, "email o password incorrectos")

type UserStorage interface {
	SaveUser(ctx context.Context, user User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

type LoginResult struct {
	Token string
	User  PublicUser
}

// Gate registers identities, issues tokens and checks bearer headers.
type Gate struct {
	storage UserStorage
	tokens  *TokenManager
	hasher  PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewGate(storage UserStorage, tokens *TokenManager, hasher PasswordHasher) *Gate {
	return &Gate{
		storage: storage,
		tokens:  tokens,
		hasher:  hasher,
	}
}

func (g *Gate) Register(ctx context.Context, newUser NewUser) (PublicUser, error) {
	if err := newUser.ValidateUserFields(); err != nil {
		return PublicUser{}, err
	}

	email := NormalizeEmail(newUser.Email)
	_, err := g.storage.GetUserByEmail(ctx, email)
	if err == nil {
		return PublicUser{}, appErrors.New(appErrors.ErrConflict, "el email ya está registrado")
	}
	if !errors.Is(err, appErrors.ErrNotFound) {
		return PublicUser{}, fmt.Errorf("failed to check email availability: %w", err)
	}

	hashedPassword, err := g.hasher.Hash(newUser.PasswordPlain)
	if err != nil {
		return PublicUser{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := g.storage.SaveUser(ctx, User{
		Name:           strings.TrimSpace(newUser.Name),
		Email:          email,
		PasswordHashed: hashedPassword,
	})
	if err != nil {
		return PublicUser{}, fmt.Errorf("failed to register user: %w", err)
	}
	return user.Public(), nil
}

// Login answers unknown emails and wrong passwords with the same error.
func (g *Gate) Login(ctx context.Context, credentials UserCredentialsPure) (LoginResult, error) {
	if err := credentials.Validate(); err != nil {
		return LoginResult{}, err
	}

	traceID := contextutil.TraceIDFromContext(ctx)
	user, err := g.storage.GetUserByEmail(ctx, NormalizeEmail(credentials.Email))
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			// burn a bcrypt comparison so both failures take the same time
			g.hasher.Matches(g.dummy(), credentials.PasswordPlain)
			logging.Logger.Debugf("[TraceID=%s] | login rejected: unknown email", traceID)
			return LoginResult{}, errInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if !g.hasher.Matches(user.PasswordHashed, credentials.PasswordPlain) {
		logging.Logger.Debugf("[TraceID=%s] | login rejected: wrong password for user %d", traceID, user.ID)
		return LoginResult{}, errInvalidCredentials
	}

	token, err := g.tokens.Issue(user.Public())
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to issue token: %w", err)
	}
	return LoginResult{Token: token, User: user.Public()}, nil
}

// Authenticate checks an Authorization header value of the form "Bearer <token>".
func (g *Gate) Authenticate(header string) (contextutil.Identity, error) {
	if header == "" {
		return contextutil.Identity{}, appErrors.New(appErrors.ErrAuth, "el encabezado Authorization es obligatorio")
	}

	scheme, token, _ := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, bearerScheme) {
		return contextutil.Identity{}, appErrors.New(appErrors.ErrAuth, "el encabezado Authorization debe usar el esquema Bearer")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return contextutil.Identity{}, appErrors.New(appErrors.ErrAuth, "falta el token")
	}

	claims, err := g.tokens.Parse(token)
	if err != nil {
		return contextutil.Identity{}, err
	}
	return contextutil.Identity{
		ID:    claims.ID,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}

func (g *Gate) dummy() string {
	g.dummyOnce.Do(func() {
		hashed, err := g.hasher.Hash("migasto-dummy-password")
		if err != nil {
			logging.Logger.Warnf("failed to prepare dummy password hash: %v", err)
			return
		}
		g.dummyHash = hashed
	})
	return g.dummyHash
}
