package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/loanrecovery/backend/internal/db"
	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrSessionInactive    = errors.New("session_inactive")
)

type Repository interface {
	CreateUser(ctx context.Context, in db.CreateUserInput) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUserByID(ctx context.Context, userID string) (*db.User, error)
	CreateSession(ctx context.Context, userID, userAgent, ipAddress string, expiresAt time.Time) (*db.Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (*db.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

type Service struct {
	repo       Repository
	jwt        *JWTManager
	accessTTL  time.Duration
	bcryptCost int
	now        func() time.Time
}

type AuthTokens struct {
	AccessToken string
	SessionID   string
	User        *db.User
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func NewService(repo Repository, jwt *JWTManager, accessTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		jwt:        jwt,
		accessTTL:  accessTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput, userAgent, ipAddress string) (*AuthTokens, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return nil, errs.Validation("name_required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, errs.Validation("invalid_email")
	}
	if len(in.Password) < minPasswordLength {
		return nil, errs.Validation("password_too_short")
	}
	role, ok := identity.ParseRole(strings.TrimSpace(in.Role))
	if !ok {
		return nil, errs.Validation("invalid_role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	create := db.CreateUserInput{
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Role:         role,
	}
	var user *db.User
	for attempt := 0; attempt < 3; attempt++ {
		if role == identity.RoleAgent {
			code := s.agentCode(attempt)
			create.AgentCode = &code
		}
		user, err = s.repo.CreateUser(ctx, create)
		if err == nil || errs.Code(err, "") != "agent_code_taken" {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	return s.issue(ctx, user, userAgent, ipAddress)
}

// agentCode is AGT followed by the current unix milliseconds.
func (s *Service) agentCode(attempt int) string {
	return "AGT" + strconv.FormatInt(s.now().UnixMilli()+int64(attempt), 10)
}

func (s *Service) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*AuthTokens, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user, userAgent, ipAddress)
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	return s.repo.RevokeSession(ctx, sessionID)
}

func (s *Service) Me(ctx context.Context, userID string) (*db.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// SessionActive fails when the session behind an access token was revoked or
// has expired.
func (s *Service) SessionActive(ctx context.Context, sessionID string) error {
	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return ErrSessionInactive
		}
		return err
	}
	if session.RevokedAt != nil || s.now().After(session.ExpiresAt) {
		return ErrSessionInactive
	}
	return nil
}

func (s *Service) issue(ctx context.Context, user *db.User, userAgent, ipAddress string) (*AuthTokens, error) {
	session, err := s.repo.CreateSession(ctx, user.ID, userAgent, ipAddress, s.now().Add(s.accessTTL))
	if err != nil {
		return nil, err
	}
	token, err := s.jwt.Mint(user.ID, session.ID, user.Role, s.accessTTL)
	if err != nil {
		return nil, err
	}
	return &AuthTokens{AccessToken: token, SessionID: session.ID, User: user}, nil
}

func ClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
