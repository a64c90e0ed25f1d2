// Package auth authenticates administrators and issues session tokens.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "busbook"

var emailCheck = validator.New()

var ErrInvalidCredentials = errors.Mark(errors.New("invalid email or password"), domain.ErrUnauthorized)

type Claims struct {
	AdminID uuid.UUID `json:"admin_id"`
	Email   string    `json:"email"`
	Role    string    `json:"role"`
	jwt.RegisteredClaims
}

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Admin     domain.Admin `json:"admin"`
}

type Service struct {
	admins store.AdminStore
	secret []byte
	ttl    time.Duration
	logger observability.Logger
	now    func() time.Time
}

func NewService(admins store.AdminStore, secret string, ttl time.Duration, logger observability.Logger) *Service {
	return &Service{admins: admins, secret: []byte(secret), ttl: ttl, logger: logger, now: time.Now}
}

// Authenticate checks the credentials and returns a signed session. Unknown
// emails and wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	admin, err := s.admins.GetAdminByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, &domain.StorageError{Op: "get admin", Err: err}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("email", email).Warn("admin login rejected")
		return Session{}, ErrInvalidCredentials
	}

	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		AdminID: admin.ID,
		Email:   admin.Email,
		Role:    admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   admin.ID.String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, errors.Wrap(err, "sign session token")
	}
	s.logger.WithField("admin_id", admin.ID).Info("admin logged in")
	return Session{Token: token, ExpiresAt: exp, Admin: admin}, nil
}

// ParseToken validates a session token and returns its claims.
func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse session token"), domain.ErrUnauthorized)
	}
	return claims, nil
}

// ProvisionAdmin creates an administrator with a bcrypt password hash.
func (s *Service) ProvisionAdmin(ctx context.Context, email, password, fullName, role string) (domain.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = domain.RoleAdmin
	}
	var verr []error
	if err := emailCheck.Var(email, "required,email"); err != nil {
		verr = append(verr, domain.NewValidationError("email", "must be a valid email"))
	}
	if len(password) < 8 {
		verr = append(verr, domain.NewValidationError("password", "must be at least 8 characters"))
	}
	if role != domain.RoleAdmin && role != domain.RoleSuperAdmin {
		verr = append(verr, domain.NewValidationError("role", "must be admin or super-admin"))
	}
	if err := domain.MergeValidation(verr...); err != nil {
		return domain.Admin{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Admin{}, errors.Wrap(err, "hash password")
	}
	admin := domain.Admin{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.admins.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Admin{}, errors.Wrapf(err, "admin %s already exists", email)
		}
		return domain.Admin{}, &domain.StorageError{Op: "create admin", Err: err}
	}
	s.logger.WithField("admin_id", admin.ID).WithField("role", role).Info("admin provisioned")
	return admin, nil
}

// Bootstrap provisions a super-admin on first run, when no admin exists
// yet. It reports whether one was created.
func (s *Service) Bootstrap(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	n, err := s.admins.CountAdmins(ctx)
	if err != nil {
		return false, &domain.StorageError{Op: "count admins", Err: err}
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.ProvisionAdmin(ctx, email, password, "Administrator", domain.RoleSuperAdmin); err != nil {
		return false, err
	}
	return true, nil
}
