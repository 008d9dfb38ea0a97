package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"otp-auth/internal/domain"
	"otp-auth/internal/email"
	"otp-auth/internal/repository"
	"otp-auth/internal/upload"
)

const (
	// MaxImageSize es el tamaño maximo de la imagen de perfil (2 MiB).
	MaxImageSize = 2 << 20

	defaultOTPIssueLimit = 5
	imageCleanupTimeout  = 5 * time.Second
)

var emailPattern = regexp.MustCompile(`.+@.+\..+`)

// AuthService coordina registro, login con OTP, sesion y baja de cuentas.
type AuthService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	images      upload.Store
	emailSender email.Sender
	tokens      *JWTService
	otpLimiter  RateLimiter
	now         func() time.Time
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	images upload.Store,
	emailSender email.Sender,
	tokens *JWTService,
	otpLimiter RateLimiter,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if otpLimiter == nil {
		otpLimiter = NewMemoryRateLimiter(otpTTL, defaultOTPIssueLimit)
	}
	return &AuthService{
		logger:      logger,
		users:       users,
		images:      images,
		emailSender: emailSender,
		tokens:      tokens,
		otpLimiter:  otpLimiter,
		now:         time.Now,
	}
}

// ImageUpload es una imagen ya aceptada por la capa HTTP, pendiente de guardar.
type ImageUpload struct {
	ContentType string
	Size        int64
	Content     io.Reader
}

type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Company     *string
	Age         *int
	DateOfBirth *time.Time
	Image       *ImageUpload
}

// AuthResult es el resultado de una verificacion de OTP correcta.
type AuthResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      domain.UserView `json:"user"`
}

// Register crea la cuenta. No emite token: el usuario debe pasar por login y OTP.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.UserView, error) {
	if s.users == nil {
		return domain.UserView{}, errors.New("auth service not configured")
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if err := validateRegistration(input); err != nil {
		return domain.UserView{}, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return domain.UserView{}, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.UserView{}, dependency("lookup user", err)
	}

	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return domain.UserView{}, err
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Company:      input.Company,
		Age:          input.Age,
		DateOfBirth:  input.DateOfBirth,
		CreatedAt:    now,
	}

	if input.Image != nil {
		if s.images == nil {
			return domain.UserView{}, errors.New("image store not configured")
		}
		key := upload.NewKey(input.Image.ContentType, now)
		content := &limitedReader{r: input.Image.Content, remaining: MaxImageSize}
		if err := s.images.Save(ctx, key, input.Image.ContentType, content); err != nil {
			s.discardImage(ctx, key)
			if errors.Is(err, ErrImageTooLarge) {
				return domain.UserView{}, ErrImageTooLarge
			}
			return domain.UserView{}, dependency("store profile image", err)
		}
		user.ProfileImagePath = &key
	}

	if err := s.users.Create(ctx, user); err != nil {
		if user.ProfileImagePath != nil {
			s.discardImage(ctx, *user.ProfileImagePath)
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.UserView{}, ErrEmailTaken
		}
		return domain.UserView{}, dependency("create user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user.View(), nil
}

// Login valida credenciales y envia un OTP nuevo al email del usuario.
// Un email desconocido y una contraseña incorrecta devuelven el mismo error.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}

	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" || password == "" {
		return ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			checkPassword("", password)
			return ErrInvalidCredentials
		}
		return dependency("lookup user", err)
	}
	if !checkPassword(user.PasswordHash, password) {
		return ErrInvalidCredentials
	}

	if d := s.otpLimiter.Allow(ctx, user.ID); !d.Allowed {
		return &LimitError{RetryAfter: d.RetryAfter}
	}

	code, otpHash, expiresAt, err := generateOTP(s.now())
	if err != nil {
		return err
	}
	if err := s.users.UpdateOTP(ctx, user.ID, otpHash, expiresAt); err != nil {
		return dependency("store otp", err)
	}

	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	// El OTP queda vigente aunque el envio falle; un login nuevo lo reemplaza.
	if err := s.emailSender.SendLoginOTP(ctx, user.Email, code, expiresAt); err != nil {
		s.logger.Warn("send login otp failed", zap.Error(err), zap.String("user_id", user.ID))
		return fmt.Errorf("%w: %w", ErrEmailSendFailure, err)
	}
	return nil
}

// VerifyOTP consume el OTP pendiente y, si coincide y no vencio, emite un token de sesion.
// Cualquier intento, correcto o no, invalida el codigo.
func (s *AuthService) VerifyOTP(ctx context.Context, emailAddr, code string) (AuthResult, error) {
	if s.users == nil || s.tokens == nil {
		return AuthResult{}, errors.New("auth service not configured")
	}

	emailAddr = strings.TrimSpace(emailAddr)
	code = strings.TrimSpace(code)

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, dependency("lookup user", err)
	}
	if !user.HasPendingOTP() {
		return AuthResult{}, ErrOTPNotRequested
	}

	var reason error
	switch {
	case !s.now().UTC().Before(*user.OTPExpiresAt):
		reason = ErrOTPExpired
	case !isValidOTPCode(code) || !verifyOTP(code, user.OTPHash):
		reason = ErrOTPInvalid
	}

	consumed, err := s.users.ConsumeOTP(ctx, user.ID, user.OTPHash)
	if err != nil {
		return AuthResult{}, dependency("clear otp", err)
	}
	if reason != nil {
		s.logger.Info("otp rejected", zap.String("user_id", user.ID), zap.String("reason", reason.Error()))
		return AuthResult{}, reason
	}
	if !consumed {
		// Otro intento concurrente ya consumio este codigo, o un login lo reemplazo.
		return AuthResult{}, ErrOTPInvalid
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	user.OTPHash = ""
	user.OTPExpiresAt = nil
	return AuthResult{Token: token, ExpiresAt: expiresAt, User: user.View()}, nil
}

// GetProfile devuelve la vista sanitizada del usuario autenticado.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (domain.UserView, error) {
	if s.users == nil {
		return domain.UserView{}, errors.New("auth service not configured")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserView{}, ErrUserNotFound
		}
		return domain.UserView{}, dependency("lookup user", err)
	}
	return user.View(), nil
}

// DeleteAccount borra la imagen de perfil, si existe, y luego el registro.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if s.users == nil {
		return errors.New("auth service not configured")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return dependency("lookup user", err)
	}

	if user.ProfileImagePath != nil && *user.ProfileImagePath != "" {
		if s.images == nil {
			return errors.New("image store not configured")
		}
		if err := s.images.Delete(ctx, *user.ProfileImagePath); err != nil && !errors.Is(err, upload.ErrNotFound) {
			return dependency("delete profile image", err)
		}
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return dependency("delete user", err)
	}
	s.logger.Info("account deleted", zap.String("user_id", user.ID))
	return nil
}

// ResolveSession valida el bearer token y lo resuelve a un usuario existente.
// Devuelve ErrTokenMissing, ErrTokenExpired, ErrTokenInvalid o ErrSessionUserGone.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (domain.UserView, error) {
	if s.users == nil || s.tokens == nil {
		return domain.UserView{}, errors.New("auth service not configured")
	}
	claims, err := s.tokens.ParseAccessToken(token)
	if err != nil {
		return domain.UserView{}, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserView{}, ErrSessionUserGone
		}
		return domain.UserView{}, dependency("lookup session user", err)
	}
	return user.View(), nil
}

// discardImage se ejecuta aunque el request se haya cancelado.
func (s *AuthService) discardImage(ctx context.Context, key string) {
	if s.images == nil {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), imageCleanupTimeout)
	defer cancel()
	if err := s.images.Delete(cleanupCtx, key); err != nil {
		s.logger.Error("discard orphaned profile image", zap.String("key", key), zap.Error(err))
	}
}

func validateRegistration(input RegisterInput) error {
	if input.Name == "" {
		return ErrNameRequired
	}
	if !emailPattern.MatchString(input.Email) {
		return ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if input.Age != nil && *input.Age < 0 {
		return ErrInvalidAge
	}
	if img := input.Image; img != nil {
		if !upload.AllowedContentType(img.ContentType) {
			return ErrImageType
		}
		if img.Size > MaxImageSize {
			return ErrImageTooLarge
		}
		if img.Content == nil {
			return ErrImageType
		}
	}
	return nil
}

// limitedReader corta la copia con ErrImageTooLarge si el contenido supera el limite.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrImageTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrImageTooLarge
	}
	return n, err
}
