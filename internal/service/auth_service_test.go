package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"otp-auth/internal/domain"
	"otp-auth/internal/repository"
	"otp-auth/internal/upload"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	createErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	id, ok := m.usersByEmail[email]
	m.mu.Unlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) UpdateOTP(_ context.Context, id, otpHash string, otpExpiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.OTPHash = otpHash
	user.OTPExpiresAt = &otpExpiresAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) ConsumeOTP(_ context.Context, id, otpHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok || user.OTPHash == "" || user.OTPHash != otpHash {
		return false, nil
	}
	user.OTPHash = ""
	user.OTPExpiresAt = nil
	m.usersByID[id] = user
	return true, nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.usersByID, id)
	delete(m.usersByEmail, user.Email)
	return nil
}

type mockEmailSender struct {
	calls       int
	lastTo      string
	lastCode    string
	lastExpires time.Time
	err         error
}

func (m *mockEmailSender) SendLoginOTP(_ context.Context, toEmail string, code string, expiresAt time.Time) error {
	m.calls++
	m.lastTo = toEmail
	m.lastCode = code
	m.lastExpires = expiresAt
	return m.err
}

type mockImageStore struct {
	objects   map[string][]byte
	deleted   []string
	saveErr   error
	deleteErr error
}

func newMockImageStore() *mockImageStore {
	return &mockImageStore{objects: make(map[string][]byte)}
}

func (m *mockImageStore) Save(_ context.Context, key, _ string, content io.Reader) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	body, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.objects[key] = body
	return nil
}

func (m *mockImageStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, upload.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (m *mockImageStore) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

type mockLimiter struct {
	allow      bool
	retryAfter time.Duration
	keys       []string
}

func (m *mockLimiter) Allow(_ context.Context, key string) Decision {
	m.keys = append(m.keys, key)
	return Decision{Allowed: m.allow, RetryAfter: m.retryAfter}
}

type authFixture struct {
	svc    *AuthService
	repo   *mockUserRepo
	sender *mockEmailSender
	images *mockImageStore
	tokens *JWTService
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	tokens, err := NewJWTService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new jwt service: %v", err)
	}
	f := authFixture{
		repo:   newMockUserRepo(),
		sender: &mockEmailSender{},
		images: newMockImageStore(),
		tokens: tokens,
	}
	f.svc = NewAuthService(zap.NewNop(), f.repo, f.images, f.sender, tokens, nil)
	return f
}

func (f authFixture) register(t *testing.T, email, password string) domain.UserView {
	t.Helper()
	view, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return view
}

func pngImage(body string) *ImageUpload {
	return &ImageUpload{
		ContentType: "image/png",
		Size:        int64(len(body)),
		Content:     strings.NewReader(body),
	}
}

func TestAuthServiceRegister_StoresHashAndImage(t *testing.T) {
	f := newAuthFixture(t)
	company := "Acme"
	age := 36

	view, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "  Ada  ",
		Email:    " ada@example.com ",
		Password: "secret1",
		Company:  &company,
		Age:      &age,
		Image:    pngImage("png-bytes"),
	})
	if err != nil {
		t.Fatalf("expected register success, got %v", err)
	}
	if view.Name != "Ada" || view.Email != "ada@example.com" {
		t.Fatalf("expected trimmed name and email, got %+v", view)
	}
	if view.ProfileImage == nil || !strings.HasPrefix(*view.ProfileImage, upload.Prefix+"/") {
		t.Fatalf("expected profile image key, got %v", view.ProfileImage)
	}
	if string(f.images.objects[*view.ProfileImage]) != "png-bytes" {
		t.Fatalf("expected image content stored under the key")
	}

	stored, err := f.repo.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("expected stored user, got %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "secret1" {
		t.Fatalf("expected bcrypt hash to be stored")
	}
	if !checkPassword(stored.PasswordHash, "secret1") {
		t.Fatalf("expected stored hash to match the password")
	}
	if stored.HasPendingOTP() {
		t.Fatalf("registration must not issue an otp")
	}
	if f.sender.calls != 0 {
		t.Fatalf("registration must not send email")
	}
}

func TestAuthServiceRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com", "secret1")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Other",
		Email:    "ada@example.com",
		Password: "another1",
		Image:    pngImage("png"),
	})
	if !errors.Is(err, ErrEmailTaken) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if len(f.images.objects) != 0 {
		t.Fatalf("expected no image stored for a rejected registration")
	}
}

func TestAuthServiceRegister_EmailIsCaseSensitive(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com", "secret1")
	f.register(t, "Ada@example.com", "secret1")
}

func TestAuthServiceRegister_Validation(t *testing.T) {
	negative := -1
	cases := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{"missing name", RegisterInput{Name: " ", Email: "a@b.co", Password: "secret1"}, ErrNameRequired},
		{"invalid email", RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"}, ErrInvalidEmail},
		{"short password", RegisterInput{Name: "A", Email: "a@b.co", Password: "12345"}, ErrPasswordTooShort},
		{"negative age", RegisterInput{Name: "A", Email: "a@b.co", Password: "secret1", Age: &negative}, ErrInvalidAge},
		{"gif image", RegisterInput{Name: "A", Email: "a@b.co", Password: "secret1", Image: &ImageUpload{
			ContentType: "image/gif", Size: 3, Content: strings.NewReader("gif"),
		}}, ErrImageType},
		{"image too large", RegisterInput{Name: "A", Email: "a@b.co", Password: "secret1", Image: &ImageUpload{
			ContentType: "image/png", Size: MaxImageSize + 1, Content: strings.NewReader("x"),
		}}, ErrImageTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAuthFixture(t)
			_, err := f.svc.Register(context.Background(), tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected a validation error, got %v", err)
			}
			if len(f.repo.usersByID) != 0 || len(f.images.objects) != 0 {
				t.Fatalf("expected nothing persisted")
			}
		})
	}
}

func TestAuthServiceRegister_ImageLargerThanDeclared(t *testing.T) {
	f := newAuthFixture(t)
	body := strings.Repeat("x", MaxImageSize+10)

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret1",
		Image:    &ImageUpload{ContentType: "image/png", Size: 10, Content: strings.NewReader(body)},
	})
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
	if len(f.images.deleted) != 1 {
		t.Fatalf("expected partial image to be discarded")
	}
	if _, err := f.repo.GetByEmail(context.Background(), "ada@example.com"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected no user stored")
	}
}

func TestAuthServiceRegister_DiscardsImageWhenCreateFails(t *testing.T) {
	f := newAuthFixture(t)
	f.repo.createErr = errors.New("db down")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret1",
		Image:    pngImage("png"),
	})
	if !errors.Is(err, ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(f.images.objects) != 0 || len(f.images.deleted) != 1 {
		t.Fatalf("expected stored image to be discarded, objects=%d deleted=%v", len(f.images.objects), f.images.deleted)
	}
}

func TestAuthServiceRegister_ConstraintRaceMapsToConflict(t *testing.T) {
	f := newAuthFixture(t)
	f.repo.createErr = repository.ErrDuplicateEmail

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthServiceLogin_SendsOTP(t *testing.T) {
	f := newAuthFixture(t)
	view := f.register(t, "ada@example.com", "secret1")

	start := time.Now().UTC()
	if err := f.svc.Login(context.Background(), "ada@example.com", "secret1"); err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if f.sender.lastTo != "ada@example.com" {
		t.Fatalf("expected email to ada@example.com, got %s", f.sender.lastTo)
	}
	if !isValidOTPCode(f.sender.lastCode) {
		t.Fatalf("expected 6-digit code, got %q", f.sender.lastCode)
	}
	if f.sender.lastExpires.Before(start.Add(9*time.Minute)) || f.sender.lastExpires.After(start.Add(11*time.Minute)) {
		t.Fatalf("expected otp expiry around 10 minutes, got %v", f.sender.lastExpires)
	}

	stored, _ := f.repo.GetByID(context.Background(), view.ID)
	if !stored.HasPendingOTP() {
		t.Fatalf("expected otp to be stored")
	}
	if strings.Contains(stored.OTPHash, f.sender.lastCode) {
		t.Fatalf("expected otp to be stored hashed")
	}
}

func TestAuthServiceLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com", "secret1")

	errUnknown := f.svc.Login(context.Background(), "nobody@example.com", "secret1")
	errWrong := f.svc.Login(context.Background(), "ada@example.com", "wrong-password")
	errEmpty := f.svc.Login(context.Background(), "ada@example.com", "")

	for _, err := range []error{errUnknown, errWrong, errEmpty} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("expected identical messages, got %q and %q", errUnknown, errWrong)
	}
	if f.sender.calls != 0 {
		t.Fatalf("expected no email for failed logins")
	}
	stored, _ := f.repo.GetByEmail(context.Background(), "ada@example.com")
	if stored.HasPendingOTP() {
		t.Fatalf("expected no otp issued for failed logins")
	}
}

func TestAuthServiceLogin_SendFailureKeepsOTP(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com", "secret1")
	f.sender.err = errors.New("smtp down")

	err := f.svc.Login(context.Background(), "ada@example.com", "secret1")
	if !errors.Is(err, ErrEmailSendFailure) {
		t.Fatalf("expected ErrEmailSendFailure, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("send failure must be distinguishable from bad credentials")
	}

	if _, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", f.sender.lastCode); err != nil {
		t.Fatalf("expected stored otp to remain usable, got %v", err)
	}
}

func TestAuthServiceLogin_RateLimited(t *testing.T) {
	f := newAuthFixture(t)
	view := f.register(t, "ada@example.com", "secret1")
	limiter := &mockLimiter{allow: false, retryAfter: 3 * time.Minute}
	f.svc.otpLimiter = limiter

	err := f.svc.Login(context.Background(), "ada@example.com", "secret1")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var limitErr *LimitError
	if !errors.As(err, &limitErr) || limitErr.RetryAfter != 3*time.Minute {
		t.Fatalf("expected retry hint of 3m, got %v", err)
	}
	if f.sender.calls != 0 {
		t.Fatalf("expected no email when rate limited")
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != view.ID {
		t.Fatalf("expected limiter keyed by user id, got %v", limiter.keys)
	}
}

func TestAuthServiceVerifyOTP_IssuesSessionAndConsumesCode(t *testing.T) {
	f := newAuthFixture(t)
	view := f.register(t, "ada@example.com", "secret1")
	if err := f.svc.Login(context.Background(), "ada@example.com", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	code := f.sender.lastCode

	result, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", code)
	if err != nil {
		t.Fatalf("expected verify success, got %v", err)
	}
	if result.User.ID != view.ID {
		t.Fatalf("expected user %s, got %s", view.ID, result.User.ID)
	}
	claims, err := f.tokens.ParseAccessToken(result.Token)
	if err != nil || claims.UserID != view.ID {
		t.Fatalf("expected token bound to user, claims=%+v err=%v", claims, err)
	}

	stored, _ := f.repo.GetByID(context.Background(), view.ID)
	if stored.HasPendingOTP() {
		t.Fatalf("expected otp cleared after verification")
	}

	if _, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", code); !errors.Is(err, ErrInvalidOrExpiredOTP) {
		t.Fatalf("expected reused code to be rejected, got %v", err)
	}
}

func TestAuthServiceVerifyOTP_WrongCodeClearsOTP(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com", "secret1")
	_ = f.svc.Login(context.Background(), "ada@example.com", "secret1")
	code := f.sender.lastCode

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if _, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", wrong); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
	if _, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", code); !errors.Is(err, ErrOTPNotRequested) {
		t.Fatalf("expected correct code to fail after a wrong attempt, got %v", err)
	}
}

func TestAuthServiceVerifyOTP_Expired(t *testing.T) {
	f := newAuthFixture(t)
	view := f.register(t, "ada@example.com", "secret1")
	_ = f.svc.Login(context.Background(), "ada@example.com", "secret1")

	f.svc.now = func() time.Time { return time.Now().Add(otpTTL) }
	_, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", f.sender.lastCode)
	if !errors.Is(err, ErrOTPExpired) || !errors.Is(err, ErrInvalidOrExpiredOTP) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	stored, _ := f.repo.GetByID(context.Background(), view.ID)
	if stored.HasPendingOTP() {
		t.Fatalf("expected expired otp cleared")
	}
}

func TestAuthServiceVerifyOTP_NotRequestedAndUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com", "secret1")

	if _, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", "123456"); !errors.Is(err, ErrOTPNotRequested) {
		t.Fatalf("expected ErrOTPNotRequested, got %v", err)
	}
	if _, err := f.svc.VerifyOTP(context.Background(), "nobody@example.com", "123456"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthServiceVerifyOTP_NewLoginReplacesCode(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com", "secret1")

	_ = f.svc.Login(context.Background(), "ada@example.com", "secret1")
	first := f.sender.lastCode
	_ = f.svc.Login(context.Background(), "ada@example.com", "secret1")
	second := f.sender.lastCode

	if first != second {
		if _, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", first); !errors.Is(err, ErrOTPInvalid) {
			t.Fatalf("expected superseded code rejected, got %v", err)
		}
		return
	}
	if _, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", second); err != nil {
		t.Fatalf("expected latest code accepted, got %v", err)
	}
}

func TestAuthServiceVerifyOTP_ConcurrentAttemptsSucceedOnce(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com", "secret1")
	_ = f.svc.Login(context.Background(), "ada@example.com", "secret1")
	code := f.sender.lastCode

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.VerifyOTP(context.Background(), "ada@example.com", code); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", successes)
	}
}

func TestAuthServiceResolveSession(t *testing.T) {
	f := newAuthFixture(t)
	view := f.register(t, "ada@example.com", "secret1")
	token, _, err := f.tokens.GenerateAccessToken(view.ID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	got, err := f.svc.ResolveSession(context.Background(), token)
	if err != nil || got.ID != view.ID {
		t.Fatalf("expected session user %s, got %+v err=%v", view.ID, got, err)
	}

	if _, err := f.svc.ResolveSession(context.Background(), ""); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if _, err := f.svc.ResolveSession(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	f.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, _ := f.tokens.GenerateAccessToken(view.ID)
	f.tokens.now = time.Now
	if _, err := f.svc.ResolveSession(context.Background(), stale); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	if err := f.svc.DeleteAccount(context.Background(), view.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if _, err := f.svc.ResolveSession(context.Background(), token); !errors.Is(err, ErrSessionUserGone) {
		t.Fatalf("expected ErrSessionUserGone, got %v", err)
	}
}

func TestAuthServiceGetProfile(t *testing.T) {
	f := newAuthFixture(t)
	view := f.register(t, "ada@example.com", "secret1")

	got, err := f.svc.GetProfile(context.Background(), view.ID)
	if err != nil || got.Email != "ada@example.com" {
		t.Fatalf("expected profile, got %+v err=%v", got, err)
	}
	if _, err := f.svc.GetProfile(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthServiceDeleteAccount_RemovesImageAndUser(t *testing.T) {
	f := newAuthFixture(t)
	view, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret1",
		Image:    pngImage("png"),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := f.svc.DeleteAccount(context.Background(), view.ID); err != nil {
		t.Fatalf("expected delete success, got %v", err)
	}
	if len(f.images.objects) != 0 {
		t.Fatalf("expected profile image removed")
	}
	if _, err := f.svc.GetProfile(context.Background(), view.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user removed, got %v", err)
	}
	if err := f.svc.Login(context.Background(), "ada@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected login to fail after deletion, got %v", err)
	}
	if err := f.svc.DeleteAccount(context.Background(), view.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func TestAuthServiceDeleteAccount_ImageFailureKeepsUser(t *testing.T) {
	f := newAuthFixture(t)
	view, _ := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret1",
		Image:    pngImage("png"),
	})
	f.images.deleteErr = errors.New("bucket unavailable")

	if err := f.svc.DeleteAccount(context.Background(), view.ID); !errors.Is(err, ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if _, err := f.svc.GetProfile(context.Background(), view.ID); err != nil {
		t.Fatalf("expected user kept when image removal fails, got %v", err)
	}
}

func TestLimitedReader(t *testing.T) {
	r := &limitedReader{r: strings.NewReader("abcdef"), remaining: 6}
	body, err := io.ReadAll(r)
	if err != nil || string(body) != "abcdef" {
		t.Fatalf("expected exact-size content to pass, got %q err=%v", body, err)
	}

	r = &limitedReader{r: strings.NewReader("abcdefg"), remaining: 6}
	if _, err := io.ReadAll(r); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}
