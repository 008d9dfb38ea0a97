package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"otp-auth/internal/domain"
)

// ErrBusy rechaza una operacion mientras otra sigue en curso.
var ErrBusy = errors.New("another session operation is in progress")

// Rutas a las que se redirige tras cada transicion.
const (
	PathLogin     = "/login"
	PathVerifyOTP = "/verify-otp"
	PathDashboard = "/dashboard"
)

// State es la vista del estado de sesion en un momento dado.
type State struct {
	User            *domain.UserView
	Token           string
	IsAuthenticated bool
	Loading         bool
	Error           string
}

// Navigator recibe las redirecciones del SessionManager.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapta una funcion a Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Store     SessionStore
	Navigator Navigator
	Logger    *zap.Logger
	// Transport base; nil usa http.DefaultTransport.
	Transport http.RoundTripper
}

// SessionManager es la unica fuente de verdad de la sesion en el cliente y el
// unico que escribe el par token/usuario persistido.
type SessionManager struct {
	mu     sync.Mutex
	state  State
	store  SessionStore
	api    *API
	nav    Navigator
	logger *zap.Logger
}

func NewSessionManager(opts Options) *SessionManager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = NewMemorySessionStore()
	}
	if opts.Navigator == nil {
		opts.Navigator = NavigatorFunc(func(string) {})
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	m := &SessionManager{
		state:  State{Loading: true},
		store:  opts.Store,
		nav:    opts.Navigator,
		logger: opts.Logger,
	}
	m.api = NewAPI(opts.BaseURL, &http.Client{
		Timeout:   opts.Timeout,
		Transport: &bearerTransport{base: opts.Transport, token: m.Token},
	})
	return m
}

// State devuelve una copia del estado actual.
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Token devuelve el token vigente o "".
func (m *SessionManager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Token
}

// Bootstrap lee la sesion persistida. Confia en lo leido sin consultar al backend.
func (m *SessionManager) Bootstrap(ctx context.Context) {
	token, tokenErr := m.store.Get(ctx, tokenKey)
	rawUser, userErr := m.store.Get(ctx, userKey)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}

	if err := errors.Join(tokenErr, userErr); err != nil {
		m.logger.Warn("read persisted session failed", zap.Error(err))
		return
	}
	if len(token) == 0 && len(rawUser) == 0 {
		return
	}
	if len(token) == 0 || len(rawUser) == 0 {
		m.logger.Warn("discarding incomplete persisted session")
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn("clear persisted session failed", zap.Error(err))
		}
		return
	}

	var user domain.UserView
	if err := json.Unmarshal(rawUser, &user); err != nil {
		m.logger.Warn("discarding unreadable persisted session", zap.Error(err))
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn("clear persisted session failed", zap.Error(err))
		}
		return
	}
	m.state = State{User: &user, Token: string(token), IsAuthenticated: true}
}

// Login pide el OTP. No autentica: en caso de exito redirige a la pantalla del OTP.
func (m *SessionManager) Login(ctx context.Context, email, password string) (string, error) {
	if err := ValidateLogin(email, password); err != nil {
		return "", err
	}
	if err := m.begin(); err != nil {
		return "", err
	}
	msg, err := m.api.Login(ctx, email, password)
	m.end(err, "Login failed. Please try again.")
	if err != nil {
		return "", err
	}
	m.nav.Navigate(PathVerifyOTP + "?email=" + url.QueryEscape(email))
	return msg, nil
}

// VerifyOTP canjea el codigo por un token y persiste la sesion.
func (m *SessionManager) VerifyOTP(ctx context.Context, email, code string) error {
	if err := ValidateOTP(email, code); err != nil {
		return err
	}
	if err := m.begin(); err != nil {
		return err
	}

	resp, err := m.api.VerifyOTP(ctx, email, strings.TrimSpace(code))
	if err == nil {
		err = m.persist(ctx, resp.Token, resp.User)
	}
	if err != nil {
		m.end(err, "OTP verification failed. Please try again.")
		return err
	}

	user := resp.User
	m.mu.Lock()
	m.state = State{User: &user, Token: resp.Token, IsAuthenticated: true}
	m.mu.Unlock()

	m.nav.Navigate(PathDashboard)
	return nil
}

// Register crea la cuenta; no cambia el estado de autenticacion.
func (m *SessionManager) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if err := ValidateRegistration(req); err != nil {
		return "", err
	}
	if err := m.begin(); err != nil {
		return "", err
	}
	msg, err := m.api.Register(ctx, req)
	m.end(err, "Registration failed. Please try again.")
	if err != nil {
		return "", err
	}
	m.nav.Navigate(PathLogin)
	return msg, nil
}

// Logout borra la sesion persistida y en memoria. No falla.
func (m *SessionManager) Logout(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("clear persisted session failed", zap.Error(err))
	}
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()
	m.nav.Navigate(PathLogin)
}

// DeleteAccount borra la cuenta en el backend y, solo si lo consigue, cierra la sesion.
func (m *SessionManager) DeleteAccount(ctx context.Context) (string, error) {
	if err := m.begin(); err != nil {
		return "", err
	}
	msg, err := m.api.DeleteAccount(ctx)
	if err != nil {
		m.end(err, "Failed to delete account.")
		return "", err
	}
	m.Logout(ctx)
	return msg, nil
}

// Profile refresca el usuario desde el backend. Un 401 cierra la sesion local.
func (m *SessionManager) Profile(ctx context.Context) (domain.UserView, error) {
	if m.Token() == "" {
		return domain.UserView{}, &APIError{Status: http.StatusUnauthorized, Message: "Not authorized, no token"}
	}
	if err := m.begin(); err != nil {
		return domain.UserView{}, err
	}
	user, err := m.api.Profile(ctx)
	if err != nil {
		m.end(err, "Failed to load profile.")
		if IsUnauthorized(err) {
			m.Logout(ctx)
		}
		return domain.UserView{}, err
	}

	raw, err := json.Marshal(user)
	if err == nil {
		err = m.store.Set(ctx, userKey, raw)
	}
	if err != nil {
		m.logger.Warn("persist refreshed profile failed", zap.Error(err))
	}

	m.mu.Lock()
	m.state.User = &user
	m.state.Loading = false
	m.mu.Unlock()
	return user, nil
}

// ProfileImageURL devuelve la URL de la imagen de perfil o "" si no tiene.
func (m *SessionManager) ProfileImageURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.User == nil || m.state.User.ProfileImage == nil || *m.state.User.ProfileImage == "" {
		return ""
	}
	return m.api.ImageURL(*m.state.User.ProfileImage)
}

func (m *SessionManager) persist(ctx context.Context, token string, user domain.UserView) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, tokenKey, []byte(token)); err != nil {
		return err
	}
	if err := m.store.Set(ctx, userKey, raw); err != nil {
		_ = m.store.Clear(ctx)
		return err
	}
	return nil
}

// begin marca la operacion en curso; rechaza con ErrBusy si ya hay una.
func (m *SessionManager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Loading {
		return ErrBusy
	}
	m.state.Loading = true
	m.state.Error = ""
	return nil
}

func (m *SessionManager) end(err error, fallback string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Loading = false
	if err == nil {
		return
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		m.state.Error = apiErr.Message
		return
	}
	m.state.Error = fallback
	m.logger.Warn("session operation failed", zap.Error(err))
}
