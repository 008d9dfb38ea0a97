// Package client implementa el lado cliente de la autenticacion: la llamada al
// backend, la sesion persistida y las redirecciones segun el estado.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"otp-auth/internal/domain"
)

// APIError es una respuesta no 2xx del backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return e.Message
}

// IsUnauthorized indica si err es un 401 del backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// bearerTransport agrega el token vigente a cada request saliente.
type bearerTransport struct {
	base  http.RoundTripper
	token func() string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.token()
	if token == "" || req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}

// API habla con los endpoints /auth del backend.
type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type RegisterRequest struct {
	Name        string
	Email       string
	Password    string
	Company     string
	Age         *int
	DateOfBirth string
	Image       *ImageFile
}

// ImageFile es la imagen de perfil a subir.
type ImageFile struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

type VerifyResponse struct {
	Token   string          `json:"token"`
	User    domain.UserView `json:"user"`
	Message string          `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *API) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := [][2]string{
		{"name", req.Name},
		{"email", req.Email},
		{"password", req.Password},
		{"company", req.Company},
		{"dob", req.DateOfBirth},
	}
	if req.Age != nil {
		fields = append(fields, [2]string{"age", strconv.Itoa(*req.Age)})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return "", err
		}
	}
	if img := req.Image; img != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="profileImage"; filename="%s"`, quoteEscaper.Replace(img.Name)))
		header.Set("Content-Type", img.ContentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(part, img.Content); err != nil {
			return "", fmt.Errorf("read profile image: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var out messageResponse
	if err := a.do(ctx, http.MethodPost, "/auth/register", w.FormDataContentType(), &body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (a *API) Login(ctx context.Context, email, password string) (string, error) {
	var out messageResponse
	err := a.doJSON(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	return out.Message, err
}

func (a *API) VerifyOTP(ctx context.Context, email, otp string) (VerifyResponse, error) {
	var out VerifyResponse
	err := a.doJSON(ctx, http.MethodPost, "/auth/verify-otp", map[string]string{
		"email": email,
		"otp":   otp,
	}, &out)
	if err == nil && out.Token == "" {
		return VerifyResponse{}, errors.New("backend returned no token")
	}
	return out, err
}

func (a *API) Profile(ctx context.Context) (domain.UserView, error) {
	var out struct {
		User domain.UserView `json:"user"`
	}
	err := a.doJSON(ctx, http.MethodGet, "/auth/profile", nil, &out)
	return out.User, err
}

func (a *API) DeleteAccount(ctx context.Context) (string, error) {
	var out messageResponse
	err := a.doJSON(ctx, http.MethodDelete, "/auth/delete-account", nil, &out)
	return out.Message, err
}

// ImageURL resuelve una clave de imagen guardada contra el backend.
func (a *API) ImageURL(key string) string {
	return a.baseURL + "/uploads/" + strings.TrimPrefix(key, "/")
}

func (a *API) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return a.do(ctx, method, path, contentType, body, out)
}

func (a *API) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg messageResponse
		_ = json.Unmarshal(raw, &msg)
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
