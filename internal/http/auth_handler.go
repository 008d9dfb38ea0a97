package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"otp-auth/internal/service"
)

// maxRegisterBody deja margen para los campos de texto ademas de la imagen.
const maxRegisterBody = service.MaxImageSize + 1<<20

// AuthHandler mantiene dependencias para los endpoints de /auth.
type AuthHandler struct {
	logger   *zap.Logger
	authServ *service.AuthService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		authServ: authServ,
	}
}

type registerForm struct {
	Name         string                `form:"name"`
	Email        string                `form:"email"`
	Password     string                `form:"password"`
	Company      string                `form:"company"`
	Age          string                `form:"age"`
	DateOfBirth  string                `form:"dob"`
	ProfileImage *multipart.FileHeader `form:"profileImage"`
}

// Register maneja POST /auth/register (multipart/form-data).
func (h *AuthHandler) Register(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRegisterBody)

	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Profile image must be 2MB or smaller"})
			return
		}
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid registration form"})
		return
	}

	input := service.RegisterInput{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}
	if company := strings.TrimSpace(form.Company); company != "" {
		input.Company = &company
	}
	if raw := strings.TrimSpace(form.Age); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Age must be a non-negative number"})
			return
		}
		input.Age = &age
	}
	if raw := strings.TrimSpace(form.DateOfBirth); raw != "" {
		dob, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Date of birth must be a valid date"})
			return
		}
		input.DateOfBirth = &dob
	}

	if form.ProfileImage != nil {
		file, err := form.ProfileImage.Open()
		if err != nil {
			h.logger.Error("open uploaded image failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not read profile image"})
			return
		}
		defer file.Close()

		contentType, err := sniffImage(file)
		if err != nil {
			h.logger.Error("sniff uploaded image failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not read profile image"})
			return
		}
		input.Image = &service.ImageUpload{
			ContentType: contentType,
			Size:        form.ProfileImage.Size,
			Content:     file,
		}
	}

	_, err := h.authServ.Register(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists with this email"})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"message": sentence(err.Error())})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during registration."})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful! Please login to receive OTP."})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	if err := h.authServ.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email or password"})
		case errors.Is(err, service.ErrRateLimited):
			var limitErr *service.LimitError
			if errors.As(err, &limitErr) {
				setRetryAfter(c, limitErr.RetryAfter)
			}
			c.JSON(http.StatusTooManyRequests, gin.H{"message": "Too many login attempts, please try again later"})
		case errors.Is(err, service.ErrEmailSendFailure):
			h.logger.Error("otp email delivery failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not send OTP email. Please try again."})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during login or OTP sending."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "OTP sent to your email. Please verify."})
}

// VerifyOTP maneja POST /auth/verify-otp.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid otp verify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	result, err := h.authServ.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"message": "User not found."})
		case errors.Is(err, service.ErrInvalidOrExpiredOTP):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired OTP. Please try logging in again."})
		default:
			h.logger.Error("verify otp failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during OTP verification."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   result.Token,
		"user":    result.User,
		"message": "OTP verified and logged in successfully!",
	})
}

// Profile maneja GET /auth/profile.
func (h *AuthHandler) Profile(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteAccount maneja DELETE /auth/delete-account.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
		return
	}

	if err := h.authServ.DeleteAccount(c.Request.Context(), user.ID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		h.logger.Error("delete account failed", zap.Error(err), zap.String("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during account deletion."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

// sniffImage detecta el tipo real por contenido y rebobina el archivo.
func sniffImage(file multipart.File) (string, error) {
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mtype.String(), nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func sentence(msg string) string {
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
