package domain

import "time"

// User es el registro persistido de una cuenta.
type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	OTPHash          string     `json:"-"`
	OTPExpiresAt     *time.Time `json:"-"`
	ProfileImagePath *string    `json:"profile_image"`
	Company          *string    `json:"company"`
	Age              *int       `json:"age"`
	DateOfBirth      *time.Time `json:"dob"`
	CreatedAt        time.Time  `json:"created_at"`
}

// HasPendingOTP indica si hay un código emitido y aún no consumido.
func (u User) HasPendingOTP() bool {
	return u.OTPHash != "" && u.OTPExpiresAt != nil
}

// UserView es la proyección pública de User, sin credenciales ni OTP.
type UserView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	ProfileImage *string    `json:"profile_image"`
	Company      *string    `json:"company"`
	Age          *int       `json:"age"`
	DateOfBirth  *time.Time `json:"dob"`
	CreatedAt    time.Time  `json:"created_at"`
}

// View devuelve la vista sanitizada del usuario.
func (u User) View() UserView {
	return UserView{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ProfileImage: u.ProfileImagePath,
		Company:      u.Company,
		Age:          u.Age,
		DateOfBirth:  u.DateOfBirth,
		CreatedAt:    u.CreatedAt,
	}
}
