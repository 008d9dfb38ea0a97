package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"otp-auth/internal/domain"
)

const (
	selectUserByEmail = `SELECT id, name, email, password_hash, otp_hash, otp_expires_at,\s+profile_image_path, company, age, date_of_birth, created_at FROM users WHERE email = \$1`
	selectUserByID    = `SELECT id, name, email, password_hash, otp_hash, otp_expires_at,\s+profile_image_path, company, age, date_of_birth, created_at FROM users WHERE id = \$1`
	insertUser        = `INSERT INTO users \(id, name, email, password_hash, profile_image_path,\s+company, age, date_of_birth, created_at\)\s+VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9\)`
	updateOTP         = `UPDATE users\s+SET otp_hash = \$2, otp_expires_at = \$3\s+WHERE id = \$1`
	consumeOTP        = `UPDATE users\s+SET otp_hash = NULL, otp_expires_at = NULL\s+WHERE id = \$1 AND otp_hash = \$2`
	deleteUser        = `DELETE FROM users WHERE id = \$1`
)

var userCols = []string{
	"id", "name", "email", "password_hash", "otp_hash", "otp_expires_at",
	"profile_image_path", "company", "age", "date_of_birth", "created_at",
}

func newRepoWithMock(t *testing.T) (*PgUserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("pgxmock.NewPool error: %v", err)
	}
	return NewPgUserRepository(mock), mock
}

func expectationsMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(insertUser).
		WithArgs("u-1", "Ada", "ada@example.com", "$2a$hash",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), domain.User{
		ID:           "u-1",
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "$2a$hash",
		Company:      strPtr("Acme"),
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestCreate_UniqueViolationIsDuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertUser).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.Create(context.Background(), domain.User{ID: "u-2", Name: "Ada", Email: "ada@example.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestCreate_OtherErrorPassesThrough(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	dbErr := &pgconn.PgError{Code: "23514", ConstraintName: "users_otp_pair"}

	mock.ExpectExec(insertUser).WillReturnError(dbErr)

	err := repo.Create(context.Background(), domain.User{ID: "u-3"})
	if !errors.Is(err, dbErr) || errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected raw db error, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestGetByEmail_NullOTPColumns(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(userCols).
		AddRow("u-1", "Ada", "ada@example.com", "$2a$hash", nil, nil, nil, strPtr("Acme"), intPtr(36), nil, created)
	mock.ExpectQuery(selectUserByEmail).WithArgs("ada@example.com").WillReturnRows(rows)

	u, err := repo.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if u.OTPHash != "" || u.OTPExpiresAt != nil || u.HasPendingOTP() {
		t.Fatalf("expected no pending otp, got %+v", u)
	}
	if u.Company == nil || *u.Company != "Acme" || u.Age == nil || *u.Age != 36 {
		t.Fatalf("unexpected optional fields %+v", u)
	}
	if u.ProfileImagePath != nil || u.DateOfBirth != nil {
		t.Fatalf("expected NULL columns to stay nil")
	}
	expectationsMet(t, mock)
}

func TestGetByID_PendingOTP(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	expires := time.Date(2024, 3, 1, 10, 10, 0, 0, time.UTC)

	rows := pgxmock.NewRows(userCols).
		AddRow("u-1", "Ada", "ada@example.com", "$2a$hash", strPtr("salt:digest"), &expires,
			strPtr("1700000000000-abc.png"), nil, nil, nil, time.Now())
	mock.ExpectQuery(selectUserByID).WithArgs("u-1").WillReturnRows(rows)

	u, err := repo.GetByID(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if u.OTPHash != "salt:digest" || u.OTPExpiresAt == nil || !u.OTPExpiresAt.Equal(expires) {
		t.Fatalf("unexpected otp fields %+v", u)
	}
	if u.ProfileImagePath == nil || *u.ProfileImagePath != "1700000000000-abc.png" {
		t.Fatalf("unexpected image path %v", u.ProfileImagePath)
	}
	expectationsMet(t, mock)
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectUserByEmail).WithArgs("nobody@example.com").WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestUpdateOTP(t *testing.T) {
	expires := time.Date(2024, 3, 1, 10, 10, 0, 0, time.UTC)

	t.Run("updates both columns", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(updateOTP).
			WithArgs("u-1", "salt:digest", expires).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		if err := repo.UpdateOTP(context.Background(), "u-1", "salt:digest", expires); err != nil {
			t.Fatalf("UpdateOTP error: %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("missing user is ErrNoRows", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(updateOTP).
			WithArgs("gone", "salt:digest", expires).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		if err := repo.UpdateOTP(context.Background(), "gone", "salt:digest", expires); !errors.Is(err, pgx.ErrNoRows) {
			t.Fatalf("expected pgx.ErrNoRows, got %v", err)
		}
		expectationsMet(t, mock)
	})
}

func TestConsumeOTP(t *testing.T) {
	t.Run("clears when the digest still matches", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(consumeOTP).
			WithArgs("u-1", "salt:digest").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		ok, err := repo.ConsumeOTP(context.Background(), "u-1", "salt:digest")
		if err != nil || !ok {
			t.Fatalf("expected consume to succeed, got ok=%v err=%v", ok, err)
		}
		expectationsMet(t, mock)
	})

	t.Run("second consumer of the same code loses", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(consumeOTP).
			WithArgs("u-1", "salt:digest").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(consumeOTP).
			WithArgs("u-1", "salt:digest").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		first, err := repo.ConsumeOTP(context.Background(), "u-1", "salt:digest")
		if err != nil || !first {
			t.Fatalf("expected first consume to win, got ok=%v err=%v", first, err)
		}
		second, err := repo.ConsumeOTP(context.Background(), "u-1", "salt:digest")
		if err != nil || second {
			t.Fatalf("expected second consume to report false, got ok=%v err=%v", second, err)
		}
		expectationsMet(t, mock)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(consumeOTP).WillReturnError(errors.New("conn reset"))

		if ok, err := repo.ConsumeOTP(context.Background(), "u-1", "salt:digest"); err == nil || ok {
			t.Fatalf("expected error, got ok=%v err=%v", ok, err)
		}
		expectationsMet(t, mock)
	})
}

func TestDelete(t *testing.T) {
	t.Run("deletes", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(deleteUser).WithArgs("u-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))

		if err := repo.Delete(context.Background(), "u-1"); err != nil {
			t.Fatalf("Delete error: %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("missing user is ErrNoRows", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(deleteUser).WithArgs("gone").WillReturnResult(pgxmock.NewResult("DELETE", 0))

		if err := repo.Delete(context.Background(), "gone"); !errors.Is(err, pgx.ErrNoRows) {
			t.Fatalf("expected pgx.ErrNoRows, got %v", err)
		}
		expectationsMet(t, mock)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "other constraint", err: &pgconn.PgError{Code: "23514"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isUniqueViolation(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
