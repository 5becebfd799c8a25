package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"

	"github.com/davitr/userhub-be/internal/models"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	ListUsers(ctx context.Context) ([]models.PublicUser, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetPublicUser(ctx context.Context, id int64) (models.PublicUser, error)
	CreateUser(ctx context.Context, username, email, password string) (models.PublicUser, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	UpdateUser(ctx context.Context, id int64, update models.UserUpdate, callerIsAdmin bool) (models.PublicUser, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

const publicUserColumns = `
	u.id, u.username, u.email, u.birthday,
	COALESCE(p.name, 'no privilege'),
	u.created_at, u.updated_at`

// ListUsers retrieves every account joined with its privilege name,
// password excluded.
func (s *UserService) ListUsers(ctx context.Context) ([]models.PublicUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+publicUserColumns+`
		FROM users u
		LEFT JOIN privileges p ON p.id = u.privilege_id
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.PublicUser{}
	for rows.Next() {
		user, err := scanPublicUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetUserByID retrieves a single account as stored, including the
// password hash. Internal use only; never returned to clients.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	var birthday sql.NullTime
	var privilegeID sql.NullInt64
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, birthday, password_hash, privilege_id, created_at, updated_at
		FROM users WHERE id = ?`, id)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &birthday, &user.PasswordHash, &privilegeID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	if birthday.Valid {
		user.Birthday = &birthday.Time
	}
	if privilegeID.Valid {
		user.PrivilegeID = &privilegeID.Int64
	}
	return user, nil
}

// GetPublicUser retrieves the client-facing view of one account.
func (s *UserService) GetPublicUser(ctx context.Context, id int64) (models.PublicUser, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+publicUserColumns+`
		FROM users u
		LEFT JOIN privileges p ON p.id = u.privilege_id
		WHERE u.id = ?`, id)
	user, err := scanPublicUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PublicUser{}, ErrNotFound
		}
		return models.PublicUser{}, err
	}
	return user, nil
}

// CreateUser registers a new account with the default privilege,
// hashing the password.
func (s *UserService) CreateUser(ctx context.Context, username, email, password string) (models.PublicUser, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.PublicUser{}, err
	}

	var privilegeID sql.NullInt64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM privileges WHERE name = ?", models.DefaultPrivilege)
	if err := row.Scan(&privilegeID.Int64); err == nil {
		privilegeID.Valid = true
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.PublicUser{}, err
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, privilege_id) VALUES (?, ?, ?, ?)",
		username, email, string(hashedPassword), privilegeID)
	if err != nil {
		return models.PublicUser{}, mapConstraintError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.PublicUser{}, err
	}
	return s.GetPublicUser(ctx, id)
}

// AuthenticateUser verifies an account's credentials by email.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ?", email)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateUser applies the provided fields to the target account. Fields
// equal to the stored value are skipped, so re-submitting the current
// profile never trips a uniqueness check. The privilege field is only
// honored for admin callers; everyone else has it silently ignored.
// All accepted changes are committed in a single UPDATE.
func (s *UserService) UpdateUser(ctx context.Context, id int64, update models.UserUpdate, callerIsAdmin bool) (models.PublicUser, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return models.PublicUser{}, err
	}

	var sets []string
	var args []interface{}

	if update.Username != nil && *update.Username != user.Username {
		taken, err := s.columnTaken(ctx, "username", *update.Username, id)
		if err != nil {
			return models.PublicUser{}, err
		}
		if taken {
			return models.PublicUser{}, ErrUsernameTaken
		}
		sets = append(sets, "username = ?")
		args = append(args, *update.Username)
	}

	if update.Email != nil && *update.Email != user.Email {
		taken, err := s.columnTaken(ctx, "email", *update.Email, id)
		if err != nil {
			return models.PublicUser{}, err
		}
		if taken {
			return models.PublicUser{}, ErrEmailTaken
		}
		sets = append(sets, "email = ?")
		args = append(args, *update.Email)
	}

	if update.Birthday != nil && (user.Birthday == nil || !update.Birthday.Equal(*user.Birthday)) {
		// Strictly after now is rejected; equal to now is fine.
		if update.Birthday.After(time.Now()) {
			return models.PublicUser{}, ErrBirthdayInFuture
		}
		sets = append(sets, "birthday = ?")
		args = append(args, *update.Birthday)
	}

	if update.PrivilegeID != nil && callerIsAdmin {
		if user.PrivilegeID == nil || *update.PrivilegeID != *user.PrivilegeID {
			var exists int
			row := s.db.QueryRowContext(ctx, "SELECT 1 FROM privileges WHERE id = ?", *update.PrivilegeID)
			if err := row.Scan(&exists); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return models.PublicUser{}, ErrInvalidPrivilege
				}
				return models.PublicUser{}, err
			}
			sets = append(sets, "privilege_id = ?")
			args = append(args, *update.PrivilegeID)
		}
	}

	// The stored hash is unreadable, so a provided password is always
	// re-hashed and applied.
	if update.Password != nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.PublicUser{}, err
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, string(hashedPassword))
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
		args = append(args, id)
		query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			// The pre-checks above race with concurrent writers; the
			// store's UNIQUE constraints are the authoritative signal.
			return models.PublicUser{}, mapConstraintError(err)
		}
	}

	return s.GetPublicUser(ctx, id)
}

// columnTaken reports whether another account already holds the value
// in the given unique column.
func (s *UserService) columnTaken(ctx context.Context, column, value string, excludeID int64) (bool, error) {
	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE "+column+" = ? AND id != ?", value, excludeID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// mapConstraintError translates sqlite UNIQUE violations on the users
// table into domain conflict errors.
func mapConstraintError(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return ErrUsernameTaken
	case strings.Contains(msg, "users.email"):
		return ErrEmailTaken
	}
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPublicUser(row rowScanner) (models.PublicUser, error) {
	var user models.PublicUser
	var birthday sql.NullTime
	err := row.Scan(&user.ID, &user.Username, &user.Email, &birthday, &user.Privilege, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.PublicUser{}, err
	}
	if birthday.Valid {
		user.Birthday = &birthday.Time
	}
	return user, nil
}
