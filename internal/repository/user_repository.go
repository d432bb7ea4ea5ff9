package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/campodata/maquinaria-api/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserRepository interface {
	CreateUser(ctx context.Context, nombre, email, password string, rol models.Rol, zona *int, haciendas []string) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = "id, nombre, email, password_hash, rol, zona, haciendas_asignadas, is_active"

func (r *userRepository) CreateUser(ctx context.Context, nombre, email, password string, rol models.Rol, zona *int, haciendas []string) (models.User, error) {
	wrapMsg := "unable to create user"

	if !models.IsValidRol(rol) {
		return models.User{}, errors.Errorf("%s: invalid role %q", wrapMsg, rol)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, errors.Wrap(err, wrapMsg)
	}

	user := models.User{
		Nombre:             strings.TrimSpace(nombre),
		Email:              strings.TrimSpace(strings.ToLower(email)),
		PasswordHash:       string(hash),
		Rol:                rol,
		Zona:               zona,
		HaciendasAsignadas: haciendas,
		IsActive:           true,
	}

	const query = `
		INSERT INTO usuarios (nombre, email, password_hash, rol, zona, haciendas_asignadas, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err = r.db.QueryRowContext(ctx, query,
		user.Nombre,
		user.Email,
		user.PasswordHash,
		user.Rol,
		user.Zona,
		pq.Array(user.HaciendasAsignadas),
		user.IsActive,
	).Scan(&user.ID)
	if err != nil {
		return models.User{}, errors.Wrap(err, wrapMsg)
	}
	return user, nil
}

func (r *userRepository) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM usuarios WHERE email = $1 AND is_active`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, strings.TrimSpace(strings.ToLower(email))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, errors.Wrap(err, "unable to authenticate user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM usuarios WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return models.User{}, errors.Wrap(err, "unable to fetch user")
	}
	return user, nil
}

func scanUser(row *sql.Row) (models.User, error) {
	var (
		user      models.User
		zona      sql.NullInt64
		haciendas pq.StringArray
	)
	err := row.Scan(
		&user.ID,
		&user.Nombre,
		&user.Email,
		&user.PasswordHash,
		&user.Rol,
		&zona,
		&haciendas,
		&user.IsActive,
	)
	if err != nil {
		return models.User{}, err
	}
	if zona.Valid {
		z := int(zona.Int64)
		user.Zona = &z
	}
	user.HaciendasAsignadas = haciendas
	return user, nil
}
