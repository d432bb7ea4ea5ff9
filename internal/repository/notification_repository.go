package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/campodata/maquinaria-api/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error)
	ListRecent(ctx context.Context, filter NotificationFilter) ([]models.Notification, error)

	// MarkLeido flips the read flag when the record is addressed to userID or
	// is a broadcast. The flag lives on the record itself, so marking a
	// broadcast read hides it from everyone's unread view; per-user read
	// state would need its own table.
	MarkLeido(ctx context.Context, userID, notificationID string) (models.Notification, error)
}

type CreateNotificationParams struct {
	Tipo      models.NotificationType
	Titulo    string
	Mensaje   string
	UsuarioID *string
	ZonaID    *int
	Hacienda  *string
	CreatedBy *string
	Data      map[string]interface{}
}

// NotificationFilter narrows ListRecent. Zero values mean "no filter".
type NotificationFilter struct {
	UsuarioID    string
	ZonaID       *int
	Tipo         models.NotificationType
	SoloNoLeidas bool
	Limit        int
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = "id, tipo, titulo, mensaje, usuario_id, zona_id, hacienda, created_by, data, leido, created_at"

func (r *notificationRepository) Create(ctx context.Context, params CreateNotificationParams) (models.Notification, error) {
	wrapMsg := "unable to save notification"

	const query = `
		INSERT INTO notificaciones (tipo, titulo, mensaje, usuario_id, zona_id, hacienda, created_by, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + notificationColumns

	var data interface{}
	if len(params.Data) > 0 {
		bytes, err := json.Marshal(params.Data)
		if err != nil {
			return models.Notification{}, errors.Wrap(err, wrapMsg)
		}
		data = bytes
	}

	row := r.db.QueryRowContext(ctx, query,
		params.Tipo,
		params.Titulo,
		params.Mensaje,
		params.UsuarioID,
		params.ZonaID,
		params.Hacienda,
		params.CreatedBy,
		data,
	)
	notif, err := scanNotification(row)
	if err != nil {
		return models.Notification{}, errors.Wrap(err, wrapMsg)
	}
	return notif, nil
}

func (r *notificationRepository) ListRecent(ctx context.Context, filter NotificationFilter) ([]models.Notification, error) {
	wrapMsg := "unable to list notifications"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	builder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select(notificationColumns).
		From("notificaciones").
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	if filter.UsuarioID != "" {
		builder = builder.Where(sq.Or{
			sq.Eq{"usuario_id": filter.UsuarioID},
			sq.Eq{"usuario_id": nil},
		})
	}
	if filter.ZonaID != nil {
		builder = builder.Where(sq.Eq{"zona_id": *filter.ZonaID})
	}
	if filter.Tipo != "" {
		builder = builder.Where(sq.Eq{"tipo": filter.Tipo})
	}
	if filter.SoloNoLeidas {
		builder = builder.Where(sq.Eq{"leido": false})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		notifications = append(notifications, notif)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkLeido(ctx context.Context, userID, notificationID string) (models.Notification, error) {
	const query = `
		UPDATE notificaciones
		SET leido = TRUE
		WHERE id = $1 AND (usuario_id IS NULL OR usuario_id = $2)
		RETURNING ` + notificationColumns

	row := r.db.QueryRowContext(ctx, query, notificationID, userID)
	return scanNotification(row)
}

func scanNotification(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Notification, error) {
	var (
		notif     models.Notification
		usuarioID sql.NullString
		zonaID    sql.NullInt64
		hacienda  sql.NullString
		createdBy sql.NullString
		dataRaw   []byte
	)

	err := scanner.Scan(
		&notif.ID,
		&notif.Tipo,
		&notif.Titulo,
		&notif.Mensaje,
		&usuarioID,
		&zonaID,
		&hacienda,
		&createdBy,
		&dataRaw,
		&notif.Leido,
		&notif.CreatedAt,
	)
	if err != nil {
		return models.Notification{}, err
	}

	if usuarioID.Valid {
		val := usuarioID.String
		notif.UsuarioID = &val
	}
	if zonaID.Valid {
		z := int(zonaID.Int64)
		notif.ZonaID = &z
	}
	if hacienda.Valid {
		val := hacienda.String
		notif.Hacienda = &val
	}
	if createdBy.Valid {
		val := createdBy.String
		notif.CreatedBy = &val
	}
	if len(dataRaw) > 0 {
		notif.Data = dataRaw
	}

	return notif, nil
}
