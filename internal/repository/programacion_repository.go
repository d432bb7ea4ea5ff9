package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/campodata/maquinaria-api/internal/models"
)

type ProgramacionRepository interface {
	Create(ctx context.Context, prog models.Programacion) (models.Programacion, error)
	GetByID(ctx context.Context, id string) (models.Programacion, error)
	List(ctx context.Context, filter ProgramacionFilter) ([]models.Programacion, error)

	// SetEstado moves a programación to aprobada or rechazada. The motivo is
	// only stored for rejections.
	SetEstado(ctx context.Context, id string, estado models.ProgramacionEstado, motivo *string) (models.Programacion, error)

	// Iniciar stamps the execution start.
	Iniciar(ctx context.Context, id string, horaInicio time.Time) (models.Programacion, error)

	// Finalizar stamps the execution end along with the hour-meter reading,
	// computed cost, and the uploaded receipt URL.
	Finalizar(ctx context.Context, id string, horaFin time.Time, horometro, costoTotal float64, reciboURL *string) (models.Programacion, error)

	// ReorderRuta rewrites orden_ruta as sequential integers following the
	// given ID order, in one transaction.
	ReorderRuta(ctx context.Context, ids []string) error
}

type ProgramacionFilter struct {
	Estado     models.ProgramacionEstado
	ZonaID     *int
	Hacienda   string
	OperadorID string
	Fecha      *time.Time
}

type programacionRepository struct {
	db *sql.DB
}

func NewProgramacionRepository(db *sql.DB) ProgramacionRepository {
	return &programacionRepository{db: db}
}

const programacionColumns = `id, zona_id, hacienda, suerte, labor, maquina, operador_id, solicitado_por,
	estado, motivo_rechazo, orden_ruta, fecha_labor, hora_inicio, hora_fin, horometro, costo_total, recibo_url,
	created_at, updated_at`

func (r *programacionRepository) Create(ctx context.Context, prog models.Programacion) (models.Programacion, error) {
	wrapMsg := "unable to create programación"

	const query = `
		INSERT INTO programaciones (zona_id, hacienda, suerte, labor, maquina, operador_id, solicitado_por, fecha_labor, orden_ruta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			(SELECT COALESCE(MAX(orden_ruta), 0) + 1 FROM programaciones WHERE fecha_labor = $8))
		RETURNING ` + programacionColumns

	row := r.db.QueryRowContext(ctx, query,
		prog.ZonaID,
		prog.Hacienda,
		prog.Suerte,
		prog.Labor,
		prog.Maquina,
		prog.OperadorID,
		prog.SolicitadoPor,
		prog.FechaLabor,
	)
	created, err := scanProgramacion(row)
	if err != nil {
		return models.Programacion{}, errors.Wrap(err, wrapMsg)
	}
	return created, nil
}

func (r *programacionRepository) GetByID(ctx context.Context, id string) (models.Programacion, error) {
	const query = `SELECT ` + programacionColumns + ` FROM programaciones WHERE id = $1`
	return scanProgramacion(r.db.QueryRowContext(ctx, query, id))
}

func (r *programacionRepository) List(ctx context.Context, filter ProgramacionFilter) ([]models.Programacion, error) {
	wrapMsg := "unable to list programaciones"

	builder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Select(programacionColumns).
		From("programaciones").
		OrderBy("fecha_labor DESC", "orden_ruta ASC")

	if filter.Estado != "" {
		builder = builder.Where(sq.Eq{"estado": filter.Estado})
	}
	if filter.ZonaID != nil {
		builder = builder.Where(sq.Eq{"zona_id": *filter.ZonaID})
	}
	if filter.Hacienda != "" {
		builder = builder.Where(sq.Eq{"hacienda": filter.Hacienda})
	}
	if filter.OperadorID != "" {
		builder = builder.Where(sq.Eq{"operador_id": filter.OperadorID})
	}
	if filter.Fecha != nil {
		builder = builder.Where(sq.Eq{"fecha_labor": *filter.Fecha})
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

	var programaciones []models.Programacion
	for rows.Next() {
		prog, err := scanProgramacion(rows)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		programaciones = append(programaciones, prog)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	return programaciones, nil
}

func (r *programacionRepository) SetEstado(ctx context.Context, id string, estado models.ProgramacionEstado, motivo *string) (models.Programacion, error) {
	const query = `
		UPDATE programaciones
		SET estado = $2, motivo_rechazo = $3, updated_at = NOW()
		WHERE id = $1 AND estado = 'pendiente'
		RETURNING ` + programacionColumns

	if estado != models.EstadoRechazada {
		motivo = nil
	}
	return scanProgramacion(r.db.QueryRowContext(ctx, query, id, estado, motivo))
}

func (r *programacionRepository) Iniciar(ctx context.Context, id string, horaInicio time.Time) (models.Programacion, error) {
	const query = `
		UPDATE programaciones
		SET estado = 'en_ejecucion', hora_inicio = $2, updated_at = NOW()
		WHERE id = $1 AND estado = 'aprobada'
		RETURNING ` + programacionColumns

	return scanProgramacion(r.db.QueryRowContext(ctx, query, id, horaInicio))
}

func (r *programacionRepository) Finalizar(ctx context.Context, id string, horaFin time.Time, horometro, costoTotal float64, reciboURL *string) (models.Programacion, error) {
	const query = `
		UPDATE programaciones
		SET estado = 'finalizada', hora_fin = $2, horometro = $3, costo_total = $4, recibo_url = $5, updated_at = NOW()
		WHERE id = $1 AND estado = 'en_ejecucion'
		RETURNING ` + programacionColumns

	return scanProgramacion(r.db.QueryRowContext(ctx, query, id, horaFin, horometro, costoTotal, reciboURL))
}

func (r *programacionRepository) ReorderRuta(ctx context.Context, ids []string) error {
	wrapMsg := "unable to reorder route"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	defer tx.Rollback()

	const query = `UPDATE programaciones SET orden_ruta = $2, updated_at = NOW() WHERE id = $1`
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, query, id, i+1); err != nil {
			return errors.Wrap(err, wrapMsg)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	return nil
}

func scanProgramacion(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Programacion, error) {
	var (
		prog          models.Programacion
		maquina       sql.NullString
		operadorID    sql.NullString
		motivoRechazo sql.NullString
		horaInicio    sql.NullTime
		horaFin       sql.NullTime
		horometro     sql.NullFloat64
		costoTotal    sql.NullFloat64
		reciboURL     sql.NullString
	)

	err := scanner.Scan(
		&prog.ID,
		&prog.ZonaID,
		&prog.Hacienda,
		&prog.Suerte,
		&prog.Labor,
		&maquina,
		&operadorID,
		&prog.SolicitadoPor,
		&prog.Estado,
		&motivoRechazo,
		&prog.OrdenRuta,
		&prog.FechaLabor,
		&horaInicio,
		&horaFin,
		&horometro,
		&costoTotal,
		&reciboURL,
		&prog.CreatedAt,
		&prog.UpdatedAt,
	)
	if err != nil {
		return models.Programacion{}, err
	}

	if maquina.Valid {
		val := maquina.String
		prog.Maquina = &val
	}
	if operadorID.Valid {
		val := operadorID.String
		prog.OperadorID = &val
	}
	if motivoRechazo.Valid {
		val := motivoRechazo.String
		prog.MotivoRechazo = &val
	}
	if horaInicio.Valid {
		t := horaInicio.Time
		prog.HoraInicio = &t
	}
	if horaFin.Valid {
		t := horaFin.Time
		prog.HoraFin = &t
	}
	if horometro.Valid {
		v := horometro.Float64
		prog.Horometro = &v
	}
	if costoTotal.Valid {
		v := costoTotal.Float64
		prog.CostoTotal = &v
	}
	if reciboURL.Valid {
		val := reciboURL.String
		prog.ReciboURL = &val
	}

	return prog, nil
}
