package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/campodata/maquinaria-api/internal/models"
	"github.com/campodata/maquinaria-api/internal/repository"
)

// Event describes a notification to publish. UsuarioID targets exactly one
// user and overrides zone/hacienda scoping; CreatedBy identifies the user
// whose action produced the event so their own sessions can suppress it.
type Event struct {
	Tipo      models.NotificationType
	Titulo    string
	Mensaje   string
	UsuarioID *string
	ZonaID    *int
	Hacienda  *string
	CreatedBy *string
	Data      map[string]interface{}
}

type Service interface {
	Publish(ctx context.Context, evt Event) (models.Notification, error)
	NotifyLaborIniciada(ctx context.Context, prog models.Programacion, actorID string) error
	NotifyLaborFinalizada(ctx context.Context, prog models.Programacion, actorID string) error
	NotifyAprobacion(ctx context.Context, prog models.Programacion, actorID string) error
	NotifyRechazo(ctx context.Context, prog models.Programacion, actorID, motivo string) error
	ListRecent(ctx context.Context, filter repository.NotificationFilter) ([]models.Notification, error)
	MarkLeido(ctx context.Context, userID, notificationID string) (models.Notification, error)
}

type service struct {
	repo      repository.NotificationRepository
	logger    zerolog.Logger
	notifiers []Notifier
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger, notifiers ...Notifier) Service {
	active := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			active = append(active, notifier)
		}
	}
	return &service{
		repo:      repo,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		notifiers: active,
	}
}

// Publish persists the event as a notification record and hands it to every
// delivery channel. Channel failures are logged and swallowed; the record is
// already durable and the channels are best-effort.
func (s *service) Publish(ctx context.Context, evt Event) (models.Notification, error) {
	if evt.Tipo == "" {
		return models.Notification{}, fmt.Errorf("notification type is required")
	}
	titulo := strings.TrimSpace(evt.Titulo)
	if titulo == "" {
		titulo = string(evt.Tipo)
	}

	notif, err := s.repo.Create(ctx, repository.CreateNotificationParams{
		Tipo:      evt.Tipo,
		Titulo:    titulo,
		Mensaje:   strings.TrimSpace(evt.Mensaje),
		UsuarioID: evt.UsuarioID,
		ZonaID:    evt.ZonaID,
		Hacienda:  evt.Hacienda,
		CreatedBy: evt.CreatedBy,
		Data:      evt.Data,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("tipo", string(evt.Tipo)).Msg("failed to persist notification")
		return models.Notification{}, err
	}

	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, notif); err != nil {
			logNotifyError(s.logger, err, notifierChannelName(notifier), notif)
		}
	}
	return notif, nil
}

func (s *service) NotifyLaborIniciada(ctx context.Context, prog models.Programacion, actorID string) error {
	_, err := s.Publish(ctx, Event{
		Tipo:      models.NotificationTypeInicio,
		Titulo:    fmt.Sprintf("Labor iniciada: %s", prog.Labor),
		Mensaje:   fmt.Sprintf("%s en %s, suerte %s", prog.Labor, prog.Hacienda, prog.Suerte),
		ZonaID:    &prog.ZonaID,
		Hacienda:  &prog.Hacienda,
		CreatedBy: &actorID,
		Data: map[string]interface{}{
			"programacion_id": prog.ID,
			"url":             fmt.Sprintf("/programaciones/%s", prog.ID),
		},
	})
	return err
}

func (s *service) NotifyLaborFinalizada(ctx context.Context, prog models.Programacion, actorID string) error {
	data := map[string]interface{}{
		"programacion_id": prog.ID,
		"url":             fmt.Sprintf("/programaciones/%s", prog.ID),
	}
	if min, ok := prog.DuracionMin(); ok {
		data["duracion_min"] = min
	}
	_, err := s.Publish(ctx, Event{
		Tipo:      models.NotificationTypeFin,
		Titulo:    fmt.Sprintf("Labor finalizada: %s", prog.Labor),
		Mensaje:   fmt.Sprintf("%s en %s, suerte %s", prog.Labor, prog.Hacienda, prog.Suerte),
		ZonaID:    &prog.ZonaID,
		Hacienda:  &prog.Hacienda,
		CreatedBy: &actorID,
		Data:      data,
	})
	return err
}

// NotifyAprobacion targets the requesting técnico directly; the hierarchy
// rules do not apply to targeted records.
func (s *service) NotifyAprobacion(ctx context.Context, prog models.Programacion, actorID string) error {
	solicitante := prog.SolicitadoPor
	_, err := s.Publish(ctx, Event{
		Tipo:      models.NotificationTypeOtro,
		Titulo:    "Programación aprobada",
		Mensaje:   fmt.Sprintf("%s en %s, suerte %s fue aprobada", prog.Labor, prog.Hacienda, prog.Suerte),
		UsuarioID: &solicitante,
		ZonaID:    &prog.ZonaID,
		Hacienda:  &prog.Hacienda,
		CreatedBy: &actorID,
		Data: map[string]interface{}{
			"programacion_id": prog.ID,
			"url":             fmt.Sprintf("/programaciones/%s", prog.ID),
		},
	})
	return err
}

func (s *service) NotifyRechazo(ctx context.Context, prog models.Programacion, actorID, motivo string) error {
	solicitante := prog.SolicitadoPor
	motivo = strings.TrimSpace(motivo)
	if motivo == "" {
		motivo = "Sin motivo registrado"
	}
	_, err := s.Publish(ctx, Event{
		Tipo:      models.NotificationTypeOtro,
		Titulo:    "Programación rechazada",
		Mensaje:   fmt.Sprintf("%s en %s, suerte %s fue rechazada: %s", prog.Labor, prog.Hacienda, prog.Suerte, motivo),
		UsuarioID: &solicitante,
		ZonaID:    &prog.ZonaID,
		Hacienda:  &prog.Hacienda,
		CreatedBy: &actorID,
		Data: map[string]interface{}{
			"programacion_id": prog.ID,
			"motivo":          motivo,
			"url":             fmt.Sprintf("/programaciones/%s", prog.ID),
		},
	})
	return err
}

func (s *service) ListRecent(ctx context.Context, filter repository.NotificationFilter) ([]models.Notification, error) {
	return s.repo.ListRecent(ctx, filter)
}

func (s *service) MarkLeido(ctx context.Context, userID, notificationID string) (models.Notification, error) {
	return s.repo.MarkLeido(ctx, userID, notificationID)
}
