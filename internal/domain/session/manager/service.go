// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manager implements the session service: it ties port
// reservation, worker launch and the session store together.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/orkestra/internal/domain/session/model"
	"github.com/ManuGH/orkestra/internal/domain/session/ports"
	xglog "github.com/ManuGH/orkestra/internal/log"
	"github.com/ManuGH/orkestra/internal/metrics"
	"github.com/ManuGH/orkestra/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const publishTimeout = time.Second

var (
	ErrMissingStore    = errors.New("session service: store is required")
	ErrMissingPorts    = errors.New("session service: port reserver is required")
	ErrMissingLauncher = errors.New("session service: worker launcher is required")
)

// Options wires the service. Store, Ports and Launcher are required.
type Options struct {
	Store      ports.SessionStore
	Ports      ports.PortReserver
	Launcher   ports.WorkerLauncher
	Publisher  ports.Publisher
	Codes      *model.JoinCodes
	PublicHost string
	Tracer     trace.Tracer
	Logger     *zerolog.Logger
	Now        func() time.Time
	NewID      func() string
}

// Service is the in-memory session service.
type Service struct {
	store     ports.SessionStore
	ports     ports.PortReserver
	launcher  ports.WorkerLauncher
	publisher ports.Publisher
	codes     *model.JoinCodes
	host      string
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
}

var _ ports.SessionService = (*Service)(nil)

// New validates opts and applies defaults.
func New(opts Options) (*Service, error) {
	switch {
	case opts.Store == nil:
		return nil, ErrMissingStore
	case opts.Ports == nil:
		return nil, ErrMissingPorts
	case opts.Launcher == nil:
		return nil, ErrMissingLauncher
	}
	s := &Service{
		store:     opts.Store,
		ports:     opts.Ports,
		launcher:  opts.Launcher,
		publisher: opts.Publisher,
		codes:     opts.Codes,
		host:      opts.PublicHost,
		tracer:    opts.Tracer,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if s.codes == nil {
		s.codes = model.DefaultJoinCodes
	}
	if s.host == "" {
		s.host = "127.0.0.1"
	}
	if s.tracer == nil {
		s.tracer = telemetry.Tracer("orkestra/session")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	} else {
		s.logger = xglog.WithComponent("session")
	}
	return s, nil
}

// CreateSession reserves a port, launches the worker and registers the
// session. A failed spawn leaves the store untouched.
func (s *Service) CreateSession(ctx context.Context, creatorID string, cfg model.Config) (model.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.create",
		trace.WithAttributes(
			attribute.String(telemetry.CreatorIDKey, creatorID),
			attribute.Int(telemetry.MaxPlayersKey, cfg.MaxPlayers),
		))
	defer span.End()

	logger := xglog.WithContext(ctx, s.logger)

	if err := cfg.Validate(); err != nil {
		metrics.IncSessionCreate("invalid")
		span.SetStatus(codes.Error, "invalid config")
		return model.Session{}, err
	}

	port, err := s.ports.Reserve(ctx)
	if err != nil {
		metrics.IncSessionCreate(reserveFailureLabel(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "port reservation failed")
		logger.Warn().Err(err).Str(xglog.FieldEvent, "session.port_failed").Msg("could not reserve a port")
		return model.Session{}, &model.SpawnError{Err: fmt.Errorf("reserve port: %w", err)}
	}

	sess := model.New(s.newID(), s.host, port, s.codes.Next(), creatorID, cfg, s.now())
	span.SetAttributes(telemetry.SessionAttributes(sess.ID, sess.Code, port)...)
	logger = logger.With().Str(xglog.FieldSessionID, sess.ID).Int(xglog.FieldPort, int(port)).Logger()

	logger.Debug().Str(xglog.FieldEvent, "session.launching").Str(xglog.FieldJoinCode, sess.Code).Msg("starting game server")

	handle, err := s.launcher.Launch(ctx,
		ports.LaunchSpec{SessionID: sess.ID, Code: sess.Code, Port: port},
		ports.LaunchHooks{
			Release: func() { s.ports.Release(port) },
			OnExit:  s.onWorkerExit,
		})
	if err != nil {
		metrics.IncSessionCreate("spawn_failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "spawn failed")
		logger.Warn().Err(err).Str(xglog.FieldEvent, "session.spawn_failed").Msg("error while starting game server")
		if !errors.Is(err, model.ErrSpawnFailed) {
			err = &model.SpawnError{SessionID: sess.ID, Err: err}
		}
		return model.Session{}, err
	}
	span.SetAttributes(attribute.Int(telemetry.WorkerPIDKey, handle.PID()))

	if err := s.store.Insert(sess); err != nil {
		// uuid collision; the worker is orphaned but will still clean up on exit.
		metrics.IncSessionCreate("store_failed")
		span.RecordError(err)
		return model.Session{}, fmt.Errorf("store session: %w", err)
	}
	metrics.IncSessionCreate("ok")
	metrics.SetActiveSessions(s.store.Len())
	s.publish(ctx, ports.EventSessionCreated, sess, nil)

	logger.Info().
		Str(xglog.FieldEvent, "session.created").
		Str(xglog.FieldEndpoint, sess.Endpoint()).
		Str(xglog.FieldJoinCode, sess.Code).
		Str(xglog.FieldCreatorID, creatorID).
		Msg("session created")

	// The worker may have exited before the insert; its exit hook then
	// found nothing to delete.
	if handle.Exited() {
		if removed, ok := s.store.Delete(sess.ID); ok {
			metrics.SetActiveSessions(s.store.Len())
			s.publish(context.WithoutCancel(ctx), ports.EventSessionTerminated, removed, nil)
			logger.Warn().Str(xglog.FieldEvent, "session.exited_during_start").Msg("worker exited before session was registered")
		}
	}

	return sess, nil
}

// onWorkerExit runs on the launcher's supervision goroutine.
func (s *Service) onWorkerExit(exit ports.WorkerExit) {
	removed, ok := s.store.Delete(exit.SessionID)
	if !ok {
		return
	}
	metrics.SetActiveSessions(s.store.Len())
	s.publish(context.Background(), ports.EventSessionTerminated, removed, &exit)

	ev := s.logger.Info()
	if !exit.Clean() {
		ev = s.logger.Warn().Int(xglog.FieldExitCode, exit.ExitCode).Strs(xglog.FieldStderr, exit.Stderr)
	}
	ev.Str(xglog.FieldEvent, "session.terminated").
		Str(xglog.FieldSessionID, exit.SessionID).
		Dur("lifetime", exit.Lifetime).
		Msg("session removed after worker exit")
}

// GetByID returns the session or a *model.NotFoundError.
func (s *Service) GetByID(_ context.Context, id string) (model.Session, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return model.Session{}, model.NotFound(id)
	}
	return sess, nil
}

func (s *Service) ListAll(_ context.Context) []model.Session {
	return s.store.List()
}

// FilterByCode returns the session carrying code, if any.
func (s *Service) FilterByCode(_ context.Context, code string) []model.Session {
	found := s.store.FindByCode(code)
	if len(found) > 1 {
		found = found[:1]
	}
	return found
}

// AddPlayer admits playerID. The capacity check comes first, so a player
// already in a full session is still refused with ErrSessionFull.
func (s *Service) AddPlayer(ctx context.Context, sessionID, playerID string) (model.Session, error) {
	next, err := s.store.Update(sessionID, func(cur model.Session) (model.Session, error) {
		if cur.Full() {
			return cur, model.ErrSessionFull
		}
		return cur.WithPlayer(playerID), nil
	})
	if err != nil {
		metrics.IncPlayerOp("join", resultLabel(err))
		return model.Session{}, err
	}
	metrics.IncPlayerOp("join", "ok")
	s.publish(ctx, ports.EventSessionUpdated, next, nil)

	logger := xglog.WithContext(ctx, s.logger)
	logger.Debug().
		Str(xglog.FieldEvent, "session.player_joined").
		Str(xglog.FieldSessionID, sessionID).
		Str(xglog.FieldPlayerID, playerID).
		Int("players", next.PlayerCount()).
		Msg("player joined session")
	return next, nil
}

// RemovePlayer drops playerID. Removing an absent player succeeds.
func (s *Service) RemovePlayer(ctx context.Context, sessionID, playerID string) (model.Session, error) {
	changed := false
	next, err := s.store.Update(sessionID, func(cur model.Session) (model.Session, error) {
		changed = cur.HasPlayer(playerID)
		return cur.WithoutPlayer(playerID), nil
	})
	if err != nil {
		metrics.IncPlayerOp("leave", resultLabel(err))
		return model.Session{}, err
	}
	metrics.IncPlayerOp("leave", "ok")
	if changed {
		s.publish(ctx, ports.EventSessionUpdated, next, nil)
	}

	logger := xglog.WithContext(ctx, s.logger)
	logger.Debug().
		Str(xglog.FieldEvent, "session.player_left").
		Str(xglog.FieldSessionID, sessionID).
		Str(xglog.FieldPlayerID, playerID).
		Bool("was_member", changed).
		Msg("player left session")
	return next, nil
}

func (s *Service) publish(ctx context.Context, typ ports.EventType, sess model.Session, exit *ports.WorkerExit) {
	if s.publisher == nil {
		return
	}
	ev := ports.Event{
		Type:       typ,
		SessionID:  sess.ID,
		Title:      sess.Title,
		Code:       sess.Code,
		Endpoint:   sess.Endpoint(),
		Players:    sess.Players(),
		MaxPlayers: sess.MaxPlayers,
		At:         s.now(),
	}
	if exit != nil {
		code := exit.ExitCode
		ev.ExitCode = &code
		ev.Stderr = exit.Stderr
		if exit.Err != nil {
			ev.Error = exit.Err.Error()
		}
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, ev); err != nil {
		s.logger.Debug().Err(err).Str(xglog.FieldEvent, "session.publish_failed").Str(xglog.FieldSessionID, sess.ID).Msg("event not delivered")
	}
}

// reserveFailureLabel separates running out of ports from bind errors and
// abandoned requests.
func reserveFailureLabel(err error) string {
	switch {
	case errors.Is(err, ports.ErrPortsExhausted):
		return "port_exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "port_failed"
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, model.ErrSessionFull):
		return "full"
	default:
		return "error"
	}
}
