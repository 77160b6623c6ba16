package handlers

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"spinwin/internal/auth"
	"spinwin/internal/catalog"
	"spinwin/internal/config"
	"spinwin/internal/kiosk"
	"spinwin/internal/logging"
	"spinwin/internal/sms"
	"spinwin/internal/store"
)

const sweepInterval = time.Minute

type Server struct {
	Cfg       config.Config
	DB        *sql.DB
	Redis     *redis.Client
	Sessions  *kiosk.Registry
	Catalog   *catalog.Cached
	Plays     *store.Plays
	JWTSecret []byte
	Hub       *Hub
	SMS       *sms.SubmailClient
	log       zerolog.Logger

	pending sync.Map
	totals  sync.Map

	smsMu   sync.Mutex
	smsSent map[string]uint64
}

func NewServer(cfg config.Config, db *sql.DB, rdb *redis.Client, sessions *kiosk.Registry, cat *catalog.Cached, plays *store.Plays, log zerolog.Logger) *Server {
	return &Server{
		Cfg:       cfg,
		DB:        db,
		Redis:     rdb,
		Sessions:  sessions,
		Catalog:   cat,
		Plays:     plays,
		JWTSecret: []byte(cfg.JWTSecret),
		Hub:       NewHub(),
		SMS:       sms.NewSubmailClient(cfg.SubmailAppID, cfg.SubmailAppKey, cfg.SubmailProjectID),
		log:       logging.WithComponent(log, "http"),
		smsSent:   make(map[string]uint64),
	}
}

// Start runs the metrics flusher and the idle session sweeper until ctx ends.
func (s *Server) Start(ctx context.Context) {
	go s.runMetricsFlusher(ctx)
	go s.runSweeper(ctx)
}

// SignKioskToken opens a new session for kioskID and returns its token.
func (s *Server) SignKioskToken(ctx context.Context, kioskID string) (string, *kiosk.Session, error) {
	sess := s.Sessions.Create(kioskID)
	if err := s.saveSession(ctx, sess.ID, kioskID, s.Cfg.KioskTokenTTL); err != nil {
		s.Sessions.Remove(sess.ID)
		return "", nil, err
	}
	token, err := auth.GenerateToken(s.JWTSecret, kioskID, sess.ID, s.Cfg.KioskTokenTTL)
	if err != nil {
		s.Sessions.Remove(sess.ID)
		return "", nil, err
	}
	return token, sess, nil
}

func (s *Server) saveSession(ctx context.Context, sessionID, kioskID string, ttl time.Duration) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Set(ctx, sessionKey(sessionID), kioskID, ttl).Err()
}

func (s *Server) validateSession(ctx context.Context, claims *auth.Claims) error {
	if s.Redis == nil {
		return nil
	}
	val, err := s.Redis.Get(ctx, sessionKey(claims.SessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errInvalidSession
		}
		return err
	}
	if val != claims.KioskID {
		return errInvalidSession
	}
	return nil
}

func (s *Server) revokeSession(ctx context.Context, sessionID string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("revoke session key failed")
	}
}

// session resolves the claims to a live session, restoring it after a restart.
func (s *Server) session(claims *auth.Claims) *kiosk.Session {
	return s.Sessions.Restore(claims.SessionID, claims.KioskID)
}

func (s *Server) runSweeper(ctx context.Context) {
	if s.Cfg.SessionIdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sessions.Sweep(now, s.Cfg.SessionIdleTTL)
		}
	}
}
