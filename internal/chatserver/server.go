// Package chatserver serves the moment-search chat over HTTP and websocket.
package chatserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_moments/internal/assistant"
	"github.com/anatolykoptev/go_moments/internal/chatstore"
)

// UserHeader carries the authenticated user id set by the fronting proxy.
const UserHeader = "X-User-ID"

// Responder runs one chat turn.
type Responder interface {
	Submit(ctx context.Context, state assistant.AIState, content string, sink assistant.Sink) (assistant.AIState, error)
}

// DefaultSessionTTL is how long an idle live session stays in memory.
const DefaultSessionTTL = 30 * time.Minute

// Config tunes the server.
type Config struct {
	RatePerMin   int      // per-chat turns per minute; 0 disables limiting
	AllowOrigins []string // CORS and websocket origins; empty allows all
	TurnTimeout  time.Duration
	SessionTTL   time.Duration // idle sessions are evicted after this; 0 = DefaultSessionTTL
}

type session struct {
	state assistant.AIState
	user  string // "" for anonymous chats
	seen  time.Time
}

type chatLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// turnLock serialises turns on one chat; the entry lives while refs > 0.
type turnLock struct {
	mu   sync.Mutex
	refs int
}

// Server holds live chat sessions and persists signed-in users' chats.
// Sessions of persisted chats are not kept in memory.
type Server struct {
	responder Responder
	store     chatstore.Store // nil = nothing persisted
	cfg       Config
	now       func() time.Time
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]session
	limiters map[string]chatLimiter
	locks    map[string]*turnLock
}

// New creates a Server. store may be nil.
func New(r Responder, store chatstore.Store, cfg Config) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	s := &Server{
		responder: r,
		store:     store,
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[string]session),
		limiters:  make(map[string]chatLimiter),
		locks:     make(map[string]*turnLock),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", UserHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.AllowOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = s.cfg.AllowOrigins
		cc.AllowCredentials = true
	}
	r.Use(cors.New(cc))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/chats", s.listChats)
		api.GET("/chats/:id", s.getChat)
		api.DELETE("/chats/:id", s.deleteChat)
		api.POST("/chats/:id/messages", s.postMessage)
	}
	r.GET("/ws/chats/:id", s.chatSocket)
	return r
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	go s.sweepLoop(ctx)
	slog.Info("chat server listening", slog.String("addr", addr))

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func userID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(UserHeader))
}

// checkOrigin applies AllowOrigins to websocket upgrades. Requests without an
// Origin header come from non-browser clients and pass.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.cfg.AllowOrigins, "*") || slices.Contains(s.cfg.AllowOrigins, origin)
}

// allow reports whether chatID may start another turn now.
func (s *Server) allow(chatID string) bool {
	if s.cfg.RatePerMin <= 0 {
		return true
	}
	s.mu.Lock()
	l, ok := s.limiters[chatID]
	if !ok {
		l.lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.cfg.RatePerMin)), s.cfg.RatePerMin)
	}
	l.seen = s.now()
	s.limiters[chatID] = l
	s.mu.Unlock()
	return l.lim.Allow()
}

// lockChat blocks until no other turn runs on chatID and returns the release func.
func (s *Server) lockChat(chatID string) (release func()) {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &turnLock{}
		s.locks[chatID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, chatID)
		}
		s.mu.Unlock()
	}
}

// loadState returns the live session, the stored chat, or a new state. A chat
// started by another caller, signed in or anonymous, is ErrNotFound.
func (s *Server) loadState(ctx context.Context, chatID, user string) (assistant.AIState, error) {
	s.mu.Lock()
	sess, ok := s.sessions[chatID]
	s.mu.Unlock()
	if ok {
		if sess.user != user {
			return assistant.AIState{}, chatstore.ErrNotFound
		}
		return sess.state, nil
	}
	if s.store != nil {
		chat, err := s.store.Get(ctx, chatID)
		switch {
		case err == nil && chat.UserID == user:
			return chat.State(), nil
		case err == nil:
			return assistant.AIState{}, chatstore.ErrNotFound
		case !errors.Is(err, chatstore.ErrNotFound):
			return assistant.AIState{}, err
		}
	}
	return assistant.NewState(chatID), nil
}

// saveState persists signed-in users' chats and keeps everything else as a
// live session. ErrNotFound means the chat belongs to someone else.
func (s *Server) saveState(ctx context.Context, state assistant.AIState, user string) error {
	if s.store != nil && user != "" && len(state.Messages) > 0 {
		err := s.store.Save(ctx, chatstore.FromState(state, user, s.now()))
		switch {
		case err == nil:
			s.mu.Lock()
			delete(s.sessions, state.ChatID)
			s.mu.Unlock()
			return nil
		case errors.Is(err, chatstore.ErrNotFound):
			return err
		default:
			slog.Error("chat save failed, keeping it in memory",
				slog.String("chat", state.ChatID), slog.Any("error", err))
		}
	}
	s.mu.Lock()
	s.sessions[state.ChatID] = session{state: state, user: user, seen: s.now()}
	s.mu.Unlock()
	return nil
}

// dropSession forgets user's live state of chatID and reports whether there
// was any. Turn locks are left to their holders.
func (s *Server) dropSession(chatID, user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok || sess.user != user {
		return false
	}
	delete(s.sessions, chatID)
	delete(s.limiters, chatID)
	return true
}

// sweep evicts sessions idle for longer than SessionTTL. A limiter idle for a
// minute has refilled, so it goes as well.
func (s *Server) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.seen) > s.cfg.SessionTTL {
			delete(s.sessions, id)
			evicted++
		}
	}
	limiterIdle := max(s.cfg.SessionTTL, time.Minute)
	for id, l := range s.limiters {
		if now.Sub(l.seen) > limiterIdle {
			delete(s.limiters, id)
		}
	}
	return evicted
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(max(s.cfg.SessionTTL/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(s.now()); n > 0 {
				slog.Debug("chat sessions evicted", slog.Int("count", n))
			}
		}
	}
}

// runTurn loads, runs and saves one turn under the chat's lock.
func (s *Server) runTurn(ctx context.Context, chatID, user, content string, sink assistant.Sink) (assistant.AIState, error) {
	release := s.lockChat(chatID)
	defer release()

	state, err := s.loadState(ctx, chatID, user)
	if err != nil {
		return assistant.AIState{}, err
	}
	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}
	next, turnErr := s.responder.Submit(ctx, state, content, sink)
	if next.ChatID == "" {
		next.ChatID = chatID
	}
	// Saved even when the request was cancelled.
	if err := s.saveState(context.WithoutCancel(ctx), next, user); err != nil {
		return next, err
	}
	return next, turnErr
}
