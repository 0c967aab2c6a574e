// Package httpapi exposes the chess service over HTTP: the stateless /py/* endpoints,
// the live two-player API under /api/games and a spectator WebSocket.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-server/internal/challenge"
	"github.com/park285/cheese-chess-server/internal/msgcat"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	svcchess "github.com/park285/cheese-chess-server/internal/service/chess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"

// HistoryStore lists finished games.
type HistoryStore interface {
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]chessdto.ChessGame, error)
}

// Deps are the components the server routes to. Games, History and Challenges are
// optional; their routes answer 503 when absent.
type Deps struct {
	Chess      *svcchess.Service
	Messages   *msgcat.Catalog
	Games      *pvpchess.Manager
	History    HistoryStore
	Challenges *challenge.Registry
}

type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	Now            func() time.Time
}

type Server struct {
	deps  Deps
	opts  Options
	srvMu sync.Mutex
	srv   *http.Server
}

func New(deps Deps, opts Options) (*Server, error) {
	if deps.Chess == nil || deps.Messages == nil {
		return nil, errors.New("httpapi: chess service and message catalog are required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{deps: deps, opts: opts}, nil
}

// Listen serves until Close is called.
func (s *Server) Listen(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()
	defer func() {
		s.srvMu.Lock()
		s.srv = nil
		s.srvMu.Unlock()
	}()

	obslog.L().Info("http_listen", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close attempts a graceful shutdown of the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the routed handler wrapped with CORS and logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("chess server is running\n"))
	})

	mux.HandleFunc("GET /py/health", s.withJSON(s.handleHealth))
	mux.HandleFunc("GET /py/newgame", s.withJSON(s.handleNewGame))
	mux.HandleFunc("POST /py/status", s.withJSON(s.handleStatus))
	mux.HandleFunc("POST /py/move", s.withJSON(s.handleMove))
	mux.HandleFunc("POST /py/undo", s.withJSON(s.handleUndo))
	mux.HandleFunc("POST /py/pgn", s.withJSON(s.handlePGN))
	mux.HandleFunc("GET /py/board.png", s.handleBoardImage)

	mux.HandleFunc("GET /py/friends", s.withJSON(s.handleFriends))
	mux.HandleFunc("POST /py/friends/add", s.withJSON(s.friendStub("friends.added")))
	mux.HandleFunc("POST /py/friends/accept", s.withJSON(s.friendStub("friends.accepted")))
	mux.HandleFunc("POST /py/friends/reject", s.withJSON(s.friendStub("friends.rejected")))

	mux.HandleFunc("POST /py/challenges/create", s.withJSON(s.handleChallengeCreate))
	mux.HandleFunc("GET /py/challenges", s.withJSON(s.handleChallengeList))
	mux.HandleFunc("POST /py/challenges/{id}/accept", s.withJSON(s.handleChallengeAccept))
	mux.HandleFunc("POST /py/challenges/{id}/decline", s.withJSON(s.handleChallengeDecline))

	mux.HandleFunc("POST /api/games", s.withJSON(s.handleGameCreate))
	mux.HandleFunc("GET /api/games/{id}", s.withJSON(s.handleGameGet))
	mux.HandleFunc("POST /api/games/{id}/move", s.withJSON(s.handleGameMove))
	mux.HandleFunc("POST /api/games/{id}/undo", s.withJSON(s.handleGameUndo))
	mux.HandleFunc("POST /api/games/{id}/resign", s.withJSON(s.handleGameResign))
	mux.HandleFunc("POST /api/games/{id}/claim-timeout", s.withJSON(s.handleGameClaimTimeout))
	mux.HandleFunc("GET /api/games/{id}/pgn", s.withJSON(s.handleGamePGN))
	mux.HandleFunc("GET /api/games/{id}/board.png", s.handleGameBoard)
	mux.HandleFunc("GET /api/players/{id}/games", s.withJSON(s.handlePlayerHistory))

	mux.HandleFunc("GET /ws/games/{id}", s.handleSpectate)

	return s.withCORS(s.withAccessLog(mux))
}

func (s *Server) withJSON(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", apiCSP)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
		}
		h(w, r)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	wildcard := slices.Contains(s.opts.AllowedOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (wildcard || slices.Contains(s.opts.AllowedOrigins, origin)) {
			h := w.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the WebSocket upgrade reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		obslog.L().Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}
