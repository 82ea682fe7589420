package socketio

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	socket "github.com/zishang520/socket.io/socket"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/internal/features/user"
	jwtutil "github.com/mo-amir99/course-market-go/internal/utils/jwt"
)

const heartbeatInterval = 30 * time.Second

// Server pushes live notifications to authenticated browser sessions.
// Every socket joins a room named after its user.
type Server struct {
	io        *socket.Server
	db        *gorm.DB
	logger    *slog.Logger
	jwtSecret string

	heartbeatStop chan struct{}
	heartbeatWG   sync.WaitGroup

	connMutex   sync.RWMutex
	connections map[string]*socket.Socket
	online      map[uuid.UUID]int
}

// NewServer creates the Socket.IO server and starts its heartbeat.
func NewServer(db *gorm.DB, logger *slog.Logger, jwtSecret string) (*Server, error) {
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(60 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetServeClient(false)
	opts.SetPath("/socket.io")

	s := &Server{
		io:          socket.NewServer(nil, opts),
		db:          db,
		logger:      logger,
		jwtSecret:   jwtSecret,
		connections: make(map[string]*socket.Socket),
		online:      make(map[uuid.UUID]int),
	}

	s.io.Use(s.authenticate)
	s.io.On("connection", func(args ...any) {
		sock, ok := args[0].(*socket.Socket)
		if !ok {
			s.logger.Error("unexpected connection payload", slog.Any("payload", args))
			return
		}
		s.handleConnection(sock)
	})
	s.startHeartbeat()

	return s, nil
}

// GetHandler returns the HTTP handler for Socket.IO.
func (s *Server) GetHandler() http.Handler {
	return s.io.ServeHandler(nil)
}

// Close stops the heartbeat and disconnects every client.
func (s *Server) Close() error {
	if stop := s.heartbeatStop; stop != nil {
		close(stop)
		s.heartbeatWG.Wait()
		s.heartbeatStop = nil
	}

	done := make(chan struct{})
	s.io.Close(func() {
		close(done)
	})
	<-done
	return nil
}

// EmitToUser sends an event to every open connection of a user. Users without a
// connection simply miss it; the stored notification remains the source of truth.
func (s *Server) EmitToUser(userID uuid.UUID, event string, payload interface{}) {
	if err := s.io.To(userRoom(userID)).Emit(event, payload); err != nil {
		s.logger.Debug("socket emit failed", slog.String("userId", userID.String()), slog.String("event", event), slog.String("error", err.Error()))
	}
}

// Stats reports open sockets and distinct connected users.
func (s *Server) Stats() (connections, users int) {
	s.connMutex.RLock()
	defer s.connMutex.RUnlock()
	return len(s.connections), len(s.online)
}

func (s *Server) authenticate(sock *socket.Socket, next func(*socket.ExtendedError)) {
	token := extractToken(sock)
	if token == "" {
		s.logger.Warn("socket connection rejected: missing token")
		next(socket.NewExtendedError("missing authentication token", map[string]any{"code": "MISSING_TOKEN"}))
		return
	}

	claims, err := jwtutil.VerifyKind(token, s.jwtSecret, jwtutil.KindAccess)
	if err != nil {
		s.logger.Warn("socket connection rejected: invalid token", slog.String("error", err.Error()))
		next(socket.NewExtendedError("invalid token", map[string]any{"code": "INVALID_TOKEN"}))
		return
	}

	var account user.User
	if err := s.db.First(&account, "id = ?", claims.UserID).Error; err != nil {
		s.logger.Warn("socket connection rejected: user not found", slog.Any("userId", claims.UserID), slog.String("error", err.Error()))
		next(socket.NewExtendedError("user not found", map[string]any{"code": "USER_NOT_FOUND"}))
		return
	}
	if !account.Active {
		next(socket.NewExtendedError("account is deactivated", map[string]any{"code": "ACCOUNT_INACTIVE"}))
		return
	}

	sock.SetData(&account)
	next(nil)
}

func (s *Server) handleConnection(sock *socket.Socket) {
	account := socketUser(sock)
	if account == nil {
		s.logger.Error("connection established without user context")
		sock.Disconnect(true)
		return
	}

	s.connMutex.Lock()
	s.connections[string(sock.Id())] = sock
	s.online[account.ID]++
	s.connMutex.Unlock()

	sock.Join(userRoom(account.ID))

	s.logger.Info("socket connected",
		slog.String("userId", account.ID.String()),
		slog.String("userType", string(account.UserType)),
		slog.String("connId", string(sock.Id())),
	)

	if err := sock.Emit("connectionConfirmed", map[string]any{
		"userId":    account.ID.String(),
		"userName":  account.FullName,
		"userType":  account.UserType,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.logger.Warn("failed to emit connection confirmation", slog.String("error", err.Error()))
	}

	sock.On("disconnect", func(args ...any) {
		reason := "client"
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}
		s.handleDisconnect(sock, account.ID, reason)
	})
}

func (s *Server) handleDisconnect(sock *socket.Socket, userID uuid.UUID, reason string) {
	s.connMutex.Lock()
	delete(s.connections, string(sock.Id()))
	if s.online[userID] <= 1 {
		delete(s.online, userID)
	} else {
		s.online[userID]--
	}
	s.connMutex.Unlock()

	s.logger.Info("socket disconnected", slog.String("userId", userID.String()), slog.String("reason", reason))
}

func (s *Server) startHeartbeat() {
	s.heartbeatStop = make(chan struct{})
	s.heartbeatWG.Add(1)

	go func() {
		defer s.heartbeatWG.Done()
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.io.Local().Emit("ping", time.Now().Unix()); err != nil {
					s.logger.Debug("heartbeat emit failed", slog.String("error", err.Error()))
				}
			case <-s.heartbeatStop:
				return
			}
		}
	}()
}

func socketUser(sock *socket.Socket) *user.User {
	if sock == nil {
		return nil
	}
	if data, ok := sock.Data().(*user.User); ok {
		return data
	}
	return nil
}

// extractToken reads the access token from the handshake auth payload or the query string.
func extractToken(sock *socket.Socket) string {
	if sock == nil {
		return ""
	}

	if hs := sock.Handshake(); hs != nil {
		if auth, ok := hs.Auth.(map[string]any); ok {
			if token, ok := auth["token"].(string); ok && token != "" {
				return token
			}
		}
		if hs.Query != nil {
			if token, ok := hs.Query.Get("token"); ok && token != "" {
				return token
			}
		}
	}

	if conn := sock.Conn(); conn != nil {
		if ctx := conn.Request(); ctx != nil {
			if req := ctx.Request(); req != nil {
				if token := req.URL.Query().Get("token"); token != "" {
					return token
				}
			}
		}
	}

	return ""
}

func userRoom(userID uuid.UUID) socket.Room {
	return socket.Room("user_" + userID.String())
}
