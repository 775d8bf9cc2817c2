package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/gardien/auth"
	"github.com/wfunc/gardien/broadcast"
	"github.com/wfunc/gardien/httpapi"
	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/monitor"
	"github.com/wfunc/gardien/network"
	"github.com/wfunc/gardien/oracle"
	gardien_rpc "github.com/wfunc/gardien/rpc"
	"github.com/wfunc/gardien/services"
	"github.com/wfunc/gardien/session"
	"github.com/wfunc/gardien/timer"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	HTTPAddr          string
	RPCAddr           string
	HeartbeatInterval time.Duration
	IdleTimeout       time.Duration
	AllowedOrigins    []string
}

type GameServer struct {
	opts           Options
	game           *services.GameService
	oracle         oracle.Assistant
	monitor        *monitor.Monitor
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	timers         *timer.TimerManager
	rpcServer      *gardien_rpc.Server
	httpServer     *http.Server
	router         chi.Router
	upgrader       websocket.Upgrader
	baseCtx        context.Context
	cancel         context.CancelFunc
	inflight       sync.WaitGroup
	shutdownOnce   sync.Once
	shutdownChan   chan struct{}
}

func NewGameServer(opts Options, game *services.GameService, assistant oracle.Assistant, issuer *auth.Issuer, mon *monitor.Monitor) (*GameServer, error) {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 4 * opts.HeartbeatInterval
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &GameServer{
		opts:           opts,
		game:           game,
		oracle:         assistant,
		monitor:        mon,
		sessionManager: session.NewManager(),
		timers:         timer.NewTimerManager(),
		baseCtx:        baseCtx,
		cancel:         cancel,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewSessionBroadcaster(s.sessionManager)
	game.Subscribe(broadcast.Relay(s.broadcaster))
	if mon != nil {
		game.Subscribe(mon.Listener())
	}

	// 初始化RPC服务器
	if opts.RPCAddr != "" {
		rpcServer, err := gardien_rpc.NewServer(opts.RPCAddr, gardien_rpc.NewAdminService(game))
		if err != nil {
			cancel()
			s.timers.Stop()
			return nil, fmt.Errorf("create rpc server: %w", err)
		}
		s.rpcServer = rpcServer
	}

	s.router = httpapi.New(game, issuer).Routes(opts.AllowedOrigins)
	s.router.HandleFunc("/ws", s.handleWebSocket)
	if mon != nil {
		s.router.Handle("/metrics", mon.Handler())
	}
	s.httpServer = &http.Server{
		Addr:              opts.HTTPAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.timers.AddTimer(opts.HeartbeatInterval, opts.HeartbeatInterval, s.sweepIdle)
	return s, nil
}

func (s *GameServer) Handler() http.Handler { return s.router }

// Start serves HTTP and RPC until ctx is done or a listener fails.
func (s *GameServer) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Log.Infof("Game server listening on %s", s.opts.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.rpcServer != nil {
		g.Go(s.rpcServer.Start)
	}
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-s.shutdownChan:
		}
		s.Shutdown()
		return nil
	})

	return g.Wait()
}

func (s *GameServer) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		s.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			logger.Log.Warnf("HTTP shutdown: %v", err)
		}
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
		s.timers.Stop()
		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}
		s.inflight.Wait()
	})
}

// sweepIdle closes sessions that have been silent longer than the idle
// timeout. Their read loops then clean up.
func (s *GameServer) sweepIdle() {
	cutoff := time.Now().Add(-s.opts.IdleTimeout)
	for _, sess := range s.sessionManager.Idle(cutoff) {
		logger.Log.Infof("Closing idle session %s", sess.GetID())
		sess.Close()
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.opts.HeartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	if s.monitor != nil {
		s.monitor.IncOnlinePlayers()
	}

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		if s.monitor != nil {
			s.monitor.DecOnlinePlayers()
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}
