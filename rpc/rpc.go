package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	server   *rpc.Server
}

// NewServer listens on addr and exposes the admin service.
func NewServer(addr string, admin *AdminService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("Admin", admin); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		server:   srv,
	}, nil
}

func (s *Server) Addr() string { return s.address }

// Start accepts connections until Stop is called.
func (s *Server) Start() error {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return nil
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.server.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes review and user management to operator tools. Every
// mutating call names the acting admin.
type AdminService struct {
	game    *services.GameService
	timeout time.Duration
}

func NewAdminService(game *services.GameService) *AdminService {
	return &AdminService{game: game, timeout: 10 * time.Second}
}

// Ack is the reply of calls that return nothing.
type Ack struct {
	OK bool
}

type AdminArgs struct {
	AdminID string
}

type PendingReviewsReply struct {
	Reviews []services.PendingReview
}

func (a *AdminService) PendingReviews(args *AdminArgs, reply *PendingReviewsReply) error {
	if err := a.requireAdmin(args.AdminID); err != nil {
		return err
	}
	reply.Reviews = a.game.PendingReviews()
	return nil
}

func (a *AdminService) requireAdmin(id string) error {
	u, err := a.game.User(id)
	if err != nil || !u.IsAdmin() {
		return services.ErrNotAdmin
	}
	return nil
}

type DecisionArgs struct {
	AdminID  string
	UserID   string
	QuestID  int
	Decision services.Decision
}

func (a *AdminService) ReviewDecision(args *DecisionArgs, reply *Ack) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.game.ReviewDecision(ctx, args.AdminID, args.UserID, args.QuestID, args.Decision); err != nil {
		return err
	}
	reply.OK = true
	return nil
}

type PromoteArgs struct {
	AdminID string
	UserID  string
}

func (a *AdminService) PromoteToAdmin(args *PromoteArgs, reply *Ack) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.game.PromoteToAdmin(ctx, args.AdminID, args.UserID); err != nil {
		return err
	}
	reply.OK = true
	return nil
}

type SearchArgs struct {
	AdminID string
	Query   string
}

type SearchReply struct {
	Users []services.UserSummary
}

func (a *AdminService) SearchUsers(args *SearchArgs, reply *SearchReply) error {
	if err := a.requireAdmin(args.AdminID); err != nil {
		return err
	}
	reply.Users = a.game.SearchUsers(args.Query)
	return nil
}

type KeysReply struct {
	Keys       []string
	UnionReady bool
}

func (a *AdminService) GlobalKeys(_ *AdminArgs, reply *KeysReply) error {
	reply.Keys = a.game.GlobalKeys()
	reply.UnionReady = a.game.UnionReady()
	return nil
}
