package net

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchcore/internal/domain"
	"matchcore/internal/engine"
)

const (
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
)

var ErrImproperConversion = errors.New("net: improper task conversion")

// Server is a line-delimited JSON TCP front-end over one Engine.
// Grounded on the teacher's internal/net/server.go: a tomb-supervised
// accept loop handing connections to a WorkerPool, with a per-client
// session map guarded by a mutex. It is demonstration-only — the real
// gateway/FIX layer is explicitly out of scope (§1).
type Server struct {
	address string
	port    int
	engine  *engine.Engine
	pool    WorkerPool

	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]net.Conn
}

// New returns a Server that will dispatch parsed requests to eng.
func New(address string, port int, eng *engine.Engine) *Server {
	return &Server{
		address:  address,
		port:     port,
		engine:   eng,
		pool:     NewWorkerPool(defaultNWorkers),
		sessions: make(map[string]net.Conn),
	}
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return err
	}
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	log.Info().Str("address", listener.Addr().String()).Msg("gateway listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					log.Error().Err(err).Msg("accept failed")
					continue
				}
			}
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// Shutdown stops accepting and tears down the listener/worker tomb.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}
	defer func() {
		s.removeSession(conn.RemoteAddr().String())
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		conn.SetDeadline(time.Now().Add(defaultConnTimeout))

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.reply(conn, Report{Type: ReportError, Error: err.Error()})
			continue
		}
		s.handleRequest(conn, req)
	}
	return nil
}

func (s *Server) handleRequest(conn net.Conn, req Request) {
	switch req.Type {
	case MessageNewOrder:
		order, err := req.Order()
		if err != nil {
			s.reply(conn, Report{Type: ReportError, Error: err.Error()})
			return
		}
		if err := s.engine.Submit(order); err != nil {
			s.reply(conn, Report{Type: ReportError, Error: err.Error()})
		}
	case MessageCancelOrder:
		if err := s.engine.Cancel(req.OrderID, req.Symbol); err != nil {
			s.reply(conn, Report{Type: ReportError, Error: err.Error()})
		}
	case MessagePeekBook:
		view, ok := s.engine.PeekBook(req.Symbol)
		if !ok {
			s.reply(conn, Report{Type: ReportError, Error: "unknown symbol"})
			return
		}
		report := Report{Type: ReportBook, Symbol: req.Symbol, Depth: view.Depth}
		if view.BestBid != nil {
			bid := domain.FromTicks(*view.BestBid)
			report.BestBid = &bid
		}
		if view.BestAsk != nil {
			ask := domain.FromTicks(*view.BestAsk)
			report.BestAsk = &ask
		}
		s.reply(conn, report)
	default:
		s.reply(conn, Report{Type: ReportError, Error: ErrInvalidMessageType.Error()})
	}
}

// BroadcastTrade fans a trade out to every connected session. This is a
// demonstration convenience, not the market-data fan-out the spec treats
// as out of scope (§1): it is a direct echo, with no subscription model.
func (s *Server) BroadcastTrade(trade domain.Trade) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	for addr, conn := range s.sessions {
		if err := s.reply(conn, Report{Type: ReportExecution, Trade: &trade}); err != nil {
			delete(s.sessions, addr)
			log.Warn().Str("address", addr).Err(err).Msg("dropping session after write failure")
		}
	}
}

func (s *Server) reply(conn net.Conn, report Report) error {
	b, err := json.Marshal(report)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = conn.Write(b)
	return err
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = conn
}

func (s *Server) removeSession(addr string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, addr)
}
