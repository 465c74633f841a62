package mockserver

import (
	"bufio"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"

	"bcstcp/pkg/protocol"
)

const (
	CmdListCommands = "ListCommands"
	CmdRunningScan  = "RunningScan"

	// NoScan is the RunningScan reply while no scan is active.
	NoScan = "None"

	acceptRetryDelay = 10 * time.Millisecond
)

// HandlerFunc returns the raw reply for one request. An empty reply means
// nothing is written back, which lets tests provoke client timeouts.
type HandlerFunc func(req *protocol.Request) string

type Config struct {
	Addr string

	// DefaultReply answers commands without a registered handler.
	DefaultReply string

	// ScanPolls is how many RunningScan polls report a running scan before
	// the server starts answering NoScan.
	ScanPolls int
	ScanName  string

	Logger *zerolog.Logger
}

// Server is a scripted command server speaking the CRLF request protocol.
type Server struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	requests []string
	scanLeft int
	ln       net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func New(cfg Config) *Server {
	if cfg.DefaultReply == "" {
		cfg.DefaultReply = "OK"
	}
	if cfg.ScanName == "" {
		cfg.ScanName = "Scan1"
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		handlers: make(map[string]HandlerFunc),
		scanLeft: cfg.ScanPolls,
		conns:    make(map[net.Conn]struct{}),
	}
	s.handlers[CmdListCommands] = s.listCommands
	s.handlers[CmdRunningScan] = s.runningScan
	return s
}

// Handle registers h for the wire command name (spaces, not underscores).
func (s *Server) Handle(name string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

// StartScan makes the next polls RunningScan report a running scan.
func (s *Server) StartScan(polls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanLeft = polls
}

// Requests returns every request line received so far, CRLF included.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound listener address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	go s.Serve()
	return nil
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("mockserver: Serve called before Listen")
	}

	s.log.Info().Str("addr", ln.Addr().String()).Msg("mock server listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			time.Sleep(acceptRetryDelay)
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)

	log := s.log.With().
		Str("session", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	log.Debug().Msg("accept connect success")

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			log.Debug().Err(err).Msg("session ended")
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, line)
		s.mu.Unlock()

		reply := s.dispatch(line)
		log.Debug().Str("request", strings.TrimRight(line, "\r\n")).Str("reply", reply).Msg("handled")
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			log.Debug().Err(err).Msg("write failed")
			return
		}
	}
}

func (s *Server) dispatch(line string) string {
	req, err := protocol.ParseLine(line)
	if err != nil {
		return "ERR " + err.Error()
	}

	s.mu.Lock()
	h, ok := s.handlers[req.Name]
	s.mu.Unlock()
	if !ok {
		return s.cfg.DefaultReply
	}
	return h(req)
}

func (s *Server) listCommands(*protocol.Request) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := maps.Keys(s.handlers)
	slices.Sort(keys)
	return strings.Join(keys, ",")
}

func (s *Server) runningScan(*protocol.Request) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanLeft > 0 {
		s.scanLeft--
		return s.cfg.ScanName
	}
	return NoScan
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting, drops open sessions and waits for them to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}
