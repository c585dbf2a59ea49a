package ipc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// DefaultQueueSize is the per-subscriber backlog used when none is set.
const DefaultQueueSize = 256

const writeTimeout = 5 * time.Second

// ErrServerStopped is returned by InvokeMethod after Stop.
var ErrServerStopped = errors.New("ipc server stopped")

// Server is the method-invocation channel to the UI engine. Every connected
// engine receives every call, in submission order.
type Server struct {
	socketPath string
	codec      Codec
	queueSize  int
	logger     *slog.Logger

	listener net.Listener

	mu           sync.Mutex
	subs         map[*subscriber]struct{}
	shuttingDown bool
	wg           sync.WaitGroup
}

type subscriber struct {
	conn  net.Conn
	queue chan []byte
	once  sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.queue)
		s.conn.Close()
	})
}

// NewServer creates a server that will listen on socketPath.
func NewServer(socketPath string, codec Codec, queueSize int, logger *slog.Logger) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("ipc socket path is empty")
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Remove a stale socket left by a previous run
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		codec:      codec,
		queueSize:  queueSize,
		logger:     logger,
		subs:       make(map[*subscriber]struct{}),
	}, nil
}

// Start begins accepting UI engine connections.
func (s *Server) Start() error {
	listener, err := listenUnix(s.socketPath)
	if err != nil {
		return err
	}
	s.listener = listener

	s.logger.Info("method channel listening", "socket", s.socketPath, "codec", s.codec.Name())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// listenUnix listens on path, readable by the owner only.
func listenUnix(path string) (net.Listener, error) {
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create IPC socket: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

// SocketPath returns the listening socket path.
func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.shuttingDown
			s.mu.Unlock()
			if stopping || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		sub := &subscriber{conn: conn, queue: make(chan []byte, s.queueSize)}
		s.mu.Lock()
		if s.shuttingDown {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.subs[sub] = struct{}{}
		count := len(s.subs)
		s.mu.Unlock()

		s.logger.Info("UI engine connected", "subscribers", count)

		s.wg.Add(2)
		go s.writeLoop(sub)
		go s.watch(sub)
	}
}

// writeLoop drains the subscriber queue onto its connection.
func (s *Server) writeLoop(sub *subscriber) {
	defer s.wg.Done()
	for frame := range sub.queue {
		sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := sub.conn.Write(frame); err != nil {
			s.logger.Warn("failed to deliver method call", "error", err)
			s.drop(sub)
			for range sub.queue {
			}
			return
		}
	}
}

// watch notices a subscriber hanging up. Engines never send anything.
func (s *Server) watch(sub *subscriber) {
	defer s.wg.Done()
	io.Copy(io.Discard, sub.conn)
	s.drop(sub)
}

func (s *Server) drop(sub *subscriber) {
	s.mu.Lock()
	_, ok := s.subs[sub]
	delete(s.subs, sub)
	s.mu.Unlock()

	sub.close()
	if ok {
		s.logger.Info("UI engine disconnected")
	}
}

// InvokeMethod queues a call for every connected engine. It never blocks:
// an engine whose backlog is full is disconnected.
func (s *Server) InvokeMethod(method string, args any) error {
	call, err := NewMethodCall(method, args)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := s.codec.Encode(&buf, call); err != nil {
		return err
	}
	frame := buf.Bytes()

	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return ErrServerStopped
	}
	var slow []*subscriber
	for sub := range s.subs {
		select {
		case sub.queue <- frame:
		default:
			slow = append(slow, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range slow {
		s.logger.Warn("UI engine fell behind, disconnecting", "method", method)
		s.drop(sub)
	}
	return nil
}

// Subscribers returns the number of connected engines.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Stop closes the listener and every subscriber connection.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = map[*subscriber]struct{}{}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	for _, sub := range subs {
		sub.close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}
