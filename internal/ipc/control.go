package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// CommandType names a control request.
type CommandType string

const (
	CommandStatus         CommandType = "STATUS"
	CommandSetSelection   CommandType = "SET_SELECTION"
	CommandGetSelection   CommandType = "GET_SELECTION"
	CommandClearSelection CommandType = "CLEAR_SELECTION"
	CommandSetFocus       CommandType = "SET_FOCUS"
)

// MaxSelectionData bounds the selection content carried by one request.
const MaxSelectionData = 256 * 1024

// maxRequestLine leaves room for base64-encoded selection content.
const maxRequestLine = 1 << 20

const defaultControlTimeout = 10 * time.Second

// Request is one control request. Each connection carries one request
// and one response.
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers a Request.
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData is returned by STATUS.
type StatusData struct {
	Surfaces      int               `json:"surfaces"`
	Focus         string            `json:"focus"`
	Selections    []SelectionStatus `json:"selections"`
	Subscribers   int               `json:"subscribers"`
	UptimeSeconds int64             `json:"uptime_seconds"`
}

type SelectionStatus struct {
	Target    string   `json:"target"`
	Owner     string   `json:"owner"`
	MimeTypes []string `json:"mime_types,omitempty"`
	Enabled   bool     `json:"enabled"`
}

// SetSelectionPayload installs native content offered as every listed
// type.
type SetSelectionPayload struct {
	Target    string   `json:"target"`
	MimeTypes []string `json:"mime_types,omitempty"`
	Data      []byte   `json:"data"`
}

// GetSelectionPayload reads a selection. An empty MimeType picks the
// owner's first offer.
type GetSelectionPayload struct {
	Target   string `json:"target"`
	MimeType string `json:"mime_type,omitempty"`
}

type SelectionData struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type ClearSelectionPayload struct {
	Target string `json:"target"`
}

// SetFocusPayload moves keyboard focus to a native surface. A nil Native
// clears focus.
type SetFocusPayload struct {
	Native *uint64 `json:"native,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data any) (*Response, error) {
	resp := &Response{Status: "OK"}
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		resp.Data = bytes
	}
	return resp, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{Status: "ERROR", Error: errMsg}
}

// Controller carries out control requests against the running bridge.
type Controller interface {
	Status(ctx context.Context) (*StatusData, error)
	SetSelection(ctx context.Context, p SetSelectionPayload) error
	GetSelection(ctx context.Context, p GetSelectionPayload) (*SelectionData, error)
	ClearSelection(ctx context.Context, p ClearSelectionPayload) error
	SetFocus(ctx context.Context, p SetFocusPayload) error
}

// ControlServer answers control requests from the command line and from
// the compositor.
type ControlServer struct {
	socketPath string
	ctl        Controller
	timeout    time.Duration
	logger     *slog.Logger

	listener net.Listener

	mu           sync.Mutex
	shuttingDown bool
	wg           sync.WaitGroup
}

// NewControlServer creates a control server that will listen on
// socketPath.
func NewControlServer(socketPath string, ctl Controller, logger *slog.Logger) (*ControlServer, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("control socket path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Remove a stale socket left by a previous run
	os.Remove(socketPath)

	return &ControlServer{
		socketPath: socketPath,
		ctl:        ctl,
		timeout:    defaultControlTimeout,
		logger:     logger,
	}, nil
}

// Start begins accepting control connections.
func (s *ControlServer) Start() error {
	listener, err := listenUnix(s.socketPath)
	if err != nil {
		return err
	}
	s.listener = listener
	s.logger.Info("control socket listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// SocketPath returns the listening socket path.
func (s *ControlServer) SocketPath() string {
	return s.socketPath
}

func (s *ControlServer) acceptLoop() {
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
			s.logger.Warn("control accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *ControlServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.timeout))

	reader := bufio.NewReader(io.LimitReader(conn, maxRequestLine))
	data, err := reader.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("control read error", "error", err)
		return
	}

	var resp *Response
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		resp = NewErrorResponse(fmt.Sprintf("Invalid request: %v", err))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		resp = s.handleCommand(ctx, &req)
		cancel()
	}

	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal control response", "error", err)
		return
	}
	out = append(out, '\n')
	if _, err := conn.Write(out); err != nil {
		s.logger.Warn("failed to send control response", "error", err)
	}
}

func (s *ControlServer) handleCommand(ctx context.Context, req *Request) *Response {
	s.logger.Debug("control request", "command", req.Command)

	switch req.Command {
	case CommandStatus:
		status, err := s.ctl.Status(ctx)
		return reply(status, err)

	case CommandSetSelection:
		var p SetSelectionPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid set selection payload: %v", err))
		}
		if len(p.Data) > MaxSelectionData {
			return NewErrorResponse(fmt.Sprintf("selection data exceeds %d bytes", MaxSelectionData))
		}
		return reply(nil, s.ctl.SetSelection(ctx, p))

	case CommandGetSelection:
		var p GetSelectionPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid get selection payload: %v", err))
		}
		data, err := s.ctl.GetSelection(ctx, p)
		return reply(data, err)

	case CommandClearSelection:
		var p ClearSelectionPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid clear selection payload: %v", err))
		}
		return reply(nil, s.ctl.ClearSelection(ctx, p))

	case CommandSetFocus:
		var p SetFocusPayload
		if len(req.Payload) > 0 {
			if err := json.Unmarshal(req.Payload, &p); err != nil {
				return NewErrorResponse(fmt.Sprintf("Invalid focus payload: %v", err))
			}
		}
		return reply(nil, s.ctl.SetFocus(ctx, p))

	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func reply(data any, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// Stop closes the listener and waits for requests in flight.
func (s *ControlServer) Stop() {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}
