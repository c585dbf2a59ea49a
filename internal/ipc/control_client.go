package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// ControlClient sends control requests to a running bridge.
type ControlClient struct {
	socketPath string
	timeout    time.Duration
}

// NewControlClient creates a client for the control socket at socketPath.
func NewControlClient(socketPath string) *ControlClient {
	return &ControlClient{
		socketPath: socketPath,
		timeout:    defaultControlTimeout,
	}
}

// sendRequest sends a request and waits for a response
func (c *ControlClient) sendRequest(ctx context.Context, command CommandType, payload any) (*Response, error) {
	req := Request{Command: command}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = data
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge: %w (is the bridge running?)", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	respData, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("bridge error: %s", resp.Error)
	}
	return &resp, nil
}

// Status retrieves the bridge status.
func (c *ControlClient) Status(ctx context.Context) (*StatusData, error) {
	resp, err := c.sendRequest(ctx, CommandStatus, nil)
	if err != nil {
		return nil, err
	}
	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status data: %w", err)
	}
	return &status, nil
}

// SetSelection installs data as the native selection of target.
func (c *ControlClient) SetSelection(ctx context.Context, target string, mimeTypes []string, data []byte) error {
	_, err := c.sendRequest(ctx, CommandSetSelection, SetSelectionPayload{
		Target:    target,
		MimeTypes: mimeTypes,
		Data:      data,
	})
	return err
}

// GetSelection reads the current content of target.
func (c *ControlClient) GetSelection(ctx context.Context, target, mimeType string) (*SelectionData, error) {
	resp, err := c.sendRequest(ctx, CommandGetSelection, GetSelectionPayload{
		Target:   target,
		MimeType: mimeType,
	})
	if err != nil {
		return nil, err
	}
	var data SelectionData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse selection data: %w", err)
	}
	return &data, nil
}

// ClearSelection drops the selection of target.
func (c *ControlClient) ClearSelection(ctx context.Context, target string) error {
	_, err := c.sendRequest(ctx, CommandClearSelection, ClearSelectionPayload{Target: target})
	return err
}

// FocusNative reports that the native surface handle now holds keyboard
// focus.
func (c *ControlClient) FocusNative(ctx context.Context, handle uint64) error {
	_, err := c.sendRequest(ctx, CommandSetFocus, SetFocusPayload{Native: &handle})
	return err
}

// ClearFocus reports that nothing holds keyboard focus.
func (c *ControlClient) ClearFocus(ctx context.Context) error {
	_, err := c.sendRequest(ctx, CommandSetFocus, SetFocusPayload{})
	return err
}
