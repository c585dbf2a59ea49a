package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu        sync.Mutex
	set       []SetSelectionPayload
	cleared   []string
	focus     []SetFocusPayload
	selection *SelectionData
	err       error
}

func (f *fakeController) Status(context.Context) (*StatusData, error) {
	return &StatusData{
		Surfaces: 2,
		Focus:    "none",
		Selections: []SelectionStatus{
			{Target: "clipboard", Owner: "native", MimeTypes: []string{"text/plain"}, Enabled: true},
		},
	}, f.err
}

func (f *fakeController) SetSelection(_ context.Context, p SetSelectionPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, p)
	return f.err
}

func (f *fakeController) GetSelection(context.Context, GetSelectionPayload) (*SelectionData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.selection, nil
}

func (f *fakeController) ClearSelection(_ context.Context, p ClearSelectionPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, p.Target)
	return f.err
}

func (f *fakeController) SetFocus(_ context.Context, p SetFocusPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focus = append(f.focus, p)
	return f.err
}

func startControl(t *testing.T, ctl Controller) *ControlServer {
	t.Helper()
	srv, err := NewControlServer(socketPath(t), ctl, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv
}

func TestNewControlServer_RequiresPath(t *testing.T) {
	_, err := NewControlServer("", &fakeController{}, nil)
	assert.Error(t, err)
}

func TestControl_Status(t *testing.T) {
	srv := startControl(t, &fakeController{})

	status, err := NewControlClient(srv.SocketPath()).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, status.Surfaces)
	require.Len(t, status.Selections, 1)
	assert.Equal(t, "native", status.Selections[0].Owner)
}

func TestControl_SelectionRoundTrip(t *testing.T) {
	ctl := &fakeController{selection: &SelectionData{MimeType: "text/plain", Data: []byte{0, 1, 2, 'x'}}}
	srv := startControl(t, ctl)
	client := NewControlClient(srv.SocketPath())
	ctx := context.Background()

	require.NoError(t, client.SetSelection(ctx, "primary", []string{"text/plain"}, []byte("hello")))
	got, err := client.GetSelection(ctx, "clipboard", "")
	require.NoError(t, err)
	require.NoError(t, client.ClearSelection(ctx, "primary"))

	assert.Equal(t, "text/plain", got.MimeType)
	assert.Equal(t, []byte{0, 1, 2, 'x'}, got.Data)

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	require.Len(t, ctl.set, 1)
	assert.Equal(t, "primary", ctl.set[0].Target)
	assert.Equal(t, []byte("hello"), ctl.set[0].Data)
	assert.Equal(t, []string{"primary"}, ctl.cleared)
}

func TestControl_Focus(t *testing.T) {
	ctl := &fakeController{}
	srv := startControl(t, ctl)
	client := NewControlClient(srv.SocketPath())

	require.NoError(t, client.FocusNative(context.Background(), 42))
	require.NoError(t, client.ClearFocus(context.Background()))

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	require.Len(t, ctl.focus, 2)
	require.NotNil(t, ctl.focus[0].Native)
	assert.Equal(t, uint64(42), *ctl.focus[0].Native)
	assert.Nil(t, ctl.focus[1].Native)
}

func TestControl_ControllerErrorIsReported(t *testing.T) {
	srv := startControl(t, &fakeController{err: errors.New("no selection")})

	_, err := NewControlClient(srv.SocketPath()).GetSelection(context.Background(), "clipboard", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no selection")
}

func TestControl_RejectsOversizedSelection(t *testing.T) {
	ctl := &fakeController{}
	srv := startControl(t, ctl)

	err := NewControlClient(srv.SocketPath()).SetSelection(context.Background(), "clipboard", nil, make([]byte, MaxSelectionData+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
	assert.Empty(t, ctl.set)
}

func TestControl_UnknownCommandAndBadRequest(t *testing.T) {
	srv := startControl(t, &fakeController{})

	roundTrip := func(line string) Response {
		conn, err := net.Dial("unix", srv.SocketPath())
		require.NoError(t, err)
		defer conn.Close()
		_, err = conn.Write([]byte(line + "\n"))
		require.NoError(t, err)
		data, err := bufio.NewReader(conn).ReadBytes('\n')
		require.NoError(t, err)
		var resp Response
		require.NoError(t, json.Unmarshal(data, &resp))
		return resp
	}

	resp := roundTrip(`{"command":"RELOAD"}`)
	assert.Equal(t, "ERROR", resp.Status)
	assert.Contains(t, resp.Error, "Unknown command")

	resp = roundTrip(`not json`)
	assert.Equal(t, "ERROR", resp.Status)
	assert.Contains(t, resp.Error, "Invalid request")
}

func TestControl_StopRemovesSocket(t *testing.T) {
	srv, err := NewControlServer(socketPath(t), &fakeController{}, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	info, err := os.Stat(srv.SocketPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	srv.Stop()
	srv.Stop()
	_, err = os.Stat(srv.SocketPath())
	assert.True(t, os.IsNotExist(err))
}

func TestControlClient_NoServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewControlClient(filepath.Join(t.TempDir(), "missing.sock")).Status(ctx)
	assert.Error(t, err)
}
