package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, h Handler) (*Server, string) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "wgd.sock")
	l, err := Listen(sockPath)
	require.NoError(t, err)

	s := &Server{Handler: h}
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })
	return s, sockPath
}

func TestClientServerRoundTrip(t *testing.T) {
	_, sockPath := startTestServer(t, func(req Request) Response {
		if req.Type != ReqStatus {
			return Response{OK: false, Error: "unexpected request type"}
		}
		return Response{OK: true, Status: &StatusPayload{PID: 1234, TicksRun: 7}}
	})

	c := NewClient(sockPath)
	resp, err := c.Call(Request{Type: ReqStatus})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	require.NotNil(t, resp.Status)
	assert.Equal(t, 1234, resp.Status.PID)
	assert.Equal(t, int64(7), resp.Status.TicksRun)
}

func TestServerEnforcesAddTaskRateLimit(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "wgd.sock")
	l, err := Listen(sockPath)
	require.NoError(t, err)

	s := &Server{Handler: func(req Request) Response {
		return Response{OK: true}
	}, AddTaskRateLimit: 2}
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })

	// The limiter is per connection, so every request goes over one conn.
	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	defer conn.Close()
	enc := json.NewEncoder(conn)
	scanner := bufio.NewScanner(conn)

	var rejected int
	for i := 0; i < 10; i++ {
		require.NoError(t, enc.Encode(Request{Type: ReqAddTask, TaskID: "t"}))
		require.True(t, scanner.Scan())
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		if !resp.OK {
			rejected++
		}
	}
	assert.Greater(t, rejected, 0, "expected rate limiting to reject at least one rapid add_task call")
}
