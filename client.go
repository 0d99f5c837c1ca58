package acpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/execbridge/acp-client-go/internal/errors"
	"github.com/execbridge/acp-client-go/internal/execchannel"
	"github.com/execbridge/acp-client-go/internal/frame"
	"github.com/execbridge/acp-client-go/internal/rpc"
	"github.com/execbridge/acp-client-go/internal/wire"
)

// readerJoinTimeout bounds the wait for the frame reader goroutine
// during teardown.
const readerJoinTimeout = 2 * time.Second

// SessionInfo is a session this client has created or resumed.
type SessionInfo struct {
	SessionID  string
	WorkingDir string
}

// Client drives one remote agent over one exclusively-owned transport.
//
// Lifecycle: New -> Start (transport + frame reader + handshake) ->
// session and turn operations -> Stop. Stop is idempotent and safe to
// call after a failed Start. Client state is mutated only by the
// client's own methods; the background frame reader only feeds the
// inbound queue.
//
// The client is not safe for concurrent operations: at most one
// session or turn call may be in flight at a time.
type Client struct {
	log  *slog.Logger
	opts *Options

	mu          sync.Mutex
	initialized bool
	workingDir  string
	transport   Transport
	queue       *frame.Queue
	reader      *frame.Reader
	conn        *rpc.Conn
	sessions    map[string]SessionInfo
	agentInfo   *Implementation
	agentCaps   *AgentCapabilities
}

// New creates a client. The client does nothing until Start is called.
func New(opts ...Option) *Client {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	return &Client{
		log:      log.With("component", "client"),
		opts:     options,
		sessions: make(map[string]SessionInfo),
	}
}

// Start opens the transport, launches the frame reader, and performs
// the protocol handshake. On success the client is initialized and
// session operations become valid. On any failure the client is fully
// torn down via Stop before the error is returned.
func (c *Client) Start(ctx context.Context, workingDir string, timeout time.Duration) (err error) {
	c.mu.Lock()
	if c.transport != nil || c.initialized {
		c.mu.Unlock()

		return errors.ErrAlreadyStarted
	}
	c.mu.Unlock()

	defer func() {
		if err != nil {
			_ = c.Stop()
		}
	}()

	c.log.Info("Starting client", "working_dir", workingDir)

	transport := c.opts.Transport
	if transport == nil {
		c.log.Debug("Opening exec channel", "command", c.opts.Command)

		transport, err = execchannel.Open(c.log, c.opts.Command)
		if err != nil {
			return fmt.Errorf("open transport: %w", err)
		}
	}

	queue := frame.NewQueue(c.opts.QueueSize)
	reader := frame.NewReader(c.log, transport, queue, c.opts.Stderr)
	reader.Start()

	c.mu.Lock()
	c.transport = transport
	c.queue = queue
	c.reader = reader
	c.conn = rpc.NewConn(c.log, transport, queue)
	c.workingDir = workingDir
	c.mu.Unlock()

	initResp, err := c.handshake(ctx, timeout)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	c.mu.Lock()
	c.initialized = true
	c.agentInfo = initResp.AgentInfo
	c.agentCaps = initResp.AgentCapabilities
	c.mu.Unlock()

	agentName := ""
	if initResp.AgentInfo != nil {
		agentName = initResp.AgentInfo.Name
	}

	c.log.Info("Client initialized", "agent", agentName)

	return nil
}

// handshake issues the initialize request and blocks on its response.
func (c *Client) handshake(ctx context.Context, timeout time.Duration) (*wire.InitializeResponse, error) {
	id, err := c.conn.SendRequest(wire.MethodInitialize, wire.InitializeRequest{
		ProtocolVersion: wire.ProtocolVersion,
		ClientInfo: &wire.Implementation{
			Name:    c.opts.ClientName,
			Version: c.opts.ClientVersion,
		},
		ClientCapabilities: &wire.ClientCapabilities{},
	})
	if err != nil {
		return nil, err
	}

	result, err := c.conn.AwaitResponse(ctx, id, timeout)
	if err != nil {
		return nil, err
	}

	var initResp wire.InitializeResponse

	if err := json.Unmarshal(result, &initResp); err != nil {
		return nil, &errors.DecodeError{RawData: string(result), Err: err}
	}

	return &initResp, nil
}

// ResumeOrCreateSession returns a usable session for the working
// directory, preferring to resume a session the agent already holds
// over creating a new one. Discovery or resume failure of any kind
// falls back to creation. Requires an initialized client.
func (c *Client) ResumeOrCreateSession(ctx context.Context, workingDir string, timeout time.Duration) (string, error) {
	conn, err := c.requireInitialized()
	if err != nil {
		return "", err
	}

	if sessionID, ok := c.resumeExisting(ctx, conn, workingDir, timeout); ok {
		c.registerSession(sessionID, workingDir)

		return sessionID, nil
	}

	sessionID, err := c.createSession(ctx, conn, workingDir, timeout)
	if err != nil {
		return "", err
	}

	c.registerSession(sessionID, workingDir)

	return sessionID, nil
}

// resumeExisting discovers sessions scoped to the working directory and
// attempts to resume the most recent one. Any failure reports false.
func (c *Client) resumeExisting(ctx context.Context, conn *rpc.Conn, workingDir string, timeout time.Duration) (string, bool) {
	id, err := conn.SendRequest(wire.MethodSessionList, wire.ListSessionsRequest{CWD: workingDir})
	if err != nil {
		c.log.Warn("Session discovery failed to send", "error", err)

		return "", false
	}

	result, err := conn.AwaitResponse(ctx, id, timeout)
	if err != nil {
		c.log.Warn("Session discovery failed", "error", err)

		return "", false
	}

	var listResp wire.ListSessionsResponse

	if err := json.Unmarshal(result, &listResp); err != nil {
		c.log.Warn("Session discovery returned undecodable result", "error", err)

		return "", false
	}

	if len(listResp.Sessions) == 0 {
		c.log.Debug("No existing sessions for working directory", "working_dir", workingDir)

		return "", false
	}

	// The list is ordered most recent first.
	target := listResp.Sessions[0]

	c.log.Debug("Resuming session", "session_id", target.SessionID, "title", target.Title)

	id, err = conn.SendRequest(wire.MethodSessionLoad, wire.LoadSessionRequest{
		SessionID: target.SessionID,
		CWD:       workingDir,
	})
	if err != nil {
		c.log.Warn("Session resume failed to send", "error", err)

		return "", false
	}

	result, err = conn.AwaitResponse(ctx, id, timeout)
	if err != nil {
		c.log.Warn("Session resume failed, falling back to create", "session_id", target.SessionID, "error", err)

		return "", false
	}

	var loadResp wire.LoadSessionResponse

	if err := json.Unmarshal(result, &loadResp); err != nil {
		c.log.Warn("Session resume returned undecodable result", "error", err)

		return "", false
	}

	// The agent may re-assign the identifier on resume.
	sessionID := loadResp.SessionID
	if sessionID == "" {
		sessionID = target.SessionID
	}

	c.log.Info("Resumed session", "session_id", sessionID)

	return sessionID, true
}

// createSession issues a create-session request.
func (c *Client) createSession(ctx context.Context, conn *rpc.Conn, workingDir string, timeout time.Duration) (string, error) {
	id, err := conn.SendRequest(wire.MethodSessionNew, wire.NewSessionRequest{
		CWD:        workingDir,
		McpServers: []wire.McpServerConfig{},
	})
	if err != nil {
		return "", err
	}

	result, err := conn.AwaitResponse(ctx, id, timeout)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	var newResp wire.NewSessionResponse

	if err := json.Unmarshal(result, &newResp); err != nil {
		return "", &errors.DecodeError{RawData: string(result), Err: err}
	}

	c.log.Info("Created session", "session_id", newResp.SessionID)

	return newResp.SessionID, nil
}

// SetSessionMode switches the session's operating mode.
func (c *Client) SetSessionMode(ctx context.Context, sessionID, modeID string, timeout time.Duration) error {
	conn, err := c.requireInitialized()
	if err != nil {
		return err
	}

	if _, err := c.lookupSession(sessionID); err != nil {
		return err
	}

	id, err := conn.SendRequest(wire.MethodSessionSetMode, wire.SetSessionModeRequest{
		SessionID: sessionID,
		ModeID:    modeID,
	})
	if err != nil {
		return err
	}

	if _, err := conn.AwaitResponse(ctx, id, timeout); err != nil {
		return fmt.Errorf("set session mode: %w", err)
	}

	c.log.Debug("Session mode set", "session_id", sessionID, "mode_id", modeID)

	return nil
}

// Stop tears the client down: it signals the frame reader to halt,
// joins it with a bounded wait, closes the transport, and resets all
// client state to empty. Idempotent; safe to call multiple times and
// from a failure path.
func (c *Client) Stop() error {
	c.mu.Lock()
	reader := c.reader
	transport := c.transport
	queue := c.queue

	c.reader = nil
	c.transport = nil
	c.queue = nil
	c.conn = nil
	c.initialized = false
	c.workingDir = ""
	c.agentInfo = nil
	c.agentCaps = nil
	c.sessions = make(map[string]SessionInfo)
	c.mu.Unlock()

	if reader == nil && transport == nil {
		return nil
	}

	c.log.Debug("Stopping client")

	if reader != nil {
		reader.Stop(readerJoinTimeout)
	}

	if queue != nil {
		queue.Close()
	}

	if transport != nil {
		if err := transport.Close(); err != nil {
			c.log.Warn("Transport close failed", "error", err)
		}
	}

	c.log.Info("Client stopped")

	return nil
}

// Sessions returns the sessions this client has created or resumed.
func (c *Client) Sessions() []SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SessionInfo, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}

	return out
}

// AgentInfo returns the agent identity captured from the handshake, or
// nil before initialization.
func (c *Client) AgentInfo() *Implementation {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.agentInfo
}

// AgentCapabilities returns the agent capability record captured from
// the handshake, or nil before initialization.
func (c *Client) AgentCapabilities() *AgentCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.agentCaps
}

// requireInitialized fails fast when the handshake has not completed.
// Violating this is a programmer error, not a recoverable condition.
func (c *Client) requireInitialized() (*rpc.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized || c.conn == nil {
		return nil, errors.ErrNotInitialized
	}

	return c.conn, nil
}

// lookupSession returns the registered session or ErrUnknownSession.
func (c *Client) lookupSession(sessionID string) (SessionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.sessions[sessionID]
	if !ok {
		return SessionInfo{}, fmt.Errorf("%w: %s", errors.ErrUnknownSession, sessionID)
	}

	return info, nil
}

// registerSession records a session as usable for prompting.
func (c *Client) registerSession(sessionID, workingDir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[sessionID] = SessionInfo{SessionID: sessionID, WorkingDir: workingDir}
}
