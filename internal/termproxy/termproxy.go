// Package termproxy implements C8: a WebSocket server that authenticates
// connections against the control plane's internal endpoint, resolves the
// target container's IP, and bidirectionally relays frames to the
// sandbox's in-container terminal server (§4.8).
package termproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/audit"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/dockerctl"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
)

// ttydPort is the fixed in-container terminal server port (§6 "Sandbox
// container contract"). Only the host-side SSH port varies per project.
const ttydPort = 7681

const (
	validateTimeout = 5 * time.Second
	dialTimeout     = 10 * time.Second
)

// Close codes are outside the standard WebSocket range, matching the
// control plane's own close-code contract (§4.8, §6).
const (
	closeBadRequest      = 4400
	closeUnauthorized    = 4401
	closeBackendConnect  = 4502
	closeBackendNotReady = 4503
)

type Proxy struct {
	docker      *dockerctl.Client
	validateURL string
	httpClient  *http.Client
	upgrader    websocket.Upgrader
	audit       *audit.Logger
	logger      *log.Logger
}

func New(docker *dockerctl.Client, validateURL string, auditLogger *audit.Logger, logger *log.Logger) *Proxy {
	if logger == nil {
		logger = log.New(log.Writer(), "pomodex-termproxy ", log.LstdFlags|log.LUTC)
	}
	return &Proxy{
		docker:      docker,
		validateURL: validateURL,
		httpClient:  &http.Client{Timeout: validateTimeout},
		upgrader:    websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		audit:       auditLogger,
		logger:      logger,
	}
}

func (p *Proxy) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/terminal/{pid}", p.handleTerminal)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// handleTerminal implements the connect sequence of §4.8: parse, validate,
// resolve IP, dial upstream, relay.
func (p *Proxy) handleTerminal(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	token := r.URL.Query().Get("token")
	if pid == "" {
		p.rejectBeforeUpgrade(w, r, closeBadRequest, "Invalid path")
		return
	}
	if token == "" {
		p.rejectBeforeUpgrade(w, r, closeBadRequest, "Token required")
		return
	}

	userID, err := p.validate(r.Context(), token, pid)
	if err != nil {
		p.rejectBeforeUpgrade(w, r, closeUnauthorized, "Unauthorized")
		return
	}

	target := model.Project{ID: pid}
	containerName, _, networkName := target.DerivedNames()
	ip, err := p.docker.GetContainerIP(r.Context(), containerName, networkName)
	if err != nil {
		p.rejectBeforeUpgrade(w, r, closeBackendNotReady, "Container not running")
		return
	}

	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	upstreamURL := fmt.Sprintf("ws://%s:%d/ws", ip, ttydPort)
	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	upstream, _, err := dialer.Dial(upstreamURL, nil)
	if err != nil {
		closeWithCode(conn, closeBackendConnect, "Backend connection failed")
		return
	}
	defer upstream.Close()

	p.relay(r.Context(), conn, upstream, pid, userID)
}

// rejectBeforeUpgrade rejects a connection before any upstream is dialed:
// it upgrades the client connection and immediately closes it with the
// custom code, since the codes are only meaningful on an established
// WebSocket connection (§4.8).
func (p *Proxy) rejectBeforeUpgrade(w http.ResponseWriter, r *http.Request, code int, reason string) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	closeWithCode(conn, code, reason)
	_ = conn.Close()
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

type validateRequest struct {
	Token     string `json:"token"`
	ProjectID string `json:"project_id"`
}

type validateResponse struct {
	UserID string `json:"user_id"`
}

func (p *Proxy) validate(ctx context.Context, token, projectID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	body, err := json.Marshal(validateRequest{Token: token, ProjectID: projectID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.validateURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("validate returned status %d", resp.StatusCode)
	}
	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.UserID, nil
}
