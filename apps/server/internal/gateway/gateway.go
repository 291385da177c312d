package gateway

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"clocktower-lite/apps/server/internal/auth"
	"clocktower-lite/apps/server/internal/codec"
	"clocktower-lite/apps/server/internal/lobby"
	"clocktower-lite/apps/server/internal/table"
	"clocktower-lite/grimoire"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 65536
)

// Error codes carried by error envelopes.
const (
	codeBadMessage    = 1
	codeTableNotFound = 2
	codeNotInTable    = 3
	codeRejected      = 4
	codeForbidden     = 5
)

// Connection represents a WebSocket client connection
type Connection struct {
	ID        string
	UserID    uint64
	Name      string
	Spectator bool
	Conn      *websocket.Conn
	Send      chan []byte
	Gateway   *Gateway
	LastPing  time.Time

	mu    sync.Mutex
	table *table.Table
}

// Gateway manages WebSocket connections
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	userConns   map[uint64]*Connection
	nextConnID  uint64
	seq         uint64
	lobby       *lobby.Lobby
	auth        auth.Service
	upgrader    websocket.Upgrader
}

// New creates a new Gateway instance. allowedOrigins empty accepts any origin.
func New(lby *lobby.Lobby, authService auth.Service, allowedOrigins ...string) *Gateway {
	g := &Gateway{
		connections: make(map[string]*Connection),
		userConns:   make(map[uint64]*Connection),
		lobby:       lby,
		auth:        authService,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// HandleWebSocket upgrades /ws?token=... A storyteller session token binds the
// connection to that account; anything else gets a spectator session.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID, name, storyteller := g.auth.ResolveSession(token)
	reused := storyteller
	if !storyteller {
		userID, name, token, reused = g.auth.ResolveOrCreateSpectator(token)
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:        fmt.Sprintf("conn_%d", g.nextConnID),
		UserID:    userID,
		Name:      name,
		Spectator: !storyteller,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		Gateway:   g,
		LastPing:  time.Now(),
	}
	prev := g.userConns[userID]
	if prev != nil {
		delete(g.connections, prev.ID)
		close(prev.Send)
	}
	g.connections[c.ID] = c
	g.userConns[userID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s (user=%d name=%s storyteller=%v reused=%v), total: %d",
		c.ID, userID, name, storyteller, reused, total)

	c.sendMessage("", codec.TypeSession, map[string]any{
		"user_id":       userID,
		"name":          name,
		"storyteller":   storyteller,
		"session_token": token,
	})

	// A reconnecting user takes over the table of the connection it replaces.
	if prev != nil {
		if t := prev.currentTable(); t != nil {
			if err := t.SubmitEvent(table.Event{Type: table.EventConnResume, UserID: userID}); err == nil {
				c.setTable(t)
			}
		}
	}

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessage)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}
		if messageType == websocket.BinaryMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) currentTable() *table.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table
}

func (c *Connection) setTable(t *table.Table) {
	c.mu.Lock()
	c.table = t
	c.mu.Unlock()
}

func (c *Connection) tableID() string {
	if t := c.currentTable(); t != nil {
		return t.ID
	}
	return ""
}

func (c *Connection) handleMessage(data []byte) {
	env, err := codec.DecodeClient(data)
	if err != nil {
		log.Printf("[Gateway] Failed to decode from user %d: %v", c.UserID, err)
		c.sendError(codeBadMessage, "invalid message format")
		return
	}

	switch env.Type {
	case codec.TypeCreateTable:
		c.handleCreateTable(env)
	case codec.TypeJoinTable:
		c.handleJoinTable(env)
	case codec.TypeLeaveTable:
		c.handleLeaveTable()
	case codec.TypeListTables:
		c.sendMessage("", codec.TypeTableList, map[string]any{"tables": c.Gateway.lobby.ListTables()})
	default:
		c.handleTableCommand(env)
	}
}

func (c *Connection) handleCreateTable(env *codec.ClientEnvelope) {
	if c.Spectator {
		c.sendError(codeForbidden, "sign in as a storyteller to run a table")
		return
	}
	var cfg table.TableConfig
	if err := env.Decode(&cfg); err != nil {
		c.sendError(codeBadMessage, err.Error())
		return
	}
	t, err := c.Gateway.lobby.CreateTable(c.UserID, c.Name, cfg, c.Gateway.sendToUser)
	if err != nil {
		c.sendError(codeRejected, err.Error())
		return
	}
	c.join(t)
}

func (c *Connection) handleJoinTable(env *codec.ClientEnvelope) {
	t := c.Gateway.lobby.GetTable(env.TableID)
	if t == nil {
		c.sendError(codeTableNotFound, "table not found")
		return
	}
	c.join(t)
}

func (c *Connection) join(t *table.Table) {
	if prev := c.currentTable(); prev != nil && prev != t {
		_ = prev.SubmitEvent(table.Event{Type: table.EventLeaveTable, UserID: c.UserID})
	}
	if err := t.SubmitEvent(table.Event{Type: table.EventJoinTable, UserID: c.UserID, Name: c.Name}); err != nil {
		c.sendError(codeRejected, err.Error())
		return
	}
	c.setTable(t)
	log.Printf("[Gateway] User %d joined table %s", c.UserID, t.ID)
}

func (c *Connection) handleLeaveTable() {
	t := c.currentTable()
	if t == nil {
		return
	}
	_ = t.SubmitEvent(table.Event{Type: table.EventLeaveTable, UserID: c.UserID})
	c.setTable(nil)
}

type commandPayload struct {
	Script      string `json:"script"`
	Residents   int    `json:"residents"`
	Travelers   int    `json:"travelers"`
	Seat        int    `json:"seat"`
	Username    string `json:"username"`
	Status      string `json:"status"`
	Winner      string `json:"winner"`
	Storyteller string `json:"storyteller"`
}

// handleTableCommand turns a storyteller command into a table event.
func (c *Connection) handleTableCommand(env *codec.ClientEnvelope) {
	t := c.currentTable()
	if t == nil {
		c.sendError(codeNotInTable, "not in a table")
		return
	}
	var p commandPayload
	if err := env.Decode(&p); err != nil {
		c.sendError(codeBadMessage, err.Error())
		return
	}
	e, err := commandEvent(env.Type, p)
	if err != nil {
		c.sendError(codeBadMessage, err.Error())
		return
	}
	e.UserID = c.UserID
	if err := t.SubmitEvent(e); err != nil {
		code := int32(codeRejected)
		if errors.Is(err, table.ErrNotStoryteller) {
			code = codeForbidden
		}
		c.sendError(code, err.Error())
		return
	}
	if e.Type == table.EventClose {
		c.setTable(nil)
	}
}

func commandEvent(msgType string, p commandPayload) (table.Event, error) {
	switch msgType {
	case codec.TypeConfigure:
		return table.Event{Type: table.EventConfigure, Config: table.TableConfig{
			Script:    p.Script,
			Residents: p.Residents,
			Travelers: p.Travelers,
		}}, nil
	case codec.TypeGenerate:
		return table.Event{Type: table.EventGenerate}, nil
	case codec.TypeSetUsername:
		return table.Event{Type: table.EventSetUsername, Seat: p.Seat, Username: p.Username}, nil
	case codec.TypeToggleStatus:
		status, err := grimoire.ParseStatus(p.Status)
		if err != nil {
			return table.Event{}, err
		}
		return table.Event{Type: table.EventToggleStatus, Seat: p.Seat, Status: status}, nil
	case codec.TypeClearStatuses:
		return table.Event{Type: table.EventClearStatuses, Seat: p.Seat}, nil
	case codec.TypeEndGame:
		winner, err := grimoire.ParseTeam(p.Winner)
		if err != nil {
			return table.Event{}, err
		}
		return table.Event{Type: table.EventEndGame, Winner: winner, Storyteller: p.Storyteller}, nil
	case codec.TypeReset:
		return table.Event{Type: table.EventReset}, nil
	case codec.TypeCloseTable:
		return table.Event{Type: table.EventClose}, nil
	}
	return table.Event{}, fmt.Errorf("unknown message type %q", msgType)
}

func (c *Connection) sendMessage(tableID, msgType string, payload any) {
	data, err := codec.EncodeServer(tableID, atomic.AddUint64(&c.Gateway.seq, 1), msgType, payload)
	if err != nil {
		log.Printf("[Gateway] Failed to encode %s: %v", msgType, err)
		return
	}
	c.Gateway.sendToUser(c.UserID, data)
}

func (c *Connection) sendError(code int32, msg string) {
	c.sendMessage(c.tableID(), codec.TypeError, map[string]any{"code": code, "message": msg})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	_, live := g.connections[c.ID]
	if live {
		delete(g.connections, c.ID)
		if g.userConns[c.UserID] == c {
			delete(g.userConns, c.UserID)
		}
		close(c.Send)
	}
	total := len(g.connections)
	g.mu.Unlock()

	if t := c.currentTable(); t != nil && live {
		_ = t.SubmitEvent(table.Event{Type: table.EventConnLost, UserID: c.UserID})
	}
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, total)
}

// sendToUser queues data for the user's live connection, dropping it when the buffer is full.
func (g *Gateway) sendToUser(userID uint64, data []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := g.userConns[userID]
	if c == nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// ConnectionCount reports the number of open connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}
