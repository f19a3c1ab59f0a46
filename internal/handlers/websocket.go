package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"numbers-game-backend/internal/metrics"
	"numbers-game-backend/internal/models"
	"numbers-game-backend/internal/services"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
}

// enqueue hands data to the write pump without blocking. It reports false
// when the client is gone or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// fail stops the write pump, writes data directly and closes the
// connection. If the pump does not stop within writeWait, data is dropped.
func (c *Client) fail(data []byte) {
	c.closeOnce.Do(func() {
		close(c.done)
		select {
		case <-c.pumpDone:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.TextMessage, data)
		case <-time.After(writeWait):
		}
		_ = c.conn.Close()
	})
}

func (c *Client) writePump(logger *zap.Logger, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.pumpDone)
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.RecordDropped("write_error")
				logger.Debug("websocket write failed", zap.String("client_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub tracks live websocket clients and the nicknames each one bet as.
// It is the engine's delivery EventSink: broadcast events go to every
// client, player results only to the clients bound to that nickname.
type Hub struct {
	logger *zap.Logger

	mu         sync.RWMutex
	clients    map[string]*Client
	byIdentity map[string]map[string]*Client
	identityOf map[string]map[string]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger.Named("hub"),
		clients:    make(map[string]*Client),
		byIdentity: make(map[string]map[string]*Client),
		identityOf: make(map[string]map[string]struct{}),
	}
}

// Register adds a client for conn. greeting, if not nil, is called and its
// messages queued while broadcasts are held off, so no broadcast older than
// the greeting can reach the client after it.
func (hub *Hub) Register(conn *websocket.Conn, greeting func() []*models.Message) *Client {
	client := newClient(conn)

	hub.mu.Lock()
	if greeting != nil {
		for _, msg := range greeting() {
			if data, ok := hub.encode(msg); ok {
				client.enqueue(data)
			}
		}
	}
	hub.clients[client.ID] = client
	hub.mu.Unlock()

	metrics.ConnectionOpened()
	hub.logger.Debug("client registered", zap.String("client_id", client.ID))
	return client
}

// Unregister drops the client and all its nickname bindings, then closes it.
func (hub *Hub) Unregister(client *Client) {
	hub.mu.Lock()
	_, ok := hub.clients[client.ID]
	if ok {
		delete(hub.clients, client.ID)
		hub.unbindLocked(client.ID)
	}
	hub.mu.Unlock()

	client.close()
	if ok {
		metrics.ConnectionClosed()
		hub.logger.Debug("client unregistered", zap.String("client_id", client.ID))
	}
}

// Bind routes targeted results for identity to client until it
// disconnects. A client may be bound to several nicknames.
func (hub *Hub) Bind(client *Client, identity string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if _, ok := hub.clients[client.ID]; !ok {
		return
	}

	set, ok := hub.byIdentity[identity]
	if !ok {
		set = make(map[string]*Client)
		hub.byIdentity[identity] = set
	}
	set[client.ID] = client

	identities, ok := hub.identityOf[client.ID]
	if !ok {
		identities = make(map[string]struct{})
		hub.identityOf[client.ID] = identities
	}
	identities[identity] = struct{}{}
}

func (hub *Hub) unbindLocked(clientID string) {
	for identity := range hub.identityOf[clientID] {
		if set, ok := hub.byIdentity[identity]; ok {
			delete(set, clientID)
			if len(set) == 0 {
				delete(hub.byIdentity, identity)
			}
		}
	}
	delete(hub.identityOf, clientID)
}

func (hub *Hub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

func (hub *Hub) BoundClients(identity string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.byIdentity[identity])
}

func (hub *Hub) Broadcast(msg *models.Message) {
	data, ok := hub.encode(msg)
	if !ok {
		return
	}

	hub.mu.RLock()
	var failed []*Client
	for _, client := range hub.clients {
		if !client.enqueue(data) {
			failed = append(failed, client)
		}
	}
	hub.mu.RUnlock()

	hub.drop(failed)
}

// DeliverToIdentity sends msg to the clients bound to identity. It is a
// no-op when none are.
func (hub *Hub) DeliverToIdentity(identity string, msg *models.Message) {
	hub.mu.RLock()
	set := hub.byIdentity[identity]
	targets := make([]*Client, 0, len(set))
	for _, client := range set {
		targets = append(targets, client)
	}
	hub.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, ok := hub.encode(msg)
	if !ok {
		return
	}

	var failed []*Client
	for _, client := range targets {
		if !client.enqueue(data) {
			failed = append(failed, client)
		}
	}
	hub.drop(failed)
}

// Fail writes msg to client as its last message and closes it.
func (hub *Hub) Fail(client *Client, msg *models.Message) {
	data, ok := hub.encode(msg)
	if !ok {
		client.close()
		return
	}
	client.fail(data)
}

// Send delivers msg to a single client.
func (hub *Hub) Send(client *Client, msg *models.Message) {
	data, ok := hub.encode(msg)
	if !ok {
		return
	}
	if !client.enqueue(data) {
		hub.drop([]*Client{client})
	}
}

func (hub *Hub) encode(msg *models.Message) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		metrics.RecordDropped("encode_error")
		hub.logger.Error("failed to encode message", zap.String("type", string(msg.Type)), zap.Error(err))
		return nil, false
	}
	return data, true
}

// drop disconnects clients that could not keep up. Delivery to everyone
// else is unaffected.
func (hub *Hub) drop(clients []*Client) {
	for _, client := range clients {
		select {
		case <-client.done:
			metrics.RecordDropped("closed")
		default:
			metrics.RecordDropped("buffer_full")
			hub.logger.Warn("client send buffer full, closing connection", zap.String("client_id", client.ID))
		}
		hub.Unregister(client)
	}
}

func (hub *Hub) OnRoundOpened(roundID int64, closesAt time.Time) {
	hub.Broadcast(models.RoundOpenedMessage(roundID, closesAt.UnixMilli()))
}

func (hub *Hub) OnRoundSettled(roundID int64, winningNumber int) {
	hub.Broadcast(models.RoundSettledMessage(roundID, winningNumber))
}

func (hub *Hub) OnWinnersAnnounced(roundID int64, winners []models.WinnerInfo) {
	hub.Broadcast(models.WinnersMessage(roundID, winners))
}

func (hub *Hub) OnPlayerResult(roundID int64, identity string, payout decimal.Decimal) {
	hub.DeliverToIdentity(identity, models.YourResultMessage(roundID, payout))
}

type WebSocketHandler struct {
	gameEngine *services.GameEngine
	hub        *Hub
	logger     *zap.Logger

	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewWebSocketHandler(gameEngine *services.GameEngine, hub *Hub, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		gameEngine: gameEngine,
		hub:        hub,
		logger:     logger.Named("ws"),
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := h.hub.Register(conn, h.roundSnapshot)
	defer h.hub.Unregister(client)

	go client.writePump(h.logger, h.pingPeriod)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket error", zap.String("client_id", client.ID), zap.Error(err))
				h.hub.Fail(client, models.ErrorMessage(models.ErrorCodeTransport, err.Error()))
			}
			return
		}

		h.handleMessage(client, data)
	}
}

// roundSnapshot is the greeting for a new client: the current round, and
// its result if it is already settled.
func (h *WebSocketHandler) roundSnapshot() []*models.Message {
	round, ok := h.gameEngine.CurrentRound()
	if !ok {
		return nil
	}

	msgs := []*models.Message{models.RoundOpenedMessage(round.ID, round.ClosesAt.UnixMilli())}
	if round.State == models.RoundStateClosed {
		msgs = append(msgs, models.RoundSettledMessage(round.ID, round.WinningNumber))
	}
	return msgs
}

func (h *WebSocketHandler) handleMessage(client *Client, data []byte) {
	var msg models.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.hub.Send(client, models.ErrorMessage(models.ErrorCodeBadInput, err.Error()))
		return
	}

	switch {
	case msg.Is(models.MessageBet):
		h.placeBet(client, &msg)
	case msg.Is(models.MessagePing):
		h.hub.Send(client, &models.Message{Type: models.MessagePong, Timestamp: time.Now().Unix()})
	}
}

func (h *WebSocketHandler) placeBet(client *Client, msg *models.InboundMessage) {
	var amount decimal.Decimal
	if msg.Amount != nil {
		amount = *msg.Amount
	}
	bet := models.NewBet(msg.Nickname, msg.Number, amount)

	if err := bet.Validate(); err != nil {
		h.hub.Send(client, models.ErrorMessage(models.ErrorCodeValidation, err.Error()))
		return
	}

	switch h.gameEngine.PlaceBet(bet) {
	case models.PlaceBetAccepted:
		h.hub.Bind(client, bet.Identity)
		h.hub.Send(client, &models.Message{Type: models.MessageBetAccepted})
	case models.PlaceBetDuplicate:
		h.hub.Send(client, models.ErrorMessage(models.ErrorCodeDuplicate, "bet already placed this round"))
	case models.PlaceBetClosed:
		h.hub.Send(client, models.ErrorMessage(models.ErrorCodeRoundClosed, "betting is closed"))
	case models.PlaceBetInvalid:
		h.hub.Send(client, models.ErrorMessage(models.ErrorCodeInvalid, "invalid bet"))
	}
}
