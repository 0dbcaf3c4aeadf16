package ws

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/pkg/contracts/events"
)

// UserHeader carrega o usuário autenticado. O hub não autentica: o proxy na frente do
// round-service valida a sessão, remove o header vindo do cliente e injeta o id verificado.
const UserHeader = "X-User-ID"

// client serializa as escritas de uma conexão: o gorilla não aceita escritores concorrentes
type client struct {
	conn   *websocket.Conn
	userID int64 // 0 = anônimo, só eventos públicos
	mu     sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por jogo ou por usuário
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	mu       sync.RWMutex
	// "game:{key}" | "user:{id}" -> conexões
	subs map[string]map[*client]struct{}
}

func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

func gameKey(game string) string { return "game:" + game }
func userKey(id int64) string    { return "user:" + strconv.FormatInt(id, 10) }

// keys devolve as chaves de assinatura afetadas por uma mensagem do cliente.
// A chave de usuário só vale para o próprio usuário autenticado da conexão.
func (m ClientMsg) keys(owner int64) []string {
	var out []string
	if m.Game != "" {
		out = append(out, gameKey(m.Game))
	}
	if m.UserID != 0 && m.UserID == owner {
		out = append(out, userKey(m.UserID))
	}
	return out
}

// authUser lê o usuário injetado pelo proxy; ausente ou inválido vira anônimo
func authUser(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.Header.Get(UserHeader), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// HandleWS gerencia o ciclo de vida de uma conexão
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn, userID: authUser(r)}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.UserID != 0 && msg.UserID != c.userID {
				h.log.Debug("ws user subscription refused", zap.Int64("requested", msg.UserID), zap.Int64("authenticated", c.userID))
			}
			h.mu.Lock()
			for _, k := range msg.keys(c.userID) {
				if _, ok := h.subs[k]; !ok {
					h.subs[k] = make(map[*client]struct{})
				}
				h.subs[k][c] = struct{}{}
			}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			for _, k := range msg.keys(c.userID) {
				h.remove(k, c)
			}
			h.mu.Unlock()
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}

	h.mu.Lock()
	for k := range h.subs {
		h.remove(k, c)
	}
	h.mu.Unlock()
}

// remove exige h.mu travado
func (h *Hub) remove(key string, c *client) {
	if set, ok := h.subs[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

// Broadcast entrega o envelope: eventos com usuário vão só para as conexões do usuário,
// os demais para quem assina o jogo
func (h *Hub) Broadcast(env events.Envelope) {
	key := gameKey(env.Game)
	if env.UserID != 0 {
		key = userKey(env.UserID)
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[key]))
	for c := range h.subs[key] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(env)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.String("topic", env.Topic), zap.Error(err))
		return
	}
	for _, c := range targets {
		_ = c.write(b)
	}
}
