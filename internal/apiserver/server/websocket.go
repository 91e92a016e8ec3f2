package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"craftbid/internal/apiserver/auth"
	"craftbid/internal/shared/eventbus"
	"craftbid/internal/shared/metrics"
	"craftbid/internal/shared/model"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// upgrader WebSocket 升级器配置
//
// CheckOrigin 允许所有来源，令牌校验在升级前完成。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage 推送给客户端的消息
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// wsClient 单个连接，gorilla/websocket 不允许并发写，写操作需加锁
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(msg wsMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// EventGateway 审核事件 WebSocket 网关
//
// 每个连接订阅当前用户的审核事件，状态变化（提交、通过、拒绝、停用等）
// 实时推送给前端。
type EventGateway struct {
	bus     eventbus.VerificationEventBus
	authCfg auth.Config
	metrics *metrics.Metrics

	clients map[string]map[*wsClient]bool // 按用户 ID 索引
	mu      sync.RWMutex
}

// NewEventGateway 创建事件网关实例
func NewEventGateway(bus eventbus.VerificationEventBus, authCfg auth.Config, m *metrics.Metrics) *EventGateway {
	return &EventGateway{
		bus:     bus,
		authCfg: authCfg,
		metrics: m,
		clients: make(map[string]map[*wsClient]bool),
	}
}

// HandleWebSocket 处理 WebSocket 连接请求
//
// 路由: GET /ws/verification?token=<access token>
//
// 浏览器无法给 WebSocket 请求加 Authorization 头，令牌从查询参数读取，
// 也接受 Bearer 头。
//
// 推送消息格式：
//
//	连接成功：{"type": "connected", "data": {"user_id": "..."}}
//	审核事件：{"type": "verification", "data": VerificationEvent}
//
// 客户端消息：
//
//	心跳：{"type": "ping"} -> 响应 {"type": "pong"}
func (g *EventGateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	user, err := auth.AuthenticateToken(g.authCfg, token)
	if err != nil {
		http.Error(w, `{"message":"Unauthenticated."}`, http.StatusUnauthorized)
		return
	}
	if g.bus == nil {
		http.Error(w, "event bus not available", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws.upgrade.failed] user_id=%s error=%v", user.ID, err)
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}
	g.addClient(user.ID, client)
	defer g.removeClient(user.ID, client)
	g.metrics.WSConnectionOpened()
	defer g.metrics.WSConnectionClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := g.bus.SubscribeVerificationEvents(ctx, user.ID)
	if err != nil {
		log.Printf("[ws.subscribe.failed] user_id=%s error=%v", user.ID, err)
		return
	}

	log.Printf("[ws.connected] user_id=%s", user.ID)
	if err := client.send(wsMessage{Type: "connected", Data: map[string]string{"user_id": user.ID}}); err != nil {
		return
	}
	g.metrics.RecordWSMessage("out", "connected")

	go g.readPump(client, cancel)
	g.writePump(ctx, client, events)
	log.Printf("[ws.disconnected] user_id=%s", user.ID)
}

// readPump 读取客户端消息，连接关闭时取消上下文
func (g *EventGateway) readPump(c *wsClient, cancel context.CancelFunc) {
	defer cancel()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws.read.failed] error=%v", err)
			}
			return
		}

		var req wsMessage
		if json.Unmarshal(msg, &req) != nil {
			continue
		}
		if req.Type == "ping" {
			g.metrics.RecordWSMessage("in", "ping")
			c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
			if err := c.send(wsMessage{Type: "pong"}); err != nil {
				return
			}
			g.metrics.RecordWSMessage("out", "pong")
		}
	}
}

// writePump 推送审核事件，定时发送 ping 保持连接
func (g *EventGateway) writePump(ctx context.Context, c *wsClient, events <-chan *model.VerificationEvent) {
	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			if err := c.ping(); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := c.send(wsMessage{Type: "verification", Data: event}); err != nil {
				log.Printf("[ws.write.failed] profile_id=%s error=%v", event.ProfileID, err)
				return
			}
			g.metrics.RecordWSMessage("out", "verification")
		}
	}
}

func (g *EventGateway) addClient(userID string, c *wsClient) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.clients[userID] == nil {
		g.clients[userID] = make(map[*wsClient]bool)
	}
	g.clients[userID][c] = true
}

func (g *EventGateway) removeClient(userID string, c *wsClient) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if clients, ok := g.clients[userID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(g.clients, userID)
		}
	}
}

// ClientCount 当前连接数
func (g *EventGateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, clients := range g.clients {
		n += len(clients)
	}
	return n
}
