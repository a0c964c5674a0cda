// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Corphon/StoryPreview/internal/playback"
	"github.com/Corphon/StoryPreview/internal/utils"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PlaybackCommand 客户端发送的播放指令
type PlaybackCommand struct {
	Action  string `json:"action"`
	Enabled bool   `json:"enabled,omitempty"`
	Chapter string `json:"chapter,omitempty"`
}

// PlaybackMessage 服务端推送的消息
type PlaybackMessage struct {
	Type  string         `json:"type"`
	View  *playback.View `json:"view,omitempty"`
	Auto  bool           `json:"auto"`
	Error string         `json:"error,omitempty"`
}

// PlaybackClient 一个播放会话：一条连接对应一个 Player
type PlaybackClient struct {
	id        string
	storyID   string
	conn      *websocket.Conn
	player    *playback.Player
	send      chan []byte
	closed    int32 // 0=开启，1=关闭
	lastPing  atomic.Int64
	createdAt time.Time
	done      chan struct{}
}

// Close 关闭连接，可重复调用
func (client *PlaybackClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		close(client.done)
		client.conn.Close()
	}
}

// IsClosed 检查连接是否已关闭
func (client *PlaybackClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后活跃时间
func (client *PlaybackClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

// IsExpired 检查连接是否超时
func (client *PlaybackClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// SendMessage 把消息放入发送队列；队列满时丢弃
func (client *PlaybackClient) SendMessage(message PlaybackMessage) {
	if client.IsClosed() {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		utils.GetLogger().Error("序列化播放消息失败", map[string]interface{}{"error": err})
		return
	}

	select {
	case client.send <- data:
	case <-client.done:
	default:
		utils.GetLogger().Warn("播放会话发送队列已满，消息被丢弃", map[string]interface{}{"session": client.id})
	}
}

// SendView 推送当前画面
func (client *PlaybackClient) SendView(view playback.View) {
	client.SendMessage(PlaybackMessage{Type: MessageTypeView, View: &view, Auto: client.player.Auto()})
}

// SendError 推送错误
func (client *PlaybackClient) SendError(msg string) {
	client.SendMessage(PlaybackMessage{Type: MessageTypeError, Error: msg})
}

// SessionManager 管理所有播放会话
type SessionManager struct {
	sessions    map[string]*PlaybackClient
	mutex       sync.RWMutex
	pingTimeout time.Duration
	logger      *utils.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionManager 创建会话管理器并启动定期清理
func NewSessionManager(logger *utils.Logger) *SessionManager {
	if logger == nil {
		logger = utils.GetLogger()
	}
	manager := &SessionManager{
		sessions:    make(map[string]*PlaybackClient),
		pingTimeout: pongWait + writeWait,
		logger:      logger,
		stop:        make(chan struct{}),
	}
	go manager.run()
	return manager
}

func (manager *SessionManager) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			manager.cleanupExpiredSessions()
		case <-manager.stop:
			manager.shutdown()
			return
		}
	}
}

func (manager *SessionManager) register(client *PlaybackClient) {
	manager.mutex.Lock()
	manager.sessions[client.id] = client
	manager.mutex.Unlock()

	utils.PlaybackSessionsActive.Inc()
	manager.logger.Info("播放会话已连接", map[string]interface{}{"session": client.id, "story": client.storyID})
}

func (manager *SessionManager) unregister(client *PlaybackClient) {
	manager.mutex.Lock()
	_, exists := manager.sessions[client.id]
	delete(manager.sessions, client.id)
	manager.mutex.Unlock()

	client.player.Close()
	client.Close()

	if exists {
		utils.PlaybackSessionsActive.Dec()
		manager.logger.Info("播放会话已断开", map[string]interface{}{"session": client.id, "story": client.storyID})
	}
}

// cleanupExpiredSessions 关闭超时的会话，读循环退出后会自行注销
func (manager *SessionManager) cleanupExpiredSessions() {
	manager.mutex.RLock()
	expired := make([]*PlaybackClient, 0)
	for _, client := range manager.sessions {
		if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
			expired = append(expired, client)
		}
	}
	manager.mutex.RUnlock()

	for _, client := range expired {
		client.Close()
	}
}

func (manager *SessionManager) shutdown() {
	manager.mutex.RLock()
	clients := make([]*PlaybackClient, 0, len(manager.sessions))
	for _, client := range manager.sessions {
		clients = append(clients, client)
	}
	manager.mutex.RUnlock()

	for _, client := range clients {
		client.player.Close()
		client.Close()
	}
}

// Shutdown 关闭所有会话并停止清理
func (manager *SessionManager) Shutdown() {
	manager.stopOnce.Do(func() { close(manager.stop) })
}

// Count 当前会话数
func (manager *SessionManager) Count() int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.sessions)
}

// GetStatus 获取会话状态
func (manager *SessionManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	stories := make(map[string]interface{})
	counts := make(map[string]int)
	sessions := make(map[string][]interface{})

	for _, client := range manager.sessions {
		if client.IsClosed() {
			continue
		}
		view := client.player.View()
		counts[client.storyID]++
		sessions[client.storyID] = append(sessions[client.storyID], map[string]interface{}{
			"session_id":   client.id,
			"connected_at": client.createdAt.Format(time.RFC3339),
			"chapter":      view.Chapter,
			"state":        view.State,
			"auto":         client.player.Auto(),
		})
	}
	for storyID, count := range counts {
		stories[storyID] = map[string]interface{}{
			"client_count": count,
			"sessions":     sessions[storyID],
		}
	}

	return map[string]interface{}{
		"total_sessions":       len(manager.sessions),
		"stories":              stories,
		"ping_timeout_seconds": int(manager.pingTimeout.Seconds()),
	}
}

// PlaybackWebSocket 建立播放会话：加载故事数据，创建 Player，然后处理客户端指令
func (h *Handler) PlaybackWebSocket(c *gin.Context) {
	storyID := c.Param("story")

	// 升级前加载数据，故事不存在时可以返回普通的 404
	data, err := h.Preview.LoadPreviewData(c.Request.Context(), storyID)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Sessions.logger.Warn("播放会话升级失败", map[string]interface{}{"story": storyID, "error": err})
		return
	}

	client := &PlaybackClient{
		id:        uuid.NewString(),
		storyID:   storyID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
	client.UpdatePing()

	engine := playback.NewEngine(h.Preview.StoryBaseURL(storyID), data)
	client.player = playback.NewPlayer(engine, h.AutoInterval, client.SendView)

	h.Sessions.register(client)
	defer h.Sessions.unregister(client)

	go h.Sessions.writePump(client)

	client.player.Start()
	h.Sessions.readPump(client)
}

// readPump 读取并执行客户端指令，直到连接关闭
func (manager *SessionManager) readPump(client *PlaybackClient) {
	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				manager.logger.Warn("播放会话读取错误", map[string]interface{}{"session": client.id, "error": err})
			}
			return
		}
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(pongWait))

		var command PlaybackCommand
		if err := json.Unmarshal(messageBytes, &command); err != nil {
			client.SendError("无效的消息格式")
			continue
		}
		manager.dispatch(client, command)
	}
}

// dispatch 执行一条指令；每条指令都会推送最新画面
func (manager *SessionManager) dispatch(client *PlaybackClient, command PlaybackCommand) {
	player := client.player

	switch command.Action {
	case ActionAdvance:
		if _, ok := player.Advance(); !ok {
			// 自动模式下忽略手动前进，仍然回送当前画面
			client.SendView(player.View())
		}
	case ActionAuto:
		player.SetAuto(command.Enabled)
		client.SendView(player.View())
	case ActionRestart:
		player.Restart()
	case ActionJump:
		if command.Chapter == "" {
			client.SendError("缺少章节")
			return
		}
		player.Jump(command.Chapter)
	default:
		client.SendError("未知的动作: " + command.Action)
	}
}

// writePump 串行写出消息并定期发送 ping
func (manager *SessionManager) writePump(client *PlaybackClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.done:
			return
		}
	}
}
