package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const (
	writeWait        = 5 * time.Second
	defaultSendQueue = 64
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendRate   float64
	SendBurst  int
	SendQueue  int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendRate <= 0 {
		o.SendRate = 10
	}
	if o.SendBurst <= 0 {
		o.SendBurst = 20
	}
	if o.SendQueue <= 0 {
		o.SendQueue = defaultSendQueue
	}
	return o
}

func (o Options) pongWait() time.Duration { return o.PingPeriod * 10 / 9 }

type SignalWSController struct {
	Orch   *orch.Orchestrator
	Policy app.Policy
	opts   Options
	hub    *roomHub
}

func NewSignalWSController(o *orch.Orchestrator, policy app.Policy, opts Options) *SignalWSController {
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	return &SignalWSController{
		Orch:   o,
		Policy: policy,
		opts:   opts.withDefaults(),
		hub:    newRoomHub(),
	}
}

// WsSignalConn is one client socket. Only writePump writes to conn.
type WsSignalConn struct {
	id      app.ConnID
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) ID() app.ConnID { return c.id }

func (c *WsSignalConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves the socket until either side
// goes away or ctx is cancelled.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	cid := app.ConnID(uuid.NewString())
	logger := log.With().Str("module", "signal").Str("cid", string(cid)).Str("client", c.GetString("client_id")).Logger()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsSignalConn{
		id:      cid,
		conn:    ws,
		send:    make(chan []byte, ctl.opts.SendQueue),
		limiter: rate.NewLimiter(rate.Limit(ctl.opts.SendRate), ctl.opts.SendBurst),
	}
	logger.Info().Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}
