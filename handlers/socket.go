package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pvp-battle-server/middleware"
	"pvp-battle-server/services"
)

const (
	writeDeadline  = 5 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 25 * time.Second
	maxFrameSize   = 64 << 10
	sendBufferSize = 64
)

var (
	ErrConnClosed     = eris.New("connection closed")
	ErrSendBufferFull = eris.New("send buffer full")
)

// wsConn adapts a websocket to services.Conn. Sends are queued and written
// by a dedicated goroutine, so a slow client never blocks a battle. A client
// that lets the queue fill up is disconnected rather than silently missing
// frames.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
	done   chan struct{} // writer exited
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.closed:
		return ErrConnClosed
	default:
		logrus.WithField("conn_id", c.id).Warn("[WS] send buffer full, closing connection")
		_ = c.Close()
		return ErrSendBufferFull
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *wsConn) writeLoop() {
	defer close(c.done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				logrus.WithError(err).WithField("conn_id", c.id).Debug("[WS] write failed")
				_ = c.Close()
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				_ = c.ws.Close()
				return
			}
		case <-c.closed:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			// Unblocks the read loop.
			_ = c.ws.Close()
			return
		}
	}
}

func (c *wsConn) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return eris.Wrap(err, "set write deadline")
	}
	return eris.Wrap(c.ws.WriteMessage(messageType, data), "write message")
}

// SetupSocketRoutes mounts the game socket at /ws. Every text frame is one
// event envelope handed to the coordinator; closing the socket forfeits
// any live battle of the bound player.
func SetupSocketRoutes(ctx context.Context, app *fiber.App, coordinator *services.Coordinator) {
	app.Use("/ws", middleware.WebSocketUpgradeMiddleware())

	app.Get("/ws", websocket.New(func(ws *websocket.Conn) {
		conn := newWSConn(ws)
		log := logrus.WithFields(logrus.Fields{"conn_id": conn.id, "remote_ip": ws.Locals("remote_ip")})
		log.Debug("[WS] connection opened")

		go conn.writeLoop()
		defer func() {
			coordinator.Disconnect(conn)
			_ = conn.Close()
			<-conn.done
			log.Debug("[WS] connection closed")
		}()

		ws.SetReadLimit(maxFrameSize)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			mt, msg, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).Info("[WS] read failed")
				}
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			// Any traffic counts as liveness.
			_ = ws.SetReadDeadline(time.Now().Add(pongWait))
			coordinator.HandleFrame(ctx, conn, msg)
		}
	}))
}
