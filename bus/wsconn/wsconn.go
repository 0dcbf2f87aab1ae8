// Package wsconn adapts the bus to gorilla/websocket connections, so
// external dashboards and widget viewers can receive live run outcomes.
package wsconn

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/daqhub/metriq/bus"
	"github.com/daqhub/metriq/log"
)

const writeTimeout = 10 * time.Second

type wireMsg struct {
	Subj string          `json:"subj"`
	Tok  string          `json:"tok,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type conn struct {
	id    int64
	wc    *websocket.Conn
	route chan<- *bus.Msg
	send  chan *bus.Msg
}

func (c *conn) ID() int64            { return c.id }
func (c *conn) Chan() chan<- *bus.Msg { return c.send }

func (c *conn) read() error {
	for {
		op, r, err := c.wc.NextReader()
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				return nil
			}
			if cerr, ok := err.(*websocket.CloseError); ok && cerr.Code == 1001 {
				return nil
			}
			return errors.Wrap(err, "wsconn next reader")
		}
		if op != websocket.TextMessage {
			continue
		}
		var wm wireMsg
		if err := json.NewDecoder(r).Decode(&wm); err != nil {
			return errors.Wrap(err, "wsconn decode")
		}
		m := &bus.Msg{From: c, Subj: wm.Subj, Tok: []byte(wm.Tok), Data: wm.Data}
		c.route <- m
	}
}

func (c *conn) writeMsg(m *bus.Msg) error {
	wm := wireMsg{Subj: m.Subj, Tok: string(m.Tok)}
	if m.Data != nil {
		raw, err := json.Marshal(m.Data)
		if err != nil {
			return errors.Wrap(err, "wsconn encode")
		}
		wm.Data = raw
	}
	c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.wc.WriteJSON(wm)
}

// Serve upgrades r into a websocket connection, signs it on with h, and
// routes every received message to h until the connection closes.
func Serve(h *bus.Hub, logger log.Logger) http.HandlerFunc {
	upgr := &websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		wc, err := upgr.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("wsconn upgrade failed", "err", err)
			return
		}
		c := &conn{id: bus.NextID(), wc: wc, route: h.Chan(), send: make(chan *bus.Msg, 32)}
		t := time.NewTicker(60 * time.Second)
		defer t.Stop()
		bus.Signon(h, c)
		go writeLoop(c, t)
		err = c.read()
		bus.Signoff(h, c)
		if err != nil {
			logger.Error("wsconn read failed", "err", err)
		}
	}
}

func writeLoop(c *conn, t *time.Ticker) {
	defer c.wc.Close()
Outer:
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				break Outer
			}
			if msg == nil {
				break Outer
			}
			if err := c.writeMsg(msg); err != nil {
				return
			}
		case <-t.C:
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.wc.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
	c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.wc.WriteMessage(websocket.CloseMessage, []byte{})
}
