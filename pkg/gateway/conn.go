// PV gateway websocket connections
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"imprint-scan/pkg/channel"
)

// wsConn is one websocket client of the gateway.
type wsConn struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	sendCh chan channel.Response
	done   chan struct{}
	mu     sync.Mutex
}

// Close closes the client connection.
func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

// send queues a response. Requests are answered in order, so a full
// queue means the client stopped reading.
func (c *wsConn) send(resp channel.Response) {
	select {
	case c.sendCh <- resp:
	case <-c.done:
	}
}

// readPump reads requests from the connection.
func (c *wsConn) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway,
				websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.logger.WithError(err).Warn("websocket read failed")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.handleMessage(message)
	}
}

// writePump sends queued responses and keepalive pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case resp := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(resp); err != nil {
				c.server.logger.WithError(err).Warn("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleMessage decodes and answers one request.
func (c *wsConn) handleMessage(data []byte) {
	var req channel.Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.send(channel.Response{
			JSONRPC: "2.0",
			Error:   &channel.RPCError{Code: channel.CodeParseError, Message: "Parse error"},
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, rpcErr := c.server.dispatch(ctx, req)
	resp := channel.Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	if rpcErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = &channel.RPCError{Code: channel.CodeServerError, Message: err.Error()}
		} else {
			resp.Result = raw
		}
	}
	c.send(resp)
}
