// PV gateway simulator
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package gateway serves an in-process channel store over a websocket
// JSON-RPC endpoint, so scans can run against simulated hardware in a
// separate process.
package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"imprint-scan/pkg/channel"
	"imprint-scan/pkg/log"
)

// Server exposes a channel.Memory over /websocket.
type Server struct {
	store  *channel.Memory
	logger *log.Logger

	httpServer *http.Server
	addr       string

	wsUpgrader websocket.Upgrader
	clients    map[int64]*wsConn
	clientMu   sync.RWMutex
	nextID     int64

	running atomic.Bool
}

// Config holds server configuration.
type Config struct {
	// Addr is the HTTP address to listen on (e.g., ":7130").
	Addr   string
	Store  *channel.Memory
	Logger *log.Logger
}

// New creates a gateway server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger("gateway")
	}
	store := cfg.Store
	if store == nil {
		store = channel.NewMemory()
	}
	return &Server{
		store:   store,
		logger:  logger,
		addr:    cfg.Addr,
		clients: make(map[int64]*wsConn),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Store returns the served channel store.
func (s *Server) Store() *channel.Memory {
	return s.store
}

// Handler returns the HTTP handler serving /websocket and /channels.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", s.handleWebSocket)
	mux.HandleFunc("/channels", s.handleChannels)
	return mux
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running.Store(true)
	s.logger.Info("PV gateway listening on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes every client and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	s.clientMu.Lock()
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = make(map[int64]*wsConn)
	s.clientMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// dispatch routes a method call to the store.
func (s *Server) dispatch(ctx context.Context, req channel.Request) (any, *channel.RPCError) {
	name, _ := req.Params["name"].(string)
	needName := req.Method != channel.MethodList
	if needName && name == "" {
		return nil, &channel.RPCError{Code: channel.CodeInvalidParams, Message: "missing channel name"}
	}

	switch req.Method {
	case channel.MethodGet:
		v, err := s.store.Get(ctx, name)
		if err != nil {
			return nil, rpcError(err)
		}
		return channel.ValueResult{Name: name, Value: v}, nil
	case channel.MethodPut:
		value, ok := req.Params["value"].(float64)
		if !ok {
			return nil, &channel.RPCError{Code: channel.CodeInvalidParams, Message: "value must be a number"}
		}
		if err := s.store.Put(ctx, name, value); err != nil {
			return nil, rpcError(err)
		}
		s.logger.WithFields(log.Fields{"channel": name, "value": value}).Debug("put")
		return channel.ValueResult{Name: name, Value: value}, nil
	case channel.MethodDescribe:
		d, err := s.store.Describe(ctx, name)
		if err != nil {
			return nil, rpcError(err)
		}
		return channel.DescribeResult{Name: name, Description: d}, nil
	case channel.MethodList:
		return channel.ListResult{Names: s.store.Names()}, nil
	default:
		return nil, &channel.RPCError{Code: channel.CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

func rpcError(err error) *channel.RPCError {
	if stderrors.Is(err, channel.ErrNotFound) {
		return &channel.RPCError{Code: channel.CodeNotFound, Message: err.Error()}
	}
	return &channel.RPCError{Code: channel.CodeServerError, Message: err.Error()}
}

// handleChannels returns a JSON snapshot of every channel value.
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snapshot := make(map[string]float64)
	for _, name := range s.store.Names() {
		if v, err := s.store.Get(r.Context(), name); err == nil {
			snapshot[name] = v
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// handleWebSocket upgrades the connection and serves requests until the
// client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &wsConn{
		id:     atomic.AddInt64(&s.nextID, 1),
		conn:   conn,
		server: s,
		sendCh: make(chan channel.Response, 64),
		done:   make(chan struct{}),
	}
	s.clientMu.Lock()
	s.clients[c.id] = c
	s.clientMu.Unlock()
	s.logger.Debug("client %d connected", c.id)

	go c.writePump()
	c.readPump()
}

func (s *Server) removeClient(c *wsConn) {
	s.clientMu.Lock()
	delete(s.clients, c.id)
	s.clientMu.Unlock()
	s.logger.Debug("client %d disconnected", c.id)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return len(s.clients)
}
