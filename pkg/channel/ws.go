// Websocket JSON-RPC channel client
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package channel

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	hosterrors "imprint-scan/pkg/errors"
	"imprint-scan/pkg/log"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = stderrors.New("channel client closed")

// WSOptions configures a websocket client.
type WSOptions struct {
	// PollInterval is how often WaitForValue re-reads the channel.
	PollInterval time.Duration
	// Tolerance is the match tolerance of WaitForValue.
	Tolerance float64
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	Logger *log.Logger
}

// WSClient talks to a PV gateway over a websocket connection.
type WSClient struct {
	conn    *websocket.Conn
	opts    WSOptions
	logger  *log.Logger
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan Response
	nextID  atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a gateway websocket endpoint such as
// ws://localhost:7130/websocket.
func Dial(ctx context.Context, url string, opts WSOptions) (*WSClient, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger("channel")
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, hosterrors.ChannelError("dial", url, err)
	}
	c := &WSClient{
		conn:    conn,
		opts:    opts,
		logger:  logger,
		pending: make(map[int64]chan Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	logger.Debug("connected to %s", url)
	return c, nil
}

// readLoop delivers responses to waiting callers until the connection
// fails or is closed.
func (c *WSClient) readLoop() {
	defer c.Close()
	c.conn.SetReadLimit(512 * 1024)
	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WithError(err).Warn("gateway read failed")
			}
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// Close closes the connection. Pending calls fail with ErrClosed.
func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *WSClient) call(ctx context.Context, method string, params map[string]any, result any) error {
	id := c.nextID.Add(1)
	ch := make(chan Response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := Request{JSONRPC: "2.0", Method: method, Params: params, ID: id}
	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			if resp.Error.Code == CodeNotFound {
				return ErrNotFound
			}
			return resp.Error
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get implements Client.
func (c *WSClient) Get(ctx context.Context, name string) (float64, error) {
	var res ValueResult
	if err := c.call(ctx, MethodGet, map[string]any{"name": name}, &res); err != nil {
		return 0, hosterrors.ChannelError("get", name, err)
	}
	return res.Value, nil
}

// Put implements Client.
func (c *WSClient) Put(ctx context.Context, name string, value float64) error {
	if err := c.call(ctx, MethodPut, map[string]any{"name": name, "value": value}, nil); err != nil {
		return hosterrors.ChannelError("put", name, err)
	}
	return nil
}

// WaitForValue implements Client by polling Get.
func (c *WSClient) WaitForValue(ctx context.Context, name string, target float64) error {
	return Poll(ctx, c.Get, name, target, c.opts.Tolerance, c.opts.PollInterval)
}

// Describe implements Describer.
func (c *WSClient) Describe(ctx context.Context, name string) (string, error) {
	var res DescribeResult
	if err := c.call(ctx, MethodDescribe, map[string]any{"name": name}, &res); err != nil {
		return "", hosterrors.ChannelError("describe", name, err)
	}
	return res.Description, nil
}

// List returns the channel names the gateway serves.
func (c *WSClient) List(ctx context.Context) ([]string, error) {
	var res ListResult
	if err := c.call(ctx, MethodList, nil, &res); err != nil {
		return nil, hosterrors.ChannelError("list", "*", err)
	}
	return res.Names, nil
}
