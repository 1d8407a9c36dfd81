// JSON-RPC wire format shared by the websocket client and the PV gateway
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package channel

import (
	"encoding/json"
	"fmt"
)

// Gateway methods.
const (
	MethodGet      = "pv.get"
	MethodPut      = "pv.put"
	MethodDescribe = "pv.describe"
	MethodList     = "pv.list"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
	CodeNotFound       = -32004
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      int64          `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ValueResult is the result of pv.get and pv.put.
type ValueResult struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// DescribeResult is the result of pv.describe.
type DescribeResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListResult is the result of pv.list.
type ListResult struct {
	Names []string `json:"names"`
}
