/*
 * Copyright 2018 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"fmt"
	"reflect"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/CovenantSQL/verichain/utils/log"
)

// HandlerFunc is a function adapter to Handler.
type HandlerFunc func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (interface{}, error)

// Handler is a handler handling JSON-RPC protocol.
type Handler struct {
	methods map[string]HandlerFunc
}

// NewHandler creates a new Handler.
func NewHandler() *Handler {
	return &Handler{
		methods: make(map[string]HandlerFunc),
	}
}

// RegisterMethod register a method. Params of a method with a non-nil
// paramsType are decoded positionally into a new value of that type.
func (h *Handler) RegisterMethod(method string, handlerFunc HandlerFunc, paramsType interface{}) {
	if _, ok := h.methods[method]; ok {
		panic(fmt.Sprintf("method %q already registered", method))
	}
	log.WithField("method", method).Debug("api: register rpc method")

	if paramsType == nil {
		h.methods[method] = handlerFunc
		return
	}

	// Pre-process rpc parameters with a middleware
	typ := reflect.TypeOf(paramsType)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	h.methods[method] = processParams(handlerFunc, typ)
}

// Handle implements jsonrpc2.Handler.
func (h *Handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	jsonrpc2.HandlerWithError(h.handle).Handle(ctx, conn, req)
}

func (h *Handler) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (
	result interface{}, err error,
) {
	defer func() {
		if p := recover(); p != nil {
			switch p := p.(type) {
			case error:
				err = p
			default:
				err = fmt.Errorf("%v", p)
			}
			log.WithField("method", req.Method).WithError(err).Error("api: rpc method panic")
		}
	}()

	fn := h.methods[req.Method]
	if fn == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound}
	} else if req.Params == nil {
		// pre-check req.Params not be nil
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
	}

	return fn(ctx, conn, req)
}
