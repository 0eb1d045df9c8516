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
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/utils/log"
)

const (
	apiReadTimeout  = 10 * time.Second
	apiWriteTimeout = 60 * time.Second
)

// Server runs the HTTP and the websocket JSON-RPC listeners of a service.
type Server struct {
	ListenAddr    string // start a http server
	WebsocketAddr string // start a websocket server

	service   *Service
	http      *http.Server
	ws        *http.Server
	listeners []net.Listener
	wg        sync.WaitGroup
}

// NewServer returns a server of s; an empty address disables its listener.
func NewServer(s *Service, listenAddr, websocketAddr string) *Server {
	return &Server{
		ListenAddr:    listenAddr,
		WebsocketAddr: websocketAddr,
		service:       s,
	}
}

// Start binds the listeners and serves them in the background.
func (srv *Server) Start() (err error) {
	if srv.ListenAddr != "" {
		srv.http = &http.Server{
			Handler:      srv.service.Router(),
			ReadTimeout:  apiReadTimeout,
			WriteTimeout: apiWriteTimeout,
		}
		if err = srv.serve("http", srv.ListenAddr, srv.http); err != nil {
			return
		}
	}
	if srv.WebsocketAddr != "" {
		// websocket connections are long lived, no deadline
		srv.ws = &http.Server{Handler: NewWebsocketHandler(srv.service.RPCHandler())}
		if err = srv.serve("websocket", srv.WebsocketAddr, srv.ws); err != nil {
			_ = srv.Shutdown()
			return
		}
	}
	return
}

func (srv *Server) serve(name, addr string, s *http.Server) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "couldn't bind to address %q", addr)
	}
	srv.listeners = append(srv.listeners, listener)
	log.WithFields(log.Fields{"addr": listener.Addr().String(), "server": name}).Info("api: start server")

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		if err := s.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.WithError(err).WithField("server", name).Error("api: serve error")
		}
	}()
	return nil
}

// Addrs returns the bound listener addresses, http first.
func (srv *Server) Addrs() (addrs []string) {
	for _, l := range srv.listeners {
		addrs = append(addrs, l.Addr().String())
	}
	return
}

// Shutdown gracefully shuts down the servers.
func (srv *Server) Shutdown() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range []*http.Server{srv.http, srv.ws} {
		if s == nil {
			continue
		}
		if e := s.Shutdown(ctx); e != nil {
			err = e
		}
	}
	srv.wg.Wait()
	log.Warn("api: servers stopped")
	return
}
