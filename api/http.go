/*
 * Copyright 2019 The CovenantSQL Authors.
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
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CovenantSQL/verichain/conf"
	"github.com/CovenantSQL/verichain/metric"
	"github.com/CovenantSQL/verichain/types"
	"github.com/CovenantSQL/verichain/utils/log"
)

func sendResponse(code int, data interface{}, rw http.ResponseWriter) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	if err := json.NewEncoder(rw).Encode(data); err != nil {
		log.WithError(err).Warning("api: write response failed")
	}
}

func sendError(err error, rw http.ResponseWriter) {
	code := http.StatusInternalServerError
	switch {
	case errors.Cause(err) == ErrBadRequest, types.IsQueryError(err):
		code = http.StatusBadRequest
	case errors.Cause(err) == types.ErrNotFound:
		code = http.StatusNotFound
	default:
		log.WithError(err).Error("api: request failed")
	}
	sendResponse(code, map[string]interface{}{"error": err.Error()}, rw)
}

func decodeBody(r *http.Request, rw http.ResponseWriter, v interface{}) error {
	body := http.MaxBytesReader(rw, r.Body, conf.MaxRequestBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.Wrap(ErrBadRequest, err.Error())
	}
	return nil
}

func getUintFromVars(field string, r *http.Request, bits int) (value uint64, err error) {
	valueStr := mux.Vars(r)[field]
	if valueStr == "" {
		err = ErrBadRequest
		return
	}
	if value, err = strconv.ParseUint(valueStr, 10, bits); err != nil {
		err = errors.Wrap(ErrBadRequest, err.Error())
	}
	return
}

func (s *Service) handleQuery(rw http.ResponseWriter, r *http.Request) {
	var q types.Query
	if err := decodeBody(r, rw, &q); err != nil {
		sendError(err, rw)
		return
	}
	resp, err := s.Query(r.Context(), &q)
	if err != nil {
		sendError(err, rw)
		return
	}
	sendResponse(http.StatusOK, resp, rw)
}

func (s *Service) handleVerify(rw http.ResponseWriter, r *http.Request) {
	var resp types.Response
	if err := decodeBody(r, rw, &resp); err != nil {
		sendError(err, rw)
		return
	}
	vr, err := s.Verify(&resp)
	if err != nil {
		sendError(err, rw)
		return
	}
	sendResponse(http.StatusOK, vr, rw)
}

func (s *Service) handleParam(rw http.ResponseWriter, r *http.Request) {
	sendResponse(http.StatusOK, s.chain.Param(), rw)
}

func (s *Service) handleTip(rw http.ResponseWriter, r *http.Request) {
	sendResponse(http.StatusOK, s.Tip(), rw)
}

func (s *Service) handleHeader(rw http.ResponseWriter, r *http.Request) {
	id, err := getUintFromVars("id", r, 64)
	if err != nil {
		sendError(err, rw)
		return
	}
	h, err := s.chain.Snapshot().GetBlockHeader(id)
	if err != nil {
		sendError(err, rw)
		return
	}
	sendResponse(http.StatusOK, h, rw)
}

func (s *Service) handleBlock(rw http.ResponseWriter, r *http.Request) {
	id, err := getUintFromVars("id", r, 64)
	if err != nil {
		sendError(err, rw)
		return
	}
	objs, err := s.chain.Snapshot().GetBlockData(id)
	if err != nil {
		sendError(err, rw)
		return
	}
	sendResponse(http.StatusOK, objs, rw)
}

func (s *Service) handleObject(rw http.ResponseWriter, r *http.Request) {
	id, err := getUintFromVars("id", r, 64)
	if err != nil {
		sendError(err, rw)
		return
	}
	seq, err := getUintFromVars("seq", r, 32)
	if err != nil {
		sendError(err, rw)
		return
	}
	o, err := s.chain.Snapshot().GetObject(id, uint32(seq))
	if err != nil {
		sendError(err, rw)
		return
	}
	sendResponse(http.StatusOK, o, rw)
}

func (s *Service) handleIndexNode(rw http.ResponseWriter, r *http.Request) {
	id, err := getUintFromVars("id", r, 64)
	if err != nil {
		sendError(err, rw)
		return
	}
	node, err := getUintFromVars("node", r, 32)
	if err != nil {
		sendError(err, rw)
		return
	}
	n, err := s.chain.Snapshot().GetIndexNode(id, uint32(node))
	if err != nil {
		sendError(err, rw)
		return
	}
	sendResponse(http.StatusOK, n, rw)
}

func (s *Service) handleSkipNode(rw http.ResponseWriter, r *http.Request) {
	id, err := getUintFromVars("id", r, 64)
	if err != nil {
		sendError(err, rw)
		return
	}
	n, err := s.chain.Snapshot().GetSkipNode(id)
	if err != nil {
		sendError(err, rw)
		return
	}
	sendResponse(http.StatusOK, n, rw)
}

type recoveryLogger struct{}

func (recoveryLogger) Println(args ...interface{}) {
	log.Error(args...)
}

// Router returns the HTTP handler of the service.
func (s *Service) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		sendResponse(http.StatusOK, map[string]interface{}{"status": "ok"}, rw)
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.Handle("/debug/metrics", metric.WebHandler()).Methods("GET")

	v1Router := router.PathPrefix("/v1").Subrouter()
	v1Router.HandleFunc("/query", s.handleQuery).Methods("POST")
	v1Router.HandleFunc("/verify", s.handleVerify).Methods("POST")
	v1Router.HandleFunc("/param", s.handleParam).Methods("GET")
	v1Router.HandleFunc("/tip", s.handleTip).Methods("GET")
	v1Router.HandleFunc("/header/{id:[0-9]+}", s.handleHeader).Methods("GET")
	v1Router.HandleFunc("/block/{id:[0-9]+}", s.handleBlock).Methods("GET")
	v1Router.HandleFunc("/object/{id:[0-9]+}/{seq:[0-9]+}", s.handleObject).Methods("GET")
	v1Router.HandleFunc("/intraindex/{id:[0-9]+}/{node:[0-9]+}", s.handleIndexNode).Methods("GET")
	v1Router.HandleFunc("/skiplist/{id:[0-9]+}", s.handleSkipNode).Methods("GET")

	return handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
	)(handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(router))
}
