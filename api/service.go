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
	"context"

	"github.com/pkg/errors"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/CovenantSQL/verichain/chain"
	"github.com/CovenantSQL/verichain/query"
	"github.com/CovenantSQL/verichain/types"
	"github.com/CovenantSQL/verichain/verifier"
)

var (
	// ErrBadRequest indicates a request that could not be decoded.
	ErrBadRequest = errors.New("bad request")
)

// Service serves queries, verifications and chain records of one chain
// over HTTP and JSON-RPC.
type Service struct {
	chain    *chain.Chain
	verifier *verifier.Verifier
	rpc      *Handler
}

// NewService returns a service of c.
func NewService(c *chain.Chain) *Service {
	s := &Service{
		chain:    c,
		verifier: verifier.New(c.Param(), c.Setup()),
		rpc:      NewHandler(),
	}
	s.rpc.RegisterMethod("vc_query", s.rpcQuery, queryParams{})
	s.rpc.RegisterMethod("vc_verify", s.rpcVerify, verifyParams{})
	s.rpc.RegisterMethod("vc_header", s.rpcHeader, headerParams{})
	s.rpc.RegisterMethod("vc_tip", s.rpcTip, nil)
	s.rpc.RegisterMethod("vc_param", s.rpcParam, nil)
	return s
}

// TipInfo describes the published tip.
type TipInfo struct {
	Tip        types.TipRef     `json:"tip"`
	FirstBlock uint64           `json:"first_block"`
	SignedTip  *types.SignedTip `json:"signed_tip,omitempty"`
}

// Query answers q against the current tip.
func (s *Service) Query(ctx context.Context, q *types.Query) (*types.Response, error) {
	return query.Execute(ctx, s.chain.Snapshot(), q)
}

// Verify checks resp against the stored header of its tip block. A tip
// unknown to this chain fails verification.
func (s *Service) Verify(resp *types.Response) (*types.VerifyResponse, error) {
	if resp == nil {
		return nil, ErrBadRequest
	}
	var (
		snap    = s.chain.Snapshot()
		trusted types.TipRef
	)
	h, err := snap.GetBlockHeader(resp.Tip.BlockID)
	switch {
	case err == nil:
		trusted = types.TipRef{BlockID: h.BlockID, Digest: h.SelfDigest}
	case errors.Cause(err) != types.ErrNotFound:
		return nil, err
	}
	return s.verifier.Check(trusted, resp), nil
}

// Tip returns the published tip.
func (s *Service) Tip() *TipInfo {
	snap := s.chain.Snapshot()
	return &TipInfo{Tip: snap.Tip, FirstBlock: snap.First, SignedTip: snap.SignedTip}
}

type queryParams struct {
	Query types.Query `json:"query"`
}

func (s *Service) rpcQuery(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (
	result interface{}, err error,
) {
	params := ctx.Value(paramsKey).(*queryParams)
	resp, err := s.Query(ctx, &params.Query)
	if types.IsQueryError(err) {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return resp, err
}

type verifyParams struct {
	Response types.Response `json:"response"`
}

func (s *Service) rpcVerify(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (
	result interface{}, err error,
) {
	params := ctx.Value(paramsKey).(*verifyParams)
	return s.Verify(&params.Response)
}

type headerParams struct {
	ID uint64 `json:"id"`
}

func (p *headerParams) Validate() error {
	if p.ID == 0 {
		return errors.New("block id starts from 1")
	}
	return nil
}

func (s *Service) rpcHeader(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (
	result interface{}, err error,
) {
	params := ctx.Value(paramsKey).(*headerParams)
	return s.chain.Snapshot().GetBlockHeader(params.ID)
}

func (s *Service) rpcTip(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (
	result interface{}, err error,
) {
	return s.Tip(), nil
}

func (s *Service) rpcParam(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (
	result interface{}, err error,
) {
	return s.chain.Param(), nil
}

// RPCHandler returns the JSON-RPC handler of the service.
func (s *Service) RPCHandler() jsonrpc2.Handler {
	return s.rpc
}
