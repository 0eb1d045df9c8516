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

package types

import (
	"encoding/json"

	"github.com/CovenantSQL/verichain/crypto/hash"
)

// BlockRole is the part a visited header plays in the traversal.
type BlockRole uint8

const (
	// Waypoint headers lie above end_block and only route the walk.
	Waypoint BlockRole = iota + 1
	// Candidate headers are in range and carry their intra-block VO.
	Candidate
	// Jumped headers start a skip span proven to hold no match.
	Jumped
)

func (r BlockRole) String() string {
	switch r {
	case Waypoint:
		return "Waypoint"
	case Candidate:
		return "Candidate"
	case Jumped:
		return "Jumped"
	default:
		return "Unknown"
	}
}

// AccRef is an accumulator value claimed disjoint from a clause. Proofs of
// every AccRef of one clause are summed into that clause's ClauseProof.
type AccRef struct {
	Clause int    `json:"clause"`
	Acc    []byte `json:"acc"`
}

// VONodeKind is the variant of a VO index node.
type VONodeKind uint8

const (
	// VOInner is an expanded inner node.
	VOInner VONodeKind = iota + 1
	// VOLeaf is an expanded leaf.
	VOLeaf
	// VORangePruned is a node whose box misses the query range.
	VORangePruned
	// VOKeywordPruned is a node whose keywords miss a keyword clause.
	VOKeywordPruned
)

// VONode mirrors one visited index node. Expanded nodes carry Children or
// Entries; pruned nodes carry only what their digest needs.
type VONode struct {
	Kind         VONodeKind `json:"kind"`
	NodeKind     NodeKind   `json:"node_kind"`
	Box          Box        `json:"box"`
	AccDigest    hash.Hash  `json:"acc_digest"`
	Acc          *AccRef    `json:"acc,omitempty"`
	Count        uint32     `json:"count,omitempty"`
	ChildrenRoot hash.Hash  `json:"children_root"`
	Children     []*VONode  `json:"children,omitempty"`
	Entries      []*VOEntry `json:"entries,omitempty"`
}

// EntryKind tells matched entries from proven mismatches.
type EntryKind uint8

const (
	// EntryMatch entries reference a returned object.
	EntryMatch EntryKind = iota + 1
	// EntryMismatch entries prove their object violates a clause.
	EntryMismatch
)

// VOEntry mirrors one leaf entry.
type VOEntry struct {
	Kind         EntryKind `json:"kind"`
	Seq          uint32    `json:"seq,omitempty"`
	AccDigest    hash.Hash `json:"acc_digest"`
	ObjectDigest hash.Hash `json:"object_digest"`
	Acc          *AccRef   `json:"acc,omitempty"`
}

// VOBlock is one visited header. Via is the pointer level followed to the
// next header, 0 meaning PrevDigest.
type VOBlock struct {
	Header Header    `json:"header"`
	Role   BlockRole `json:"role"`
	Via    uint8     `json:"via"`
	Root   *VONode   `json:"root,omitempty"`
	Jump   *AccRef   `json:"jump,omitempty"`
}

// ClauseProof is the sum of the disjointness proofs of one clause.
type ClauseProof struct {
	Clause int    `json:"clause"`
	Proof  []byte `json:"proof"`
}

// VO is the verification object of a query, headers ordered from the
// pinned tip downward.
type VO struct {
	Blocks []*VOBlock     `json:"blocks"`
	Proofs []*ClauseProof `json:"proofs"`
}

// Stats counts the decisions made while answering a query.
type Stats struct {
	NumObjects         int `json:"num_of_objs"`
	NumCandidateBlocks int `json:"num_of_candidate_blocks"`
	NumWaypoints       int `json:"num_of_waypoints"`
	NumJumps           int `json:"num_of_jumps"`
	NumJumpedBlocks    int `json:"num_of_jumped_blocks"`
	NumRangePruned     int `json:"num_of_range_pruned_nodes"`
	NumKeywordPruned   int `json:"num_of_keyword_pruned_nodes"`
	NumMismatchObjects int `json:"num_of_mismatch_objs"`
	NumAccProofs       int `json:"num_of_acc_proofs"`
}

// Response is a query answer. It is also the verify request.
type Response struct {
	Query         *Query     `json:"query"`
	Tip           TipRef     `json:"tip"`
	SignedTip     *SignedTip `json:"signed_tip,omitempty"`
	Result        []*Object  `json:"result"`
	VO            *VO        `json:"vo"`
	QueryTimeInMS uint64     `json:"query_time_in_ms"`
	VOSize        int        `json:"vo_size"`
	Stats         Stats      `json:"stats"`
}

// VerifyStatus is the outcome class of a verification.
type VerifyStatus uint8

const (
	// VerifyPass means the response is correct and complete.
	VerifyPass VerifyStatus = iota
	// VerifyInconsistent means a digest or proof does not match.
	VerifyInconsistent
	// VerifyIncomplete means a required fragment is missing.
	VerifyIncomplete
	// VerifyUnsound means a returned object fails the predicate.
	VerifyUnsound
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyPass:
		return "Pass"
	case VerifyInconsistent:
		return "Inconsistent"
	case VerifyIncomplete:
		return "Incomplete"
	case VerifyUnsound:
		return "Unsound"
	default:
		return "Unknown"
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (s VerifyStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// VerifyOutcome is the value a verification returns. It is never an error.
type VerifyOutcome struct {
	Status VerifyStatus `json:"status"`
	Detail string       `json:"detail"`
}

// Pass reports whether the outcome is VerifyPass.
func (o VerifyOutcome) Pass() bool {
	return o.Status == VerifyPass
}

func (o VerifyOutcome) String() string {
	if o.Detail == "" {
		return o.Status.String()
	}
	return o.Status.String() + ": " + o.Detail
}

// VerifyResponse is the transport form of a VerifyOutcome.
type VerifyResponse struct {
	Pass           bool    `json:"pass"`
	Detail         *string `json:"detail"`
	VerifyTimeInMS uint64  `json:"verify_time_in_ms"`
}

// NewVerifyResponse converts an outcome.
func NewVerifyResponse(o VerifyOutcome, ms uint64) *VerifyResponse {
	resp := &VerifyResponse{Pass: o.Pass(), VerifyTimeInMS: ms}
	if !o.Pass() {
		detail := o.String()
		resp.Detail = &detail
	}
	return resp
}
