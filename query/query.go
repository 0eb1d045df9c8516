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

// Package query answers range and keyword queries over a pinned chain
// snapshot, producing the result set and its verification object.
//
// The walk starts at the pinned tip. Above end_block it follows the
// longest pointer that does not overshoot end_block, recording those
// headers as waypoints. Inside [start_block, end_block] it skips the
// longest span whose keywords miss a keyword clause, proving the miss with
// the span accumulator, and otherwise queries the intra-block index of the
// block and moves to its predecessor.
package query

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/chain"
	"github.com/CovenantSQL/verichain/conf"
	"github.com/CovenantSQL/verichain/index"
	"github.com/CovenantSQL/verichain/metric"
	"github.com/CovenantSQL/verichain/skiplist"
	"github.com/CovenantSQL/verichain/types"
	"github.com/CovenantSQL/verichain/utils"
	"github.com/CovenantSQL/verichain/utils/log"
	"github.com/CovenantSQL/verichain/utils/timer"
)

// Execute answers q against snap. Malformed queries fail with a
// *types.QueryError before any block is read; no partial response is ever
// returned.
func Execute(ctx context.Context, snap *chain.Snapshot, q *types.Query) (resp *types.Response, err error) {
	t := timer.NewTimer()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if types.IsQueryError(err) {
				outcome = "invalid"
			}
			resp = nil
		}
		metric.Queries.WithLabelValues(outcome).Inc()
		metric.Add(metric.ChainQueries, 1)
	}()

	pred, err := Validate(snap, q)
	if err != nil {
		return
	}
	t.Add("compile")

	var (
		vo     = &types.VO{}
		stats  types.Stats
		result []*types.Object
		proofs = newProofSet(snap.Setup, pred)
		cur    = snap.Tip.BlockID
	)

	for cur > pred.End {
		var h *types.Header
		if h, err = snap.GetBlockHeader(cur); err != nil {
			return
		}
		level := skiplist.WaypointLevel(h, pred.End)
		vo.Blocks = append(vo.Blocks, &types.VOBlock{Header: *h, Role: types.Waypoint, Via: level})
		stats.NumWaypoints++
		cur -= skiplist.Distance(level)
	}
	t.Add("waypoints")

	for cur >= pred.Start {
		if err = ctx.Err(); err != nil {
			err = errors.Wrap(err, "query canceled")
			return
		}

		var h *types.Header
		if h, err = snap.GetBlockHeader(cur); err != nil {
			return
		}

		if snap.Param.SkipListMaxLevel > 0 {
			var node *types.SkipNode
			if node, err = snap.GetSkipNode(cur); err != nil {
				return
			}
			if lv, clause := skiplist.Jump(node, pred.Start, pred); lv != nil {
				b := &types.VOBlock{Header: *h, Role: types.Jumped, Via: lv.Level}
				if b.Jump, err = proofs.Prove(clause, lv.SpanKeywords, lv.SpanAcc); err != nil {
					return
				}
				vo.Blocks = append(vo.Blocks, b)
				stats.NumJumps++
				stats.NumJumpedBlocks += int(skiplist.Distance(lv.Level))
				cur = lv.Target
				continue
			}
		}

		var res *index.Result
		if res, err = index.Query(snap, cur, snap.Param, pred, proofs); err != nil {
			return
		}
		vo.Blocks = append(vo.Blocks, &types.VOBlock{Header: *h, Role: types.Candidate, Root: res.Root})
		result = append(result, res.Matches...)
		stats.NumCandidateBlocks++
		stats.NumRangePruned += res.RangePruned
		stats.NumKeywordPruned += res.KeywordPruned
		stats.NumMismatchObjects += res.Mismatches
		cur--
	}
	t.Add("traverse")

	vo.Proofs = proofs.clauseProofs()
	stats.NumAccProofs = proofs.count
	stats.NumObjects = len(result)
	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockID != result[j].BlockID {
			return result[i].BlockID < result[j].BlockID
		}
		return result[i].Seq < result[j].Seq
	})
	t.Add("proofs")

	resp = &types.Response{
		Query:     q,
		Tip:       snap.Tip,
		SignedTip: snap.SignedTip,
		Result:    result,
		VO:        vo,
		Stats:     stats,
	}
	if resp.VOSize, err = utils.MsgPackSize(vo); err != nil {
		err = errors.Wrap(err, "encode verification object failed")
		return
	}
	t.Add("encode")
	resp.QueryTimeInMS = t.ElapsedMillis()

	metric.QueryDuration.Observe(t.Elapsed().Seconds())
	metric.VOSize.Observe(float64(resp.VOSize))
	metric.Add(metric.ChainQueryMS, float64(resp.QueryTimeInMS))
	metric.Add(metric.ChainVOBytes, float64(resp.VOSize))

	log.WithFields(log.Fields{
		"start":   pred.Start,
		"end":     pred.End,
		"tip":     snap.Tip.BlockID,
		"objects": stats.NumObjects,
		"blocks":  stats.NumCandidateBlocks,
		"jumps":   stats.NumJumps,
		"vo_size": resp.VOSize,
	}).WithFields(t.ToLogFields()).Debug("query answered")
	return
}

// Validate compiles q and checks its block range against snap.
func Validate(snap *chain.Snapshot, q *types.Query) (pred *types.Predicate, err error) {
	if q == nil {
		return nil, types.NewQueryError(types.ErrInvalidParameter, "empty query")
	}
	if snap.Empty() {
		return nil, types.NewQueryError(types.ErrInvalidBlockRange, "chain has no block")
	}
	if pred, err = q.Compile(snap.Param); err != nil {
		return nil, err
	}
	if pred.Start < snap.First || pred.End > snap.Tip.BlockID {
		return nil, types.NewQueryError(types.ErrInvalidBlockRange,
			"blocks [%d, %d] outside chain [%d, %d]", pred.Start, pred.End, snap.First, snap.Tip.BlockID)
	}
	if pred.End-pred.Start >= conf.MaxBlockSpan {
		return nil, types.NewQueryError(types.ErrInvalidBlockRange,
			"%d blocks exceed the limit of %d", pred.End-pred.Start+1, conf.MaxBlockSpan)
	}
	return
}
