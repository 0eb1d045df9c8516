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

package verifier

import (
	"github.com/CovenantSQL/verichain/metric"
	"github.com/CovenantSQL/verichain/types"
	"github.com/CovenantSQL/verichain/utils/log"
	"github.com/CovenantSQL/verichain/utils/timer"
)

// Check verifies resp against trusted, records the outcome in the metrics
// and returns its transport form.
func (v *Verifier) Check(trusted types.TipRef, resp *types.Response) *types.VerifyResponse {
	t := timer.NewTimer()
	o := v.Verify(trusted, resp)
	t.Add("verify")

	metric.Verifications.WithLabelValues(o.Status.String()).Inc()
	metric.VerifyDuration.Observe(t.Elapsed().Seconds())
	metric.Add(metric.ChainVerifies, 1)

	le := log.WithFields(log.Fields{
		"tip":    trusted.BlockID,
		"status": o.Status.String(),
	}).WithFields(t.ToLogFields())
	if o.Pass() {
		le.Debug("response verified")
	} else {
		le.WithField("detail", o.Detail).Info("response rejected")
	}
	return types.NewVerifyResponse(o, t.ElapsedMillis())
}
