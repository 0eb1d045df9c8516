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

package utils

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/utils/log"
)

// Profile is a running cpu and heap profile of the process.
type Profile struct {
	cpu *os.File
	mem *os.File
}

// StartProfile starts cpu profiling into cpuPath and arms a heap profile
// written to memPath on Stop. An empty path disables that profile.
func StartProfile(cpuPath, memPath string) (p *Profile, err error) {
	p = &Profile{}
	if cpuPath != "" {
		if p.cpu, err = os.Create(cpuPath); err != nil {
			log.WithField("file", cpuPath).WithError(err).Error("failed to create CPU profile file")
			return nil, err
		}
		if err = pprof.StartCPUProfile(p.cpu); err != nil {
			p.cpu.Close()
			return nil, errors.Wrap(err, "start CPU profile failed")
		}
		log.WithField("file", cpuPath).Info("writing CPU profiling to file")
	}

	if memPath != "" {
		if p.mem, err = os.Create(memPath); err != nil {
			log.WithField("file", memPath).WithError(err).Error("failed to create memory profile file")
			p.Stop()
			return nil, err
		}
		runtime.MemProfileRate = 4096
		log.WithField("file", memPath).Info("writing memory profiling to file")
	}
	return
}

// Stop ends the cpu profile and writes the heap profile.
func (p *Profile) Stop() {
	if p == nil {
		return
	}
	if p.cpu != nil {
		pprof.StopCPUProfile()
		p.cpu.Close()
		p.cpu = nil
		log.Info("CPU profiling stopped")
	}
	if p.mem != nil {
		if err := pprof.WriteHeapProfile(p.mem); err != nil {
			log.WithError(err).Warning("write heap profile failed")
		}
		p.mem.Close()
		p.mem = nil
		log.Info("memory profiling stopped")
	}
}
