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

package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/CovenantSQL/verichain/chain"
	"github.com/CovenantSQL/verichain/conf"
	"github.com/CovenantSQL/verichain/loader"
	"github.com/CovenantSQL/verichain/types"
	"github.com/CovenantSQL/verichain/utils"
	"github.com/CovenantSQL/verichain/utils/log"
	"github.com/CovenantSQL/verichain/utils/timer"
)

var (
	version = "1"
	commit  = "unknown"
	branch  = "unknown"
)

var (
	configFile   string
	inputFile    string
	dataDir      string
	bitLengths   string
	skipLevel    uint
	leafCapacity uint
	noIntraIndex bool
	dump         bool
	logLevel     string
	showVersion  bool

	// profile
	cpuProfile string
	memProfile string
)

const name = `verichain-build`
const desc = `verichain-build seals objects of a text file into a verifiable chain`

func init() {
	flag.StringVar(&configFile, "config", "", "Config file path, flags override its chain settings")
	flag.StringVar(&inputFile, "input", "", "Input file of `block_id [v1,v2] {w1,w2}` lines")
	flag.StringVar(&dataDir, "datadir", "", "Chain data directory, the chain is kept in memory if empty")
	flag.StringVar(&bitLengths, "bitlen", "", "Comma separated bit length of every dimension, e.g. 16,16")
	flag.UintVar(&skipLevel, "skiplevel", 0, "Skip list max level, 0 disables the skip list")
	flag.UintVar(&leafCapacity, "leafcap", types.DefaultLeafCapacity, "Objects per intra-block index leaf")
	flag.BoolVar(&noIntraIndex, "no-intra-index", false, "Seal every block as a single leaf")
	flag.BoolVar(&dump, "dump", false, "Dump every sealed header")
	flag.StringVar(&logLevel, "loglevel", "", "Log level, overrides the config")
	flag.BoolVar(&showVersion, "version", false, "Show version information and exit")
	flag.StringVar(&cpuProfile, "cpu-profile", "", "Path to file for CPU profiling information")
	flag.StringVar(&memProfile, "mem-profile", "", "Path to file for memory profiling information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "\n%s\n\n", desc)
		fmt.Fprintf(os.Stderr, "Usage: %s [arguments]\n", name)
		flag.PrintDefaults()
	}
}

func parseBitLengths(s string) (bits []uint8, err error) {
	for _, part := range strings.Split(s, ",") {
		var b uint64
		if b, err = strconv.ParseUint(strings.TrimSpace(part), 10, 8); err != nil {
			return nil, errors.Wrapf(err, "bit length %q", part)
		}
		bits = append(bits, uint8(b))
	}
	return
}

// loadConfig merges the config file with the explicitly set flags.
func loadConfig() (cfg *conf.Config, err error) {
	if configFile != "" {
		if cfg, err = conf.LoadConfig(configFile); err != nil {
			return
		}
	} else {
		cfg = &conf.Config{WorkingRoot: "."}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "datadir":
			cfg.DataDir = dataDir
		case "bitlen":
			var bits []uint8
			if bits, err = parseBitLengths(bitLengths); err == nil {
				cfg.BitLengths = bits
			}
		case "skiplevel":
			cfg.SkipListMaxLevel = uint8(skipLevel)
		case "leafcap":
			cfg.LeafCapacity = uint32(leafCapacity)
		case "no-intra-index":
			intra := !noIntraIndex
			cfg.IntraIndex = &intra
		case "loglevel":
			cfg.LogLevel = logLevel
		}
	})
	if err != nil {
		return
	}
	cfg.SetDefaults()
	err = cfg.Validate()
	return
}

func build(cfg *conf.Config) (err error) {
	signer, err := cfg.LoadProducerKey()
	if err != nil {
		return errors.Wrap(err, "load producer key failed")
	}

	t := timer.NewTimer()
	blocks, err := loader.LoadFile(inputFile)
	if err != nil {
		return
	}
	t.Add("load")

	c, err := chain.NewChain(&chain.Config{
		DataDir:      cfg.Path(cfg.DataDir),
		Param:        cfg.Parameter(),
		AccCacheSize: cfg.AccCacheSize,
		Signer:       signer,
	})
	if err != nil {
		return
	}
	defer c.Close()
	t.Add("open")

	var objects int
	for _, b := range blocks {
		var h *types.Header
		if h, err = c.Append(b.ID, b.Objects); err != nil {
			return
		}
		objects += len(b.Objects)
		if dump {
			spew.Dump(h)
		}
	}
	t.Add("seal")

	tip := c.Tip()
	log.WithFields(log.Fields{
		"blocks":  len(blocks),
		"objects": objects,
		"tip":     tip.BlockID,
		"digest":  tip.Digest.String(),
	}).WithFields(t.ToLogFields()).Info("build finished")
	fmt.Printf("%d %s\n", tip.BlockID, tip.Digest)
	return
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("%v %v %v %v %v\n",
			name, version, runtime.GOOS, runtime.GOARCH, runtime.Version())
		os.Exit(0)
	}
	if inputFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.WithField("config", configFile).WithError(err).Fatal("load config failed")
	}
	log.SetStringLevel(cfg.LogLevel, log.InfoLevel)
	log.Infof("%#v starting, version %#v, commit %#v, branch %#v", name, version, commit, branch)

	// init profile, if cpuProfile, memProfile length is 0, nothing will be done
	prof, err := utils.StartProfile(cpuProfile, memProfile)
	if err != nil {
		log.WithError(err).Fatal("start profile failed")
	}

	err = build(cfg)
	prof.Stop()
	if err != nil {
		log.WithField("input", inputFile).WithError(err).Fatal("build chain failed")
	}
}
