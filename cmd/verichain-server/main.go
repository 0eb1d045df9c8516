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
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/CovenantSQL/verichain/api"
	"github.com/CovenantSQL/verichain/chain"
	"github.com/CovenantSQL/verichain/conf"
	"github.com/CovenantSQL/verichain/metric"
	"github.com/CovenantSQL/verichain/utils"
	"github.com/CovenantSQL/verichain/utils/log"
)

var (
	version = "1"
	commit  = "unknown"
	branch  = "unknown"
)

var (
	configFile    string
	listenAddr    string
	websocketAddr string
	showVersion   bool

	// profile
	cpuProfile string
	memProfile string
)

const name = `verichain-server`
const desc = `verichain-server answers verifiable queries over http and websocket json-rpc`

func init() {
	flag.StringVar(&configFile, "config", "./config.yaml", "Config file path")
	flag.StringVar(&listenAddr, "listen", "", "Listen address of the http api, overrides the config")
	flag.StringVar(&websocketAddr, "wsapi", "", "Address of the websocket JSON-RPC API, overrides the config")
	flag.BoolVar(&showVersion, "version", false, "Show version information and exit")
	flag.StringVar(&cpuProfile, "cpu-profile", "", "Path to file for CPU profiling information")
	flag.StringVar(&memProfile, "mem-profile", "", "Path to file for memory profiling information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "\n%s\n\n", desc)
		fmt.Fprintf(os.Stderr, "Usage: %s [arguments]\n", name)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("%v %v %v %v %v\n",
			name, version, runtime.GOOS, runtime.GOARCH, runtime.Version())
		os.Exit(0)
	}

	var err error
	conf.GConf, err = conf.LoadConfig(configFile)
	if err != nil {
		log.WithField("config", configFile).WithError(err).Fatal("load config failed")
	}
	cfg := conf.GConf
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if websocketAddr != "" {
		cfg.WebsocketAddr = websocketAddr
	}
	log.SetStringLevel(cfg.LogLevel, log.InfoLevel)
	log.Infof("%#v starting, version %#v, commit %#v, branch %#v", name, version, commit, branch)
	log.Infof("%#v, target architecture is %#v, operating system target is %#v", runtime.Version(), runtime.GOARCH, runtime.GOOS)

	// init profile, if cpuProfile, memProfile length is 0, nothing will be done
	prof, err := utils.StartProfile(cpuProfile, memProfile)
	if err != nil {
		log.WithError(err).Fatal("start profile failed")
	}
	defer prof.Stop()

	signer, err := cfg.LoadProducerKey()
	if err != nil {
		log.WithError(err).Fatal("load producer key failed")
	}
	if cfg.DataDir == "" {
		log.Fatal("config has no DataDir")
	}
	c, err := chain.NewChain(&chain.Config{
		DataDir:      cfg.Path(cfg.DataDir),
		Param:        cfg.Parameter(),
		AccCacheSize: cfg.AccCacheSize,
		Signer:       signer,
	})
	if err != nil {
		log.WithField("datadir", cfg.Path(cfg.DataDir)).WithError(err).Fatal("open chain failed")
	}
	defer c.Close()

	stopCollector := make(chan struct{})
	metric.StartRuntimeCollector(5*time.Second, stopCollector)

	server := api.NewServer(api.NewService(c), cfg.ListenAddr, cfg.WebsocketAddr)
	if err = server.Start(); err != nil {
		log.WithError(err).Fatal("start api server failed")
	}
	log.WithField("tip", c.Tip().BlockID).Info("server started")

	signalCh := make(chan os.Signal, 1)
	signal.Notify(
		signalCh,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	signal.Ignore(syscall.SIGHUP, syscall.SIGTTIN, syscall.SIGTTOU)

	<-signalCh

	close(stopCollector)
	if err = server.Shutdown(); err != nil {
		log.WithError(err).Error("stop api server failed")
	}
	log.Info("server stopped")
}
