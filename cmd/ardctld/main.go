package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/ardctl/pkg/config"
	"github.com/robotalks/ardctl/pkg/daemon"
	fx "github.com/robotalks/ardctl/pkg/framework"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := config.NewConfig()
	if err != nil {
		glog.Fatalf("config: %v", err)
	}
	d, err := daemon.New(conf)
	if err != nil {
		glog.Fatalf("attach: %v", err)
	}
	fx.NewRunner().HandleSignals().RunOrFail(fx.NamedRun("ardctld", d))
}
