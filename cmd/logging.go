package cmd

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/log"
	"github.com/urfave/cli"
)

var logger = log.New("oxy-cull")

// setupLogging applies the configured level. The -v and -vv flags win over the file.
func setupLogging(ctx *cli.Context, cfg config.Config) {
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
