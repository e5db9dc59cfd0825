package main

import (
	"flag"

	"github.com/danmuck/wxdash/internal/config"
	logs "github.com/danmuck/wxdash/internal/logging"
)

func main() {
	logs.ConfigureRuntime()

	kind := flag.String("kind", config.KindClient, "config kind: client|dashboard")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			p, err := config.DefaultPath(*kind)
			if err != nil {
				logs.Fatalf("configgen: %v", err)
			}
			path = p
		}
		if err := config.Validate(*kind, path); err != nil {
			logs.Fatalf("configgen: %v", err)
		}
		logs.Infof("configgen validated kind=%s path=%s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		p, err := config.DefaultPath(*kind)
		if err != nil {
			logs.Fatalf("configgen: %v", err)
		}
		target = p
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		logs.Fatalf("configgen: %v", err)
	}
	logs.Infof("configgen wrote kind=%s path=%s", *kind, target)
}
