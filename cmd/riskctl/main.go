package main

import (
	"os"

	"github.com/synaptica-ai/healthrisk/pkg/common/config"
)

func main() {
	config.LoadDotEnv()
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
