package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clabsync/clabsync/pkg/engine"
	"github.com/clabsync/clabsync/pkg/nautobot"
	"github.com/clabsync/clabsync/pkg/topology"
)

// connFlags are the Nautobot connection flags shared by sync and watch.
type connFlags struct {
	url       string
	token     string
	tlsVerify bool
	retries   int
	backoff   float64
	timeout   time.Duration
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "Nautobot URL (or NAUTOBOT_URL)")
	cmd.Flags().StringVar(&f.token, "token", "", "Nautobot API token (or NAUTOBOT_TOKEN)")
	cmd.Flags().BoolVar(&f.tlsVerify, "tls-verify", false, "verify the Nautobot TLS certificate")
	cmd.Flags().IntVar(&f.retries, "retries", 3, "attempt budget per API call")
	cmd.Flags().Float64Var(&f.backoff, "backoff", 1.0, "retry backoff factor in seconds")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "per-attempt HTTP timeout")
}

// clientConfig resolves the connection flags against the env file and
// environment. Flags win over the environment.
func (f *connFlags) clientConfig() (nautobot.Config, error) {
	// Missing env file is fine; the environment may carry the values.
	if err := godotenv.Load(envFile); err == nil {
		log.Debug().Str("file", envFile).Msg("Loaded environment file")
	}

	cfg := nautobot.DefaultConfig()
	cfg.BaseURL = f.url
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("NAUTOBOT_URL")
	}
	cfg.Token = f.token
	if cfg.Token == "" {
		cfg.Token = os.Getenv("NAUTOBOT_TOKEN")
	}
	if cfg.BaseURL == "" {
		return cfg, fmt.Errorf("nautobot URL missing: pass --url or set NAUTOBOT_URL")
	}
	if cfg.Token == "" {
		return cfg, fmt.Errorf("nautobot token missing: pass --token or set NAUTOBOT_TOKEN")
	}

	cfg.TLSVerify = f.tlsVerify
	cfg.Retries = f.retries
	cfg.BackoffFactor = f.backoff
	cfg.Timeout = f.timeout
	return cfg, nil
}

// inputFlags are the topology input flags shared by validate, plan, sync,
// and watch.
type inputFlags struct {
	topology  string
	extraVars string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.topology, "topology", "t", "", "containerlab topology file")
	cmd.Flags().StringVarP(&f.extraVars, "extra-vars", "e", "", "extra-vars overrides file")
	_ = cmd.MarkFlagRequired("topology")
}

// loadEffective loads the topology and optional overrides, merges them, and
// logs any merge warnings. It returns the effective topology plus the
// overrides (the plan builder reads the prefix list from them).
func (f *inputFlags) loadEffective() (*topology.Document, *topology.Overrides, error) {
	doc, err := topology.LoadFile(f.topology)
	if err != nil {
		return nil, nil, err
	}

	var ov *topology.Overrides
	if f.extraVars != "" {
		ov, err = topology.LoadOverridesFile(f.extraVars)
		if err != nil {
			return nil, nil, err
		}
	}

	merged, warnings, err := topology.Merge(doc, ov)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		log.Warn().Str("node", w.NodeKey).Msg("Override key not found in topology, skipped")
	}

	return merged, ov, nil
}

// buildPlan builds and validates the resource plan for the effective topology.
func (f *inputFlags) buildPlan() (*engine.Plan, error) {
	doc, ov, err := f.loadEffective()
	if err != nil {
		return nil, err
	}
	return engine.BuildPlan(doc, ov, engine.DefaultOptions())
}
