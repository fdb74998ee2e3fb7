// Command analyzerd parses the redo-log analyzer's configuration the way
// flowctl wires together a Flow consumer: a single tagged Config struct,
// parsed by go-flags. Its serve command validates the configuration, opens
// the file state store, loads the database's checkpoint and waits for a
// shutdown signal; it does not start the pipeline or write checkpoints.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	mbp "go.gazette.dev/core/mainboilerplate"

	"github.com/openlogreplicator/analyzer/internal/checkpoint"
	"github.com/openlogreplicator/analyzer/internal/config"
	"github.com/openlogreplicator/analyzer/internal/ops"
)

const iniFilename = "analyzerd.ini"

type serveConfig struct {
	config.Config
	StateDir string `long:"state-dir" default:"./state" env:"STATE_DIR" description:"Directory backing the file-per-name state store"`
}

func (c *serveConfig) Execute(args []string) error {
	ops.Init(c.Config.LogConfig)

	if err := c.Config.Validate(); err != nil {
		mbp.Must(err, "invalid configuration")
	}

	store, err := checkpoint.NewFileStore(c.StateDir)
	mbp.Must(err, "opening state store")

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var sig = make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		ops.Infof("analyzerd: received shutdown signal")
		cancel()
	}()

	rec, found, err := checkpoint.Load(ctx, store, c.Config.Database)
	mbp.Must(err, "loading checkpoint")
	if found {
		ops.Infof("analyzerd: resuming %s from scn=%s", c.Config.Database, rec.Scn)
	} else {
		ops.Infof("analyzerd: no checkpoint found for %s, starting fresh", c.Config.Database)
	}

	<-ctx.Done()
	return nil
}

func main() {
	var parser = flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	_, err := parser.AddCommand("serve", "Run the redo-log analyzer", `
Validate the configuration, load the database's checkpoint from the state
directory and wait until signaled to exit (SIGINT/SIGTERM). The pipeline is
not started and no checkpoint is written.
`, &serveConfig{})
	mbp.Must(err, "failed to add serve command")

	mbp.MustParseConfig(parser, iniFilename)
}
