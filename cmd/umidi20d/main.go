// Command umidi20d is the minimal composition root that wires Root,
// Scheduler, backends, and on-disk configuration together into a runnable
// process. It has no sequencer UI or interactive transport control; it
// exists only to start the engine.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/justyntemme/umidi20go/pkg/engine"
)

func main() {
	var clientName string
	var configPath string

	root := &cobra.Command{
		Use:   "umidi20d",
		Short: "MIDI routing and sequencing daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(clientName, configPath)
		},
	}
	root.Flags().StringVar(&clientName, "client-name", "umidi20go", "client name advertised to JACK/ALSA")
	root.Flags().StringVar(&configPath, "config", "", "path to the device configuration YAML file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(clientName, configPath string) error {
	e, err := engine.New(clientName, configPath)
	if err != nil {
		return fmt.Errorf("umidi20d: %w", err)
	}
	e.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	e.Stop()
	return e.SaveConfig()
}
