package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingcap-incubator/omvcc/kv/config"
	"github.com/pingcap-incubator/omvcc/kv/engine"
	"github.com/pingcap-incubator/omvcc/log"
	"github.com/pingcap/errors"
	pclog "github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	logLevel   string
	conf       *config.Config
)

// loadConfig reads the config and installs the logger before any sub command runs.
func loadConfig(cmd *cobra.Command, args []string) error {
	conf = config.NewDefaultConfig()
	if configFile != "" {
		var err error
		if conf, err = config.LoadFile(configFile); err != nil {
			return err
		}
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}
	if err := log.InitLogger(conf.LogLevel, conf.LogFile); err != nil {
		return errors.Annotate(err, "init logger")
	}
	pclog.Info("conf", zap.Reflect("config", conf))
	return nil
}

func handleSignal(e *engine.Engine) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		pclog.Info("got signal to exit", zap.Stringer("signal", sig))
		e.Close()
		os.Exit(1)
	}()
}

func main() {
	rootCmd := &cobra.Command{
		Use:               "omvcc",
		Short:             "In-memory multi-version transactional key-value store",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "", "log level, overrides the config")

	rootCmd.AddCommand(
		newRunCommand(),
		newShellCommand(),
		newBenchCommand(),
	)

	cobra.EnablePrefixMatching = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
