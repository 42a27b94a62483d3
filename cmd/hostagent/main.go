// Command hostagent serves the remote filesystem/process/watch protocol
// over stdin/stdout. It should not write anything else to stdout, and must
// never write to stderr once serving begins, since stderr may be
// byte-merged into the same transport by the caller (conventionally an SSH
// session), which would corrupt the framing.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hostagent/hostagent/internal/aggregate"
	"github.com/hostagent/hostagent/internal/agentlog"
	"github.com/hostagent/hostagent/internal/dirwalk"
	"github.com/hostagent/hostagent/internal/dispatch"
	"github.com/hostagent/hostagent/internal/fsops"
	"github.com/hostagent/hostagent/internal/fswatch"
	"github.com/hostagent/hostagent/internal/procsup"
	"github.com/hostagent/hostagent/internal/protocol"
	"github.com/hostagent/hostagent/internal/ptysup"
	"github.com/hostagent/hostagent/internal/server"
)

var (
	logFilePath string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "hostagent",
	Short: "Serve the remote host protocol over stdin/stdout",
	RunE:  run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&logFilePath, "log-file", "", "path to a file to append diagnostic logs to (default: discard)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := agentlog.New(logFilePath, logLevel)
	if err != nil {
		// The logger itself failed to initialize; this is the one place we
		// may still be able to report a startup failure, but never via
		// stderr once a transport might be live. The root command prints
		// neither errors nor usage, so this exits silently with status 1.
		return err
	}
	log := logger.WithField("component", "hostagent")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	disp := dispatch.New()
	writer := protocol.NewWriter(os.Stdout)

	procsup.Register(disp, procsup.NewTable())
	ptysup.Register(disp, ptysup.NewTable())
	fsops.Register(disp)
	dirwalk.Register(disp)
	aggregate.Register(disp)

	watcher, err := fswatch.New(ctx, writer, log)
	if err != nil {
		log.WithError(err).Error("unable to start filesystem watcher")
	} else {
		watcher.Register(disp)
		defer watcher.Close()
	}

	log.Info("hostagent serving")
	serveErr := server.Serve(ctx, os.Stdin, writer, disp)
	log.WithError(serveErr).Info("hostagent stopped serving")
	return serveErr
}
