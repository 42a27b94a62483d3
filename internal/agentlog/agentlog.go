// Package agentlog configures the agent's structured logger. Once the
// agent is serving, its log sink is never stdout or stderr (both carry,
// or are adjacent to, the RPC transport), only a file or /dev/null.
package agentlog

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// New builds a logger per the --log-file/--log-level flags. An empty path
// discards all output; a non-empty path opens (creating if necessary) that
// file in append mode.
func New(path, level string) (*logrus.Logger, error) {
	logger := logrus.New()

	var out io.Writer = io.Discard
	if path != "" {
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, errors.Wrap(err, "unable to open log file")
		}
		out = file
	}
	logger.SetOutput(out)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return logger, nil
}
