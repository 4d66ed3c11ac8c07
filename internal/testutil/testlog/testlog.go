package testlog

import (
	"testing"

	"github.com/danmuck/simctl/internal/logging"
	"github.com/rs/zerolog"
)

// Start configures the test logging profile and returns a logger that
// writes through t.Log, tagged with the test name.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	return zerolog.New(zerolog.NewTestWriter(t)).With().Str("test", t.Name()).Logger()
}
