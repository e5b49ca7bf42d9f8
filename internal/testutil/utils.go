package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger matching the service's "[dev-journal]"
// prefix convention, tagged with the test name so interleaved output
// from parallel tests stays attributable.
func TestLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(os.Stdout, "[dev-journal/"+t.Name()+"] ", log.LstdFlags)
}
