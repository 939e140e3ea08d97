package server

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// SetupLogging points the standard logger at dir/pacelab.log. Output is
// mirrored to stdout unless running under air, which tails the file itself.
func SetupLogging(dir string) (io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "pacelab.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	var out io.Writer = f
	if _, underAir := os.LookupEnv("AIR_RESTART_COUNT"); !underAir {
		out = io.MultiWriter(os.Stdout, f)
	}
	log.SetOutput(out)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	return f, nil
}
