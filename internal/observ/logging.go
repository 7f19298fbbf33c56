package observ

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Events go to stderr so they never interleave with rendered output on
// stdout.
var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects the event log, primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Log emits one structured event as a single JSON line.
func Log(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	b, _ := json.Marshal(kv)
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out, string(b))
}
