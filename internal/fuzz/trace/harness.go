package trace

import (
	"bytes"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/executor"
)

// TracingHarness is a harness variant that writes CMP trace lines to the
// supplied buffer instead of (or in addition to) stdout, so CapturingHarness
// can route them into an Extractor without a real subprocess.
type TracingHarness func(data []byte, trace *bytes.Buffer) executor.ExitKind

// CapturingHarness adapts a TracingHarness into a plain executor.Harness:
// each call gets a fresh buffer, the wrapped harness runs, and whatever it
// wrote is fed to ext before the exit kind is returned.
func CapturingHarness(h TracingHarness, ext *Extractor) executor.Harness {
	return func(data []byte) executor.ExitKind {
		var buf bytes.Buffer
		kind := h(data, &buf)
		ext.Feed(buf.Bytes())
		return kind
	}
}
