// Package trace parses structured comparison trace lines a harness writes
// to stdout into CmpMap updates, for in-process harnesses that cannot embed
// real compiler instrumentation.
package trace

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/observer"
)

// Line format: "CMP idx=<n> a=<operand> b=<operand>", where each operand is
// either a 0x-prefixed hex integer or a double-quoted string.
const linePrefix = "CMP "

// Extractor records CMP trace lines into a MemCmpMap, standing in for the
// comparison-site instrumentation a compiled binary would emit natively.
type Extractor struct {
	target *observer.MemCmpMap
}

// NewExtractor wraps the MemCmpMap that parsed comparisons are recorded
// into.
func NewExtractor(target *observer.MemCmpMap) *Extractor {
	return &Extractor{target: target}
}

// Feed scans a harness's captured stdout and records every recognized CMP
// line, ignoring everything else.
func (e *Extractor) Feed(stdout []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	for scanner.Scan() {
		e.feedLine(scanner.Text())
	}
}

func (e *Extractor) feedLine(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, linePrefix) {
		return
	}

	fields := strings.Fields(line)
	var site int
	var a, b string
	haveSite, haveA, haveB := false, false, false

	for _, f := range fields[1:] {
		switch {
		case strings.HasPrefix(f, "idx="):
			n, err := strconv.Atoi(strings.TrimPrefix(f, "idx="))
			if err != nil {
				return
			}
			site, haveSite = n, true
		case strings.HasPrefix(f, "a="):
			a, haveA = strings.TrimPrefix(f, "a="), true
		case strings.HasPrefix(f, "b="):
			b, haveB = strings.TrimPrefix(f, "b="), true
		}
	}

	if !haveSite || !haveA || !haveB {
		return
	}

	if lhs, rhs, ok := parseHexPair(a, b); ok {
		e.target.RecordU64(site, lhs, rhs)
		return
	}

	e.target.RecordBytes(site, []byte(unquote(a)), []byte(unquote(b)))
}

func parseHexPair(a, b string) (uint64, uint64, bool) {
	if !strings.HasPrefix(a, "0x") || !strings.HasPrefix(b, "0x") {
		return 0, 0, false
	}
	lhs, errA := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 64)
	rhs, errB := strconv.ParseUint(strings.TrimPrefix(b, "0x"), 16, 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return lhs, rhs, true
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
