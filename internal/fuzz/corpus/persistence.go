package corpus

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/emberfuzz/emberfuzz/internal/fuzz/ferr"
	"github.com/emberfuzz/emberfuzz/internal/fuzz/input"
)

// CompressionThreshold is the entry size, in bytes, above which Save
// gzip-compresses the input body before writing it to disk. Below it the
// compression overhead is not worth the syscall and CPU cost.
const CompressionThreshold = 4096

type sidecar struct {
	Hash        string                 `json:"hash"`
	Size        int                    `json:"size"`
	Compressed  bool                   `json:"compressed"`
	FuzzLevel   int                    `json:"fuzz_level"`
	ExecTimeNs  int64                  `json:"exec_time_ns,omitempty"`
	HasExecTime bool                   `json:"has_exec_time"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Save persists the testcase at idx under <dir>/queue/<hash>, mirroring the
// teacher's queue/crashes directory convention. A no-op if the corpus has
// no backing directory.
func (c *Corpus) Save(idx int) error {
	if c.dir == "" {
		return nil
	}
	tc, err := c.Get(idx)
	if err != nil {
		return err
	}
	return saveTestcase(filepath.Join(c.dir, "queue"), tc)
}

// SaveAll persists every testcase currently in the corpus.
func (c *Corpus) SaveAll() error {
	if c.dir == "" {
		return nil
	}
	c.mu.RLock()
	entries := make([]*Testcase, len(c.entries))
	copy(entries, c.entries)
	c.mu.RUnlock()

	for _, tc := range entries {
		if err := saveTestcase(filepath.Join(c.dir, "queue"), tc); err != nil {
			return err
		}
	}
	return nil
}

func saveTestcase(dir string, tc *Testcase) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ferr.Wrap(ferr.File, err, "creating corpus directory %q", dir)
	}

	data := tc.Input.Bytes()
	hash := tc.Input.Hash()
	side := sidecar{
		Hash:      hash,
		Size:      len(data),
		FuzzLevel: tc.FuzzLevel,
		Metadata:  tc.Metadata,
	}
	if tc.ExecTime != nil {
		side.HasExecTime = true
		side.ExecTimeNs = tc.ExecTime.Nanoseconds()
	}

	body := data
	if len(data) > CompressionThreshold {
		compressed, err := gzipBytes(data)
		if err != nil {
			return ferr.Wrap(ferr.Compression, err, "compressing corpus entry %s", hash)
		}
		body = compressed
		side.Compressed = true
	}

	path := filepath.Join(dir, hash)
	if err := os.WriteFile(path, body, 0644); err != nil {
		return ferr.Wrap(ferr.File, err, "writing corpus entry %s", hash)
	}

	meta, err := json.Marshal(side)
	if err != nil {
		return ferr.Wrap(ferr.Serialize, err, "marshaling sidecar for %s", hash)
	}
	if err := os.WriteFile(path+".json", meta, 0644); err != nil {
		return ferr.Wrap(ferr.File, err, "writing sidecar for %s", hash)
	}
	return nil
}

// Load repopulates the corpus from its on-disk queue directory, in
// lexicographic filename order (the hash itself, since no insertion-order
// record is persisted separately).
func (c *Corpus) Load() error {
	if c.dir == "" {
		return ferr.New(ferr.IllegalArgument, "corpus has no backing directory to load from")
	}
	queueDir := filepath.Join(c.dir, "queue")
	files, err := os.ReadDir(queueDir)
	if err != nil {
		return ferr.Wrap(ferr.File, err, "reading corpus queue directory %q", queueDir)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) == ".json" {
			continue
		}

		path := filepath.Join(queueDir, f.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return ferr.Wrap(ferr.File, err, "reading corpus entry %q", path)
		}

		var side sidecar
		if metaRaw, err := os.ReadFile(path + ".json"); err == nil {
			if err := json.Unmarshal(metaRaw, &side); err != nil {
				return ferr.Wrap(ferr.Serialize, err, "unmarshaling sidecar for %q", path)
			}
		}

		data := raw
		if side.Compressed {
			decompressed, err := gunzipBytes(raw)
			if err != nil {
				return ferr.Wrap(ferr.Compression, err, "decompressing corpus entry %q", path)
			}
			data = decompressed
		}

		tc := NewTestcase(input.NewBytes(data))
		tc.Filename = f.Name()
		tc.FuzzLevel = side.FuzzLevel
		if side.Metadata != nil {
			tc.Metadata = side.Metadata
		}
		c.entries = append(c.entries, tc)
		c.seen[tc.Input.Hash()] = struct{}{}
	}
	return nil
}
