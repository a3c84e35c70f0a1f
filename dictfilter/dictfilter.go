// Package dictfilter implements the dictionary-side membership hook
// (spec.md §4.J): at most one filter per dictionary, loaded lazily and
// falling back to "might contain" whenever the filter is absent, disabled,
// or failed to load.
package dictfilter

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"

	"github.com/ShangDanLuXian/clp/filterfile"
	"github.com/ShangDanLuXian/clp/internal/base"
	"github.com/ShangDanLuXian/clp/probfilter"
)

// Hook owns at most one loaded FilterFile for a dictionary. The zero value
// is a disabled hook: MightContain always returns true.
type Hook struct {
	logger base.Logger
	file   *filterfile.File
}

// NewHook returns a Hook with no filter loaded.
func NewHook(logger base.Logger) *Hook {
	if logger == nil {
		logger = base.DefaultLogger{}
	}
	return &Hook{logger: logger}
}

// Load reads a FilterFile from path, through the same zstd stream the
// writer used to persist it (WriteFilter). A failure to open or decode the
// file is non-fatal: it is logged, the hook records "absent", and the
// caller's dictionary falls back to a full load. The returned error exists
// for callers that want to surface the failure themselves; it is always
// safe to ignore.
func (h *Hook) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		h.file = nil
		h.logger.Infof("%s", redact.Sprintf("dictfilter: no filter at %s, falling back to full load: %v", redact.Safe(path), err))
		return errors.Wrapf(err, "opening dictionary filter %q", path)
	}
	defer f.Close()

	decoded, err := filterfile.ReadCompressed(f)
	if err != nil {
		h.file = nil
		h.logger.Infof("%s", redact.Sprintf("dictfilter: failed to decode filter at %s, falling back to full load: %v", redact.Safe(path), err))
		return errors.Wrapf(err, "decoding dictionary filter %q", path)
	}
	h.file = decoded
	return nil
}

// WriteFilter persists filter to path in the compressed form Load expects,
// implementing the writer-side half of "filter.write(path) returns
// compressed filter size" (spec.md §6). It returns the compressed byte
// count written.
func WriteFilter(path string, meta filterfile.Metadata, filter *probfilter.Filter) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "creating dictionary filter %q", path)
	}
	n, err := filterfile.WriteCompressed(out, meta, filter)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, errors.Wrapf(err, "writing dictionary filter %q", path)
	}
	return n, nil
}

// Loaded reports whether a filter is currently active.
func (h *Hook) Loaded() bool { return h.file != nil }

// MightContain answers the only question this hook exposes: whether needle
// could be a value in the dictionary. It never hands out the inner filter.
func (h *Hook) MightContain(needle string) bool {
	if h.file == nil {
		return true
	}
	if h.file.Normalize {
		needle = strings.ToLower(needle)
	}
	return h.file.Filter.PossiblyContains(needle)
}
