package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/AnyUserName/pixconv/internal/hasher"
)

// Validate checks r for internal consistency and that every output it
// references exists under baseDir with the recorded size and hash.
// It returns one message per problem, sorted by entry.
func Validate(r *Report, baseDir string) []string {
	var errs []string

	if r.Version != SupportedVersion {
		errs = append(errs, fmt.Sprintf("unsupported report version: %d", r.Version))
	}

	keys := make([]string, 0, len(r.Entries))
	for k := range r.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seenPaths := map[string]string{}
	for _, key := range keys {
		e := r.Entries[key]
		if e.Output == nil {
			continue
		}
		o := e.Output

		if e.Source.Width <= 0 || e.Source.Height <= 0 {
			errs = append(errs, fmt.Sprintf("entry %q: invalid source dimensions %dx%d",
				key, e.Source.Width, e.Source.Height))
		}
		if o.Format == "" {
			errs = append(errs, fmt.Sprintf("entry %q: empty output format", key))
		}
		if o.Width <= 0 || o.Height <= 0 {
			errs = append(errs, fmt.Sprintf("entry %q: invalid output dimensions %dx%d", key, o.Width, o.Height))
		}
		if o.Hash == "" {
			errs = append(errs, fmt.Sprintf("entry %q: missing hash", key))
		}
		if o.Path == "" {
			errs = append(errs, fmt.Sprintf("entry %q: missing output path", key))
			continue
		}

		if other, dup := seenPaths[o.Path]; dup {
			errs = append(errs, fmt.Sprintf("entry %q: output path %q also used by %q", key, o.Path, other))
		}
		seenPaths[o.Path] = key

		full := filepath.Join(baseDir, o.Path)
		info, err := os.Stat(full)
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry %q: file not found: %s", key, o.Path))
			continue
		}
		if info.Size() != o.Size {
			errs = append(errs, fmt.Sprintf("entry %q: size mismatch: report=%d, disk=%d", key, o.Size, info.Size()))
		}
		if o.Hash != "" {
			sum, err := hasher.SumFile(full, len(o.Hash))
			if err != nil {
				errs = append(errs, fmt.Sprintf("entry %q: %v", key, err))
			} else if sum != o.Hash {
				errs = append(errs, fmt.Sprintf("entry %q: hash mismatch: report=%s, disk=%s", key, o.Hash, sum))
			}
		}
	}

	// Stats must match what the entries say.
	want := *r
	want.ComputeStats()
	if r.Stats.TotalEntries != want.Stats.TotalEntries {
		errs = append(errs, fmt.Sprintf("stats.total_entries mismatch: %d != %d", r.Stats.TotalEntries, want.Stats.TotalEntries))
	}
	if r.Stats.Converted != want.Stats.Converted {
		errs = append(errs, fmt.Sprintf("stats.converted mismatch: %d != %d", r.Stats.Converted, want.Stats.Converted))
	}
	if r.Stats.TotalOutputBytes != want.Stats.TotalOutputBytes {
		errs = append(errs, fmt.Sprintf("stats.total_output_bytes mismatch: %d != %d", r.Stats.TotalOutputBytes, want.Stats.TotalOutputBytes))
	}

	return errs
}
