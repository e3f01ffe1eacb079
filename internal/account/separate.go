package account

import "strings"

// RenderMode selects how Separate renders each record.
type RenderMode int

const (
	// RenderCanonical emits the original one-line form.
	RenderCanonical RenderMode = iota
	// RenderClean emits the human-readable block form.
	RenderClean
)

// Separate groups records by level bucket and renders each non-empty bucket
// into one blob: per-record renderings in input order, each followed by a
// blank line. Buckets with no records are omitted. The function is pure;
// identical input always yields byte-identical output.
func Separate(records []*Record, mode RenderMode) map[BucketKey]string {
	builders := make(map[BucketKey]*strings.Builder)
	for _, r := range records {
		key := Classify(r)
		b, ok := builders[key]
		if !ok {
			b = &strings.Builder{}
			builders[key] = b
		}
		if mode == RenderClean {
			b.WriteString(r.FormatBlock())
		} else {
			b.WriteString(r.EncodeLine())
		}
		b.WriteString("\n\n")
	}

	out := make(map[BucketKey]string, len(builders))
	for key, b := range builders {
		out[key] = b.String()
	}
	return out
}
