package account

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, line string) *Record {
	t.Helper()
	rec, err := ParseLine(line)
	require.NoError(t, err)
	return rec
}

func TestSeparate_Canonical(t *testing.T) {
	foo := mustParse(t, "a@x.com:pw1 | uid = 111 (2001) | name = Foo | max_rank = Mythic | level = 45 | country = US | is_banned = False")
	bar := mustParse(t, "b@x.com:pw2 | uid = 222 (2002) | name = Bar | max_rank = Epic | level = 15 | country = PH | is_banned = True")

	out := Separate([]*Record{foo, bar}, RenderCanonical)

	require.Len(t, out, 2)
	require.Equal(t, foo.EncodeLine()+"\n\n", out["31-60"])
	require.Equal(t, bar.EncodeLine()+"\n\n", out["0-30"])
}

func TestSeparate_Clean(t *testing.T) {
	foo := mustParse(t, "a@x.com:pw1 | uid = 111 (2001) | name = Foo | max_rank = Mythic | level = 45 | country = US | is_banned = False")

	out := Separate([]*Record{foo}, RenderClean)
	require.Equal(t, foo.FormatBlock()+"\n\n", out["31-60"])
}

func TestSeparate_EmptyBucketsOmitted(t *testing.T) {
	foo := mustParse(t, "a@x.com:pw1 | uid = 111 (2001) | name = Foo | max_rank = Mythic | level = 45 | country = US | is_banned = False")

	out := Separate([]*Record{foo}, RenderCanonical)
	require.Len(t, out, 1)
	_, ok := out["0-30"]
	require.False(t, ok)
}

// Input order is preserved inside each bucket, not re-sorted.
func TestSeparate_StableOrder(t *testing.T) {
	lines := []string{
		"c@x.com:p3 | uid = 333 (3) | name = C | max_rank = Epic | level = 40 | country = US | is_banned = False",
		"a@x.com:p1 | uid = 111 (1) | name = A | max_rank = Epic | level = 35 | country = US | is_banned = False",
		"b@x.com:p2 | uid = 222 (2) | name = B | max_rank = Epic | level = 50 | country = US | is_banned = False",
	}
	var records []*Record
	for _, l := range lines {
		records = append(records, mustParse(t, l))
	}

	out := Separate(records, RenderCanonical)
	got := strings.Split(strings.TrimSuffix(out["31-60"], "\n\n"), "\n\n")
	require.Equal(t, []string{records[0].EncodeLine(), records[1].EncodeLine(), records[2].EncodeLine()}, got)
}

func TestSeparate_Deterministic(t *testing.T) {
	records := []*Record{
		mustParse(t, "a@x.com:p1 | uid = 111 (1) | name = A | max_rank = Epic | level = 5 | country = US | is_banned = False"),
		mustParse(t, "b@x.com:p2 | uid = 222 (2) | name = B | max_rank = Epic | level = 77 | country = US | is_banned = True"),
		mustParse(t, "c@x.com:p3 | uid = 333 (3) | name = C | max_rank = Epic | level = 150 | country = US | is_banned = False"),
	}

	first := Separate(records, RenderClean)
	second := Separate(records, RenderClean)
	require.Equal(t, first, second)
}

func TestSeparate_NegativeLevelGoesToUnclassified(t *testing.T) {
	rec := &Record{Email: "x@x.com", Password: "p", UID: "1", ServerID: "1", Name: "X", Rank: "Epic", Level: -5, Country: "US", Credits: DefaultCredits}

	out := Separate([]*Record{rec}, RenderCanonical)
	require.Len(t, out, 1)
	require.Contains(t, out, BucketUnclassified)
}
