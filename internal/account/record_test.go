package account

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleLine = "a@x.com:pw1 | uid = 111 (2001) | name = Foo | max_rank = Mythic | level = 45 | country = US | is_banned = False"

func TestParseLine(t *testing.T) {
	rec, err := ParseLine(sampleLine)
	require.NoError(t, err)

	require.Equal(t, "a@x.com", rec.Email)
	require.Equal(t, "pw1", rec.Password)
	require.Equal(t, "111", rec.UID)
	require.Equal(t, "2001", rec.ServerID)
	require.Equal(t, "Foo", rec.Name)
	require.Equal(t, "Mythic", rec.Rank)
	require.Equal(t, 45, rec.Level)
	require.Equal(t, "US", rec.Country)
	require.False(t, rec.Banned)
	require.Equal(t, DefaultCredits, rec.Credits)
}

func TestParseLine_ExplicitCredits(t *testing.T) {
	rec, err := ParseLine(sampleLine + " | credits = someone else")
	require.NoError(t, err)
	require.Equal(t, "someone else", rec.Credits)
}

func TestParseLine_Banned(t *testing.T) {
	rec, err := ParseLine("b@x.com:pw2 | uid = 222 (2002) | name = Bar | max_rank = Epic | level = 15 | country = PH | is_banned = True")
	require.NoError(t, err)
	require.True(t, rec.Banned)

	// only the literal true counts, case-insensitively
	rec, err = ParseLine("b@x.com:pw2 | uid = 222 (2002) | name = Bar | max_rank = Epic | level = 15 | country = PH | is_banned = nope")
	require.NoError(t, err)
	require.False(t, rec.Banned)
}

func TestParseLine_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"garbage", "not an account line at all"},
		{"missing credential separator", "a@x.com pw1 | uid = 111 (2001) | name = Foo | max_rank = Mythic | level = 45 | country = US | is_banned = False"},
		{"missing server id", "a@x.com:pw1 | uid = 111 | name = Foo | max_rank = Mythic | level = 45 | country = US | is_banned = False"},
		{"non-integer level", "a@x.com:pw1 | uid = 111 (2001) | name = Foo | max_rank = Mythic | level = high | country = US | is_banned = False"},
		{"negative level", "a@x.com:pw1 | uid = 111 (2001) | name = Foo | max_rank = Mythic | level = -3 | country = US | is_banned = False"},
		{"missing field", "a@x.com:pw1 | uid = 111 (2001) | name = Foo | max_rank = Mythic | level = 45 | country = US"},
		{"wrong field key", "a@x.com:pw1 | uid = 111 (2001) | nick = Foo | max_rank = Mythic | level = 45 | country = US | is_banned = False"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseLine(tt.line)
			require.ErrorIs(t, err, ErrMalformedLine)
			require.Nil(t, rec)
		})
	}
}

func TestEncodeLine_RoundTrip(t *testing.T) {
	records := []*Record{
		{Email: "a@x.com", Password: "pw1", UID: "111", ServerID: "2001", Name: "Foo", Rank: "Mythic", Level: 45, Country: "US", Banned: false, Credits: DefaultCredits},
		{Email: "b@x.com", Password: "pw2", UID: "222", ServerID: "2002", Name: "Bar", Rank: "Epic", Level: 0, Country: "PH", Banned: true, Credits: "custom credits"},
		{Email: "c@x.com", Password: "p", UID: "3", ServerID: "9", Name: "Zed", Rank: "Legend", Level: 100, Country: "ID", Banned: false, Credits: DefaultCredits},
	}

	for _, want := range records {
		got, err := ParseLine(want.EncodeLine())
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestFormatBlock(t *testing.T) {
	rec, err := ParseLine(sampleLine)
	require.NoError(t, err)

	want := "📧 Email: a@x.com\n" +
		"🔑 Password: pw1\n" +
		"👤 Username: Foo\n" +
		"🆔 ID: 111 (2001)\n" +
		"🎮 Level: 45\n" +
		"🏆 Max Rank: Mythic\n" +
		"🚫 Status: Not Banned\n" +
		"🌍 Country: US\n" +
		"📝 Credits: " + DefaultCredits
	require.Equal(t, want, rec.FormatBlock())

	// deterministic: the label store removes blocks by exact comparison
	require.Equal(t, rec.FormatBlock(), rec.FormatBlock())

	rec.Banned = true
	require.Contains(t, rec.FormatBlock(), "🚫 Status: Banned")
}
