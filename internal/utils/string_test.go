package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmailSubject(t *testing.T) {
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("Re: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("RE: FW: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("Re[2]: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("Fwd: Quarterly report"))
	assert.Equal(t, "Quarterly report", NormalizeEmailSubject("  Quarterly report  "))
	assert.Equal(t, "", NormalizeEmailSubject(""))
}

func TestStripNulls(t *testing.T) {
	assert.Equal(t, "abc", StripNulls("a\x00b\x00c"))
	assert.Equal(t, "clean", StripNulls("clean"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
}

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("email", 24)
	assert.Contains(t, id, "email_")
	assert.Len(t, id, len("email_")+24)

	other := GenerateNanoIDWithPrefix("email", 24)
	assert.NotEqual(t, id, other)
}

func TestUniqueStrings(t *testing.T) {
	assert.ElementsMatch(t, []string{"a", "b"}, UniqueStrings([]string{"a", "b", "a"}))
	assert.Empty(t, UniqueStrings(nil))
}

func TestRemoveString(t *testing.T) {
	assert.Equal(t, []string{"sent"}, RemoveString([]string{"sent", "local"}, "local"))
	assert.Equal(t, []string{"sent"}, RemoveString([]string{"sent"}, "local"))
}
