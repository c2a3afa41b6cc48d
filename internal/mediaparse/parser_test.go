package mediaparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestParse_MovieWithYear(t *testing.T) {
	p := Parse("/src/The.Matrix.1999.1080p.BluRay.mkv")
	assert.Equal(t, "The Matrix", p.Title)
	require.NotNil(t, p.Year)
	assert.Equal(t, 1999, *p.Year)
	assert.Equal(t, KindMovie, p.Kind)
}

func TestParse_TVEpisodeWithParentFallback(t *testing.T) {
	p := Parse("/src/Les.Simpson.S17/Les.Simpson-Le.fils.a.maman.mkv")
	assert.Equal(t, KindTV, p.Kind)
	require.NotNil(t, p.Season)
	assert.Equal(t, 17, *p.Season)
}

func TestParse_SpecialSeasonContext(t *testing.T) {
	p := Parse("/src/Akame ga Kill! S01 - NCOP 01 [abc].mkv")
	assert.Equal(t, KindTV, p.Kind)
	require.NotNil(t, p.Season)
	assert.Equal(t, 0, *p.Season)
	require.NotNil(t, p.Episode)
	assert.Equal(t, 1, *p.Episode)
}

func TestParse_NumericTitleIsNotMisreadAsYear(t *testing.T) {
	p := Parse("/src/1923.S01E01.mkv")
	assert.Nil(t, p.Year, "the leading 1923 token is a title, not a year")
	require.NotNil(t, p.Season)
	assert.Equal(t, 1, *p.Season)
	require.NotNil(t, p.Episode)
	assert.Equal(t, 1, *p.Episode)
}

func TestParse_AnimeEpisodeWithoutSeasonInheritsParentDefault(t *testing.T) {
	p := Parse("/src/Kyoukai no Kanata/E05 - Chartreuse Light.mkv")
	assert.Equal(t, KindTV, p.Kind)
	require.NotNil(t, p.Season)
	assert.Equal(t, 1, *p.Season)
	require.NotNil(t, p.Episode)
	assert.Equal(t, 5, *p.Episode)
}

func TestShouldIgnore_CreditlessWithoutRealEpisodeIsIgnored(t *testing.T) {
	assert.True(t, ShouldIgnore("/src/Show/Show - NCOP [creditless].mkv"))
}

func TestShouldIgnore_CreditlessWithRealEpisodeTagIsKept(t *testing.T) {
	assert.False(t, ShouldIgnore("/src/Show/Show.S01E05.NCOP.mkv"))
}

func TestShouldIgnore_BareOpEdTagIsIgnored(t *testing.T) {
	assert.True(t, ShouldIgnore("/src/Show/OP1.mkv"))
}

func TestParse_IsDeterministic(t *testing.T) {
	path := "/src/The.Matrix.1999.1080p.BluRay.mkv"
	first := Parse(path)
	second := Parse(path)
	assert.Equal(t, first, second)
}

func TestCleanTitle_StripsReleaseNoiseAndCollapsesWhitespace(t *testing.T) {
	got := cleanTitle("Mon.Serie  Complete  VOSTFR")
	assert.Equal(t, "Mon Serie", got)
}

func TestCleanTitle_KeepsYearInParens(t *testing.T) {
	got := cleanTitle("Le Film (2004) [FRENCH]")
	assert.Equal(t, "Le Film (2004)", got)
}
