package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFirstArticleRule(t *testing.T) {
	cases := map[string]FirstArticleRule{
		"":            FirstArticlePositional,
		"earliest":    FirstArticleEarliest,
		" Positional": FirstArticlePositional,
	}
	for in, want := range cases {
		got, err := ParseFirstArticleRule(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFirstArticleRule("latest")
	assert.Error(t, err)
}

func TestFirstArticleDate(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// store order: the March article was inserted first
	articles := []Article{{ID: 1, CreatedAt: mar}, {ID: 2, CreatedAt: jan}}

	assert.Nil(t, FirstArticleEarliest.FirstArticleDate(nil))
	assert.Nil(t, FirstArticlePositional.FirstArticleDate([]Article{}))

	got := FirstArticleEarliest.FirstArticleDate(articles)
	require.NotNil(t, got)
	assert.True(t, got.Equal(jan))

	got = FirstArticlePositional.FirstArticleDate(articles)
	require.NotNil(t, got)
	assert.True(t, got.Equal(mar))

	var unset FirstArticleRule
	got = unset.FirstArticleDate(articles)
	require.NotNil(t, got)
	assert.True(t, got.Equal(mar))
}

func TestExportFinished(t *testing.T) {
	assert.False(t, Export{Status: ExportStatusPending}.Finished())
	assert.False(t, Export{Status: ExportStatusRunning}.Finished())
	assert.True(t, Export{Status: ExportStatusCompleted}.Finished())
	assert.True(t, Export{Status: ExportStatusFailed}.Finished())
}
