package enrich

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/expo-cli/pkg/serper"
)

func TestExtractLinkedInProfile(t *testing.T) {
	t.Parallel()

	t.Run("headline with pipes", func(t *testing.T) {
		t.Parallel()
		dm, ok := extractLinkedInProfile(serper.OrganicResult{
			Title:   "Jane Smith | Director of Product | LinkedIn",
			Link:    "https://www.linkedin.com/in/janesmith",
			Snippet: "Director of Product at Acme Graphics.",
		})
		require.True(t, ok)
		assert.Equal(t, "Jane Smith", dm.Name)
		assert.Equal(t, "Director of Product", dm.Title)
		assert.Equal(t, "https://www.linkedin.com/in/janesmith", dm.LinkedInURL)
		assert.Empty(t, dm.EmailIfPublic)
		assert.Equal(t, "serper_linkedin_search", dm.Source)
	})

	t.Run("not a profile link", func(t *testing.T) {
		t.Parallel()
		_, ok := extractLinkedInProfile(serper.OrganicResult{
			Title: "Jane Smith | Director of Product",
			Link:  "https://acmegraphics.com/team",
		})
		assert.False(t, ok)
	})

	t.Run("no target role", func(t *testing.T) {
		t.Parallel()
		_, ok := extractLinkedInProfile(serper.OrganicResult{
			Title:   "John Doe | Accountant | LinkedIn",
			Link:    "https://www.linkedin.com/in/johndoe",
			Snippet: "Accountant at Acme Graphics.",
		})
		assert.False(t, ok)
	})

	t.Run("name from snippet when title empty", func(t *testing.T) {
		t.Parallel()
		dm, ok := extractLinkedInProfile(serper.OrganicResult{
			Title:   "",
			Link:    "https://www.linkedin.com/in/janesmith",
			Snippet: "Jane Smith is the R&D Director at Acme Graphics",
		})
		require.True(t, ok)
		assert.Equal(t, "Jane Smith", dm.Name)
		assert.Equal(t, "Jane Smith is the R&D Director at Acme Graphics", dm.Title)
	})

	t.Run("role in headline without pipes", func(t *testing.T) {
		t.Parallel()
		dm, ok := extractLinkedInProfile(serper.OrganicResult{
			Title: "Jane Smith - Engineering Director",
			Link:  "https://www.linkedin.com/in/janesmith",
		})
		require.True(t, ok)
		assert.Equal(t, "Jane Smith - Engineering Director", dm.Name)
		assert.Equal(t, "Engineering Director", dm.Title)
	})
}

func TestDecisionMakersPass(t *testing.T) {
	fake := &fakeClient{handler: func(query string, num int) (*serper.SearchResponse, error) {
		if strings.Contains(query, `"Director of Product"`) {
			return &serper.SearchResponse{Organic: []serper.OrganicResult{{
				Title:   "Jane Smith | Director of Product | LinkedIn",
				Link:    "https://www.linkedin.com/in/janesmith",
				Snippet: "Director of Product at Acme Graphics.",
			}}}, nil
		}
		return &serper.SearchResponse{}, nil
	}}
	e := newTestEnricher(t, fake)

	makers, source, conf, err := e.decisionMakers(context.Background(), "Acme Graphics", "acmegraphics.com")
	require.NoError(t, err)
	require.Len(t, makers, 1)
	assert.Equal(t, "Jane Smith", makers[0].Name)
	assert.Equal(t, "https://www.linkedin.com/in/janesmith", source)
	assert.InDelta(t, 0.8, conf, 1e-9, "company name in snippet")
	assert.Equal(t, `"Acme Graphics" "Director of Product" LinkedIn acmegraphics.com`, fake.queryAt(0))
}

func TestDecisionMakersDomainConfidence(t *testing.T) {
	var fake *fakeClient
	fake = &fakeClient{handler: func(query string, num int) (*serper.SearchResponse, error) {
		if fake.callCount() == 1 {
			return &serper.SearchResponse{Organic: []serper.OrganicResult{{
				Title:   "Jane Smith | Director of Product | LinkedIn",
				Link:    "https://www.linkedin.com/in/janesmith",
				Snippet: "Director of Product at Acme Graphics (acmegraphics.com).",
			}}}, nil
		}
		return &serper.SearchResponse{}, nil
	}}
	e := newTestEnricher(t, fake)

	makers, _, conf, err := e.decisionMakers(context.Background(), "Acme Graphics", "acmegraphics.com")
	require.NoError(t, err)
	require.Len(t, makers, 1)
	assert.InDelta(t, 0.9, conf, 1e-9)
}

func TestDecisionMakersDedupAndCap(t *testing.T) {
	profile := func(i int) serper.OrganicResult {
		return serper.OrganicResult{
			Title:   fmt.Sprintf("Person Number%d | Director of Product | LinkedIn", i),
			Link:    fmt.Sprintf("https://www.linkedin.com/in/person%d", i),
			Snippet: "Director of Product at Acme Graphics.",
		}
	}
	fake := &fakeClient{handler: func(query string, num int) (*serper.SearchResponse, error) {
		return &serper.SearchResponse{Organic: []serper.OrganicResult{
			profile(1), profile(1), profile(2), profile(3), profile(4),
		}}, nil
	}}
	e := newTestEnricher(t, fake)

	makers, source, _, err := e.decisionMakers(context.Background(), "Acme Graphics", "")
	require.NoError(t, err)
	require.Len(t, makers, 3, "capped with duplicates dropped")
	assert.Equal(t, "Person Number1", makers[0].Name)
	assert.Equal(t, "Person Number3", makers[2].Name)
	assert.Equal(t, "https://www.linkedin.com/in/person3", source)
	assert.Equal(t, 1, fake.callCount(), "cap reached on the first query")
}
