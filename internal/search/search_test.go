package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
)

func makeRewards(n int) []reward.Reward {
	out := make([]reward.Reward, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, reward.Reward{
			ID:          i,
			Name:        fmt.Sprintf("Reward %d", i),
			Description: "generic",
			Points:      10 * i,
			Validity:    reward.ValidityInstant,
			NeverExpire: true,
			StoreID:     1,
		})
	}
	return out
}

func TestRunThirdPageOfTwentyFive(t *testing.T) {
	res := Run(makeRewards(25), Query{Page: 3})

	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, 3, res.Page)
	require.Len(t, res.Items, 5)
	assert.Equal(t, 21, res.Items[0].ID)
	assert.Equal(t, 25, res.Items[4].ID)
	assert.Equal(t, 25, res.Matched)
	assert.Equal(t, 25, res.Total)
}

func TestRunFirstPage(t *testing.T) {
	res := Run(makeRewards(25), Query{Page: 1})
	require.Len(t, res.Items, PageSize)
	assert.Equal(t, 1, res.Items[0].ID)
	assert.Equal(t, 10, res.Items[9].ID)
}

func TestFilterMatchesNameOrDescription(t *testing.T) {
	rewards := []reward.Reward{
		{ID: 1, Name: "Free Pizza", Description: "Any large pie"},
		{ID: 2, Name: "Garlic Knots", Description: "Six knots with PIZZA sauce"},
		{ID: 3, Name: "Soda", Description: "Any fountain drink"},
	}

	got := Filter(rewards, "pIzZa")
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	assert.Equal(t, 2, got[1].ID)

	assert.Len(t, Filter(rewards, ""), 3)
	assert.Empty(t, Filter(rewards, "calzone"))
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 0, PageCount(0))
	assert.Equal(t, 1, PageCount(1))
	assert.Equal(t, 1, PageCount(10))
	assert.Equal(t, 2, PageCount(11))
	assert.Equal(t, 3, PageCount(25))
}

func TestRunClampsPageAfterShrink(t *testing.T) {
	rewards := makeRewards(25)
	rewards[0].Name = "Special"

	// Was on page 3; the term now matches a single reward.
	res := Run(rewards, Query{Term: "special", Page: 3})
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 1, res.PageCount)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.Items[0].ID)
}

func TestRunEmptyCollection(t *testing.T) {
	res := Run(nil, Query{Page: 4})
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 0, res.PageCount)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestRunPageZeroMeansFirst(t *testing.T) {
	res := Run(makeRewards(12), Query{Page: 0})
	assert.Equal(t, 1, res.Page)
	assert.Len(t, res.Items, 10)
}

func TestRunDoesNotAliasInput(t *testing.T) {
	rewards := makeRewards(3)
	res := Run(rewards, Query{Page: 1})
	res.Items[0].Name = "changed"
	assert.Equal(t, "Reward 1", rewards[0].Name)
}
