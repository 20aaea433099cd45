package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"foundation_site/internal/domain"
)

func TestQuery_KeyIsCanonical(t *testing.T) {
	a := Query{}.Where("status", "published").Where("slug", "x")
	b := Query{}.Where("slug", "x").Where("status", "published")

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, Query{}.Key(), Query{}.OrderBy("created_at", true).Key())
	assert.NotEqual(t, a.Key(), a.Page(10, 0).Key())
	assert.NotEqual(t, a.Key(), a.Page(10, 10).Key())
	assert.NotEqual(t, Query{}.Where("status", "draft").Key(), Query{}.Where("status", "published").Key())
}

func TestQuery_BuildersDoNotAlias(t *testing.T) {
	base := Query{}.Where("a", 1)
	left := base.Where("b", 2)
	right := base.Where("c", 3)

	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "b", left.Filters[1].Column)
	assert.Equal(t, "c", right.Filters[1].Column)
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, Query{Columns: []string{"id", "title"}}.Where("status", "published").Validate())

	bad := []Query{
		{Columns: []string{"id; drop table projects"}},
		Query{}.Where("Status", "x"),
		Query{}.Filter("status", "like", "x"),
		Query{}.OrderBy("1=1", false),
		{Limit: -1},
	}
	for _, q := range bad {
		assert.True(t, errors.Is(q.Validate(), domain.ErrValidation), "%+v", q)
	}
}

func TestValidateValues(t *testing.T) {
	assert.NoError(t, ValidateValues(Values{"title": "x"}))
	assert.True(t, errors.Is(ValidateValues(nil), domain.ErrValidation))
	assert.True(t, errors.Is(ValidateValues(Values{"bad key": 1}), domain.ErrValidation))
}
