package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpupo63/metadata-catalog/errs"
)

func TestNamedResolver_Resolve(t *testing.T) {
	d := newTestDatabase(t, Config{NamedCacheTTL: time.Minute})
	resolver := d.Named()
	db := d.DB().WithContext(context.Background())

	created, err := resolver.Resolve(db, "keyword", "keyword", []string{"vision", "nlp"})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.NotEqual(t, created[0], created[1])

	again, err := resolver.Resolve(db, "keyword", "keyword", []string{"nlp", "vision"})
	require.NoError(t, err)
	assert.Equal(t, []uint{created[1], created[0]}, again, "identifiers follow the input order")

	_, cached := resolver.ids.Get(cacheKey("keyword", "nlp"))
	assert.True(t, cached)

	names, err := resolver.Names(db, "keyword", created)
	require.NoError(t, err)
	assert.Equal(t, "vision", names[created[0]])
	assert.Equal(t, "nlp", names[created[1]])
}

func TestNamedResolver_ClosedVocabulary(t *testing.T) {
	d := newTestDatabase(t, Config{})
	resolver := d.Named()
	db := d.DB()

	ids, err := resolver.Resolve(db, "license", "license", []string{"mit"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	_, err = resolver.Resolve(db, "license", "license", []string{"mit", "made-up"})
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	all, err := resolver.All(db, "license")
	require.NoError(t, err)
	assert.NotContains(t, all, "made-up")

	_, err = resolver.All(db, "nothing")
	assert.True(t, errs.IsNotFound(err))
}
