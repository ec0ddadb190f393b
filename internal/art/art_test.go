package art

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Userfrom1995/pgagroal/internal/value"
)

func TestTree_InsertSearchDelete(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Insert([]byte("key_str"), "value1", value.String))
	require.NoError(t, tr.Insert([]byte("key_int"), int32(1), value.Int32))
	require.NoError(t, tr.Insert([]byte("key_bool"), true, value.Bool))
	assert.Equal(t, 3, tr.Size())

	v, ok := tr.Search([]byte("key_str"))
	require.True(t, ok)
	assert.Equal(t, "value1", v.String())

	assert.True(t, tr.ContainsKey([]byte("key_int")))
	assert.False(t, tr.ContainsKey([]byte("missing")))

	require.NoError(t, tr.Delete([]byte("key_str")))
	assert.Equal(t, 2, tr.Size())
	assert.False(t, tr.ContainsKey([]byte("key_str")))

	// deleting an absent key is a no-op success
	require.NoError(t, tr.Delete([]byte("never-inserted")))
	assert.Equal(t, 2, tr.Size())
}

func TestTree_RejectsNoneAndNilArgs(t *testing.T) {
	tr := New()
	assert.Error(t, tr.Insert([]byte("k"), nil, value.None))
	assert.ErrorIs(t, tr.Insert(nil, "x", value.String), ErrNilKey)

	var nilTree *Tree
	assert.ErrorIs(t, nilTree.Insert([]byte("k"), "x", value.String), ErrNilTree)
}

func TestTree_ReplaceInvokesDestroyerOnce(t *testing.T) {
	tr := New()
	var destroyed int
	cfg := &value.Config{Destroy: func(any) { destroyed++ }}
	require.NoError(t, tr.InsertWithConfig([]byte("k"), "first", cfg))
	require.NoError(t, tr.InsertWithConfig([]byte("k"), "second", cfg))
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 1, tr.Size())
}

func TestTree_IterationIsLexicographic(t *testing.T) {
	tr := New()
	keys := []string{"banana", "apple", "cherry", "app", "apply", "bandana"}
	for _, k := range keys {
		require.NoError(t, tr.Insert([]byte(k), k, value.String))
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var got []string
	it := tr.Iterator()
	for it.HasNext() {
		k, _, ok := it.Next()
		require.True(t, ok)
		got = append(got, string(k))
	}
	assert.Equal(t, sorted, got)
}

func TestTree_IteratorRemoveDoesNotInvalidateCursor(t *testing.T) {
	tr := New()
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, tr.Insert([]byte(k), k, value.String))
	}
	it := tr.Iterator()
	var got []string
	for it.HasNext() {
		k, _, ok := it.Next()
		require.True(t, ok)
		got = append(got, string(k))
		if string(k) == "b" {
			require.True(t, it.Remove())
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
	assert.Equal(t, 3, tr.Size())
	assert.False(t, tr.ContainsKey([]byte("b")))
}

func TestTree_LargeKeysWithSharedPrefix(t *testing.T) {
	tr := New()
	base := make([]byte, 300)
	for i := range base {
		base[i] = 'x'
	}
	var keys [][]byte
	for i := 0; i < 50; i++ {
		k := append([]byte(nil), base...)
		k = append(k, byte('a'+i%26), byte(i))
		keys = append(keys, k)
		require.NoError(t, tr.Insert(k, fmt.Sprintf("v%d", i), value.String))
	}
	assert.Equal(t, len(keys), tr.Size())
	for i, k := range keys {
		v, ok := tr.Search(k)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("v%d", i), v.String())
	}
}

func TestTree_DictionaryRoundTrip(t *testing.T) {
	words := sampleDictionary()
	tr := New()
	mirror := make(map[string]int, len(words))
	for i, w := range words {
		require.NoError(t, tr.Insert([]byte(w), int32(i), value.Int32))
		mirror[w] = i
	}
	assert.Equal(t, len(mirror), tr.Size())
	for w, i := range mirror {
		v, ok := tr.Search([]byte(w))
		require.True(t, ok, w)
		assert.Equal(t, int64(i), v.Int64())
	}
	for w := range mirror {
		require.NoError(t, tr.Delete([]byte(w)))
	}
	assert.Equal(t, 0, tr.Size())
}

// sampleDictionary stands in for the 200-word dictionary shipped alongside
// the original test corpus: 200 distinct words with overlapping prefixes,
// enough to grow nodes from node4 to node16.
func sampleDictionary() []string {
	prefixes := []string{"a", "an", "ant", "anti", "b", "ba", "bar", "base", "c", "ca", "car", "card"}
	suffixes := []string{"", "s", "ed", "ing", "er", "est", "ly", "ful", "ness", "ment", "able", "ize", "ous", "ive", "al"}
	var words []string
	seen := map[string]bool{}
	for _, p := range prefixes {
		for _, s := range suffixes {
			w := p + s
			if !seen[w] {
				seen[w] = true
				words = append(words, w)
			}
		}
	}
	for i := 0; len(words) < 200; i++ {
		w := fmt.Sprintf("word%d", i)
		if !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	return words
}
