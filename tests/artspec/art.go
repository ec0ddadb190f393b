// Package artspec is an MCTF test compilation unit exercising the
// Adaptive Radix Tree against the scenarios in scenario #3 and the
// insert/search/delete invariants from the testable-properties section:
// a seven-entry multi-type insert, an interleaved insert/delete mirror
// check, and a large shared-prefix round-trip.
package artspec

import (
	"fmt"
	"sort"

	"github.com/Userfrom1995/pgagroal/internal/art"
	"github.com/Userfrom1995/pgagroal/internal/mctf"
	"github.com/Userfrom1995/pgagroal/internal/value"
)

func init() {
	mctf.Test("art_insert_seven_typed_entries", insertSevenTypedEntries)
	mctf.Test("art_interleaved_insert_delete_mirrors_map", interleavedInsertDeleteMirrorsMap)
	mctf.Test("art_iteration_is_lexicographic_no_duplicates", iterationIsLexicographicNoDuplicates)
	mctf.Test("art_large_shared_prefix_round_trip", largeSharedPrefixRoundTrip)
}

type testObj struct {
	idx int
	str string
}

func insertSevenTypedEntries() error {
	t := art.New()
	destroyed := 0

	if err := t.Insert([]byte("key_str"), "value1", value.String); err != nil {
		return fmt.Errorf("insert key_str: %w", err)
	}
	if err := t.Insert([]byte("key_int"), int32(1), value.Int32); err != nil {
		return fmt.Errorf("insert key_int: %w", err)
	}
	if err := t.Insert([]byte("key_bool"), true, value.Bool); err != nil {
		return fmt.Errorf("insert key_bool: %w", err)
	}
	if err := t.Insert([]byte("key_float"), float32(2.5), value.Float); err != nil {
		return fmt.Errorf("insert key_float: %w", err)
	}
	if err := t.Insert([]byte("key_double"), 2.5, value.Double); err != nil {
		return fmt.Errorf("insert key_double: %w", err)
	}
	if err := t.Insert([]byte("key_mem"), make([]byte, 10), value.Mem); err != nil {
		return fmt.Errorf("insert key_mem: %w", err)
	}
	cfg := &value.Config{Destroy: func(any) { destroyed++ }}
	if err := t.InsertWithConfig([]byte("key_obj"), &testObj{idx: 0, str: "obj0"}, cfg); err != nil {
		return fmt.Errorf("insert key_obj: %w", err)
	}

	if t.Size() != 7 {
		return fmt.Errorf("size = %d, want 7", t.Size())
	}

	keys := []string{"key_str", "key_int", "key_bool", "key_float", "key_double", "key_mem", "key_obj"}
	for i, k := range keys {
		if err := t.Delete([]byte(k)); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
		if want := 7 - i - 1; t.Size() != want {
			return fmt.Errorf("size after deleting %s = %d, want %d", k, t.Size(), want)
		}
	}
	if destroyed != 1 {
		return fmt.Errorf("destroyer fired %d times, want exactly 1 (key_obj only)", destroyed)
	}
	return nil
}

func interleavedInsertDeleteMirrorsMap() error {
	t := art.New()
	mirror := make(map[string]bool)

	ops := []struct {
		key    string
		insert bool
	}{
		{"alpha", true}, {"alphabet", true}, {"alp", true}, {"beta", true},
		{"alpha", false}, {"gamma", true}, {"alp", false}, {"beta", false},
		{"delta", true}, {"alphabet", false}, {"epsilon", true},
	}
	for _, op := range ops {
		if op.insert {
			if err := t.Insert([]byte(op.key), op.key, value.String); err != nil {
				return fmt.Errorf("insert %s: %w", op.key, err)
			}
			mirror[op.key] = true
		} else {
			if err := t.Delete([]byte(op.key)); err != nil {
				return fmt.Errorf("delete %s: %w", op.key, err)
			}
			delete(mirror, op.key)
		}
		if t.Size() != len(mirror) {
			return fmt.Errorf("after %+v: size = %d, want %d", op, t.Size(), len(mirror))
		}
		for k := range mirror {
			if !t.ContainsKey([]byte(k)) {
				return fmt.Errorf("after %+v: ContainsKey(%s) = false, want true", op, k)
			}
		}
	}
	return nil
}

func iterationIsLexicographicNoDuplicates() error {
	t := art.New()
	keys := []string{"banana", "apple", "cherry", "apricot", "blueberry", "avocado"}
	for _, k := range keys {
		if err := t.Insert([]byte(k), k, value.String); err != nil {
			return fmt.Errorf("insert %s: %w", k, err)
		}
	}

	var visited []string
	seen := make(map[string]bool)
	it := t.Iterator()
	for it.HasNext() {
		k, _, ok := it.Next()
		if !ok {
			return fmt.Errorf("HasNext true but Next reported !ok")
		}
		ks := string(k)
		if seen[ks] {
			return fmt.Errorf("duplicate key visited: %s", ks)
		}
		seen[ks] = true
		visited = append(visited, ks)
	}
	it.Destroy()

	want := append([]string(nil), keys...)
	sort.Strings(want)
	for i := range want {
		if visited[i] != want[i] {
			return fmt.Errorf("iteration order[%d] = %s, want %s (full: %v vs %v)", i, visited[i], want[i], visited, want)
		}
	}
	return nil
}

func largeSharedPrefixRoundTrip() error {
	t := art.New()
	prefix := make([]byte, 300)
	for i := range prefix {
		prefix[i] = 'a'
	}

	var keys [][]byte
	for i := 0; i < 64; i++ {
		k := append(append([]byte(nil), prefix...), byte('A'+i%26), byte(i))
		keys = append(keys, k)
		if err := t.Insert(k, i, value.Int32); err != nil {
			return fmt.Errorf("insert key %d: %w", i, err)
		}
	}
	if t.Size() != len(keys) {
		return fmt.Errorf("size = %d, want %d", t.Size(), len(keys))
	}
	for i, k := range keys {
		v, ok := t.Search(k)
		if !ok {
			return fmt.Errorf("key %d missing after round-trip", i)
		}
		if int(v.Int64()) != i {
			return fmt.Errorf("key %d round-tripped as %d", i, v.Int64())
		}
	}
	return nil
}
