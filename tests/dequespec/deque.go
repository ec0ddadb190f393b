// Package dequespec is an MCTF test compilation unit exercising the
// deque's FIFO/LIFO poll order, tag-based removal (scenario #4), and
// stable tag sort (scenario #5).
package dequespec

import (
	"fmt"

	"github.com/Userfrom1995/pgagroal/internal/deque"
	"github.com/Userfrom1995/pgagroal/internal/mctf"
	"github.com/Userfrom1995/pgagroal/internal/value"
)

func init() {
	mctf.Test("deque_fifo_poll_order", fifoPollOrder)
	mctf.Test("deque_lifo_poll_last_order", lifoPollLastOrder)
	mctf.Test("deque_tag_remove_count_and_survivor", tagRemoveCountAndSurvivor)
	mctf.Test("deque_sort_yields_nondecreasing_tags", sortYieldsNondecreasingTags)
}

func fifoPollOrder() error {
	d := deque.New(false)
	for i, s := range []string{"a", "b", "c"} {
		if err := d.Add(fmt.Sprintf("t%d", i), true, s, value.String); err != nil {
			return err
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		v, _, _, ok := d.Poll()
		if !ok {
			return fmt.Errorf("Poll reported empty before expected")
		}
		if v.String() != want {
			return fmt.Errorf("Poll = %s, want %s", v.String(), want)
		}
	}
	if _, _, _, ok := d.Poll(); ok {
		return fmt.Errorf("Poll on empty deque should report ok=false")
	}
	return nil
}

func lifoPollLastOrder() error {
	d := deque.New(false)
	for i, s := range []string{"a", "b", "c"} {
		if err := d.Add(fmt.Sprintf("t%d", i), true, s, value.String); err != nil {
			return err
		}
	}
	for i, want := range []string{"c", "b", "a"} {
		v, _, _, ok := d.PollLast()
		if !ok {
			return fmt.Errorf("PollLast reported empty before expected")
		}
		if v.String() != want {
			return fmt.Errorf("PollLast = %s, want %s", v.String(), want)
		}
		if wantSize := 3 - i - 1; d.Size() != wantSize {
			return fmt.Errorf("size after PollLast = %d, want %d", d.Size(), wantSize)
		}
	}
	return nil
}

func tagRemoveCountAndSurvivor() error {
	d := deque.New(false)
	if err := d.Add("tag1", true, "value1", value.String); err != nil {
		return err
	}
	if err := d.Add("tag2", true, true, value.Bool); err != nil {
		return err
	}
	if err := d.Add("tag2", true, int32(-1), value.Int32); err != nil {
		return err
	}

	removed := d.Remove("tag2")
	if removed != 2 {
		return fmt.Errorf("Remove(tag2) = %d, want 2", removed)
	}

	v, tag, hasTag, ok := d.Peek()
	if !ok || !hasTag || tag != "tag1" || v.String() != "value1" {
		return fmt.Errorf("Peek after Remove(tag2) = (%v,%q,%v,%v), want (value1,tag1,true,true)", v, tag, hasTag, ok)
	}
	if d.Size() != 1 {
		return fmt.Errorf("Size after Remove(tag2) = %d, want 1", d.Size())
	}
	return nil
}

func sortYieldsNondecreasingTags() error {
	d := deque.New(false)
	order := []string{"2", "1", "3", "5", "4", "0"}
	for _, tag := range order {
		if err := d.Add(tag, true, tag, value.String); err != nil {
			return err
		}
	}
	d.Sort()

	want := []string{"0", "1", "2", "3", "4", "5"}
	for _, expect := range want {
		v, tag, _, ok := d.Poll()
		if !ok {
			return fmt.Errorf("Poll reported empty before expected, want tag %s", expect)
		}
		if tag != expect || v.String() != expect {
			return fmt.Errorf("Poll after Sort = (tag=%s, value=%s), want %s", tag, v.String(), expect)
		}
	}
	return nil
}
