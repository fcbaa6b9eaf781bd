package battle

import "testing"

func qe(target ID) QueuedEffect {
	return QueuedEffect{Effect: Noop{}, Ctx: EffectContext{Target: target}}
}

func targets(items []QueuedEffect) []ID {
	out := make([]ID, len(items))
	for i, item := range items {
		out[i] = item.Ctx.Target
	}
	return out
}

func equalIDs(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueuePushFrontKeepsBatchOrder(t *testing.T) {
	var q Queue
	q.PushBack(qe(1), qe(2))
	q.PushFront(qe(3), qe(4))
	q.PushBack(qe(5))

	want := []ID{3, 4, 1, 2, 5}
	if got := targets(q.Items()); !equalIDs(got, want) {
		t.Fatalf("items = %v, want %v", got, want)
	}

	var drained []ID
	for {
		item, ok := q.PopFront()
		if !ok {
			break
		}
		drained = append(drained, item.Ctx.Target)
	}
	if !equalIDs(drained, want) {
		t.Fatalf("drained = %v, want %v", drained, want)
	}
	if q.Len() != 0 {
		t.Fatalf("len = %d, want 0", q.Len())
	}
}

func TestQueueGrowsAcrossWrap(t *testing.T) {
	var q Queue
	for i := 1; i <= 10; i++ {
		q.PushBack(qe(ID(i)))
	}
	for i := 0; i < 8; i++ {
		q.PopFront()
	}
	for i := 11; i <= 40; i++ {
		q.PushBack(qe(ID(i)))
	}
	q.PushFront(qe(100))

	items := targets(q.Items())
	if len(items) != 33 {
		t.Fatalf("len = %d, want 33", len(items))
	}
	if items[0] != 100 || items[1] != 9 || items[len(items)-1] != 40 {
		t.Fatalf("items = %v", items)
	}
}

func TestQueuePopEmpty(t *testing.T) {
	var q Queue
	if _, ok := q.PopFront(); ok {
		t.Fatal("expected empty queue")
	}
	q.PushFront()
	q.PushBack()
	if q.Len() != 0 {
		t.Fatalf("len = %d, want 0", q.Len())
	}
	q.PushBack(qe(1))
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("len after clear = %d, want 0", q.Len())
	}
}
