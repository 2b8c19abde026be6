package repository

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
)

func TestLadder_BasicOperations(t *testing.T) {
	l := NewLadder()
	if l.Len() != 0 {
		t.Fatalf("expected empty ladder, got %d", l.Len())
	}
	l.Set("alice", 1200)
	l.Set("bob", 1300)
	l.Set("carol", 1250)

	top := l.Top(10)
	want := []string{"bob", "carol", "alice"}
	for i, id := range want {
		if top[i].UserID != id || top[i].Rank != i+1 {
			t.Fatalf("position %d: got %+v, want %s rank %d", i, top[i], id, i+1)
		}
	}
	if r, ok := l.Rank("alice"); !ok || r != 3 {
		t.Fatalf("alice rank = %d, %v", r, ok)
	}
	if _, ok := l.Rank("nobody"); ok {
		t.Fatal("unknown user should not be ranked")
	}
}

func TestLadder_MoveAndTies(t *testing.T) {
	l := NewLadder()
	l.Set("a", 1200)
	l.Set("b", 1200)
	l.Set("c", 1100)
	l.Set("c", 1300)

	top := l.Top(3)
	if top[0].UserID != "c" || top[0].Rank != 1 {
		t.Fatalf("c should lead after moving: %+v", top)
	}
	if top[1].UserID != "a" || top[2].UserID != "b" || top[1].Rank != 2 || top[2].Rank != 2 {
		t.Fatalf("ties should share rank and order by id: %+v", top)
	}
	if r, _ := l.Rank("b"); r != 2 {
		t.Fatalf("b rank = %d", r)
	}
	if l.Len() != 3 {
		t.Fatalf("len = %d", l.Len())
	}
}

func TestLadder_TopLimit(t *testing.T) {
	l := NewLadder()
	for i := 0; i < 50; i++ {
		l.Set(fmt.Sprintf("u%02d", i), 1000+i)
	}
	if got := l.Top(5); len(got) != 5 || got[0].Elo != 1049 {
		t.Fatalf("unexpected top 5: %+v", got)
	}
	if got := l.Top(0); got != nil {
		t.Fatalf("non-positive limit should return nil, got %+v", got)
	}
}

func TestLadder_RankCorrectnessUnderRandomUpdates(t *testing.T) {
	l := NewLadder()
	ref := map[string]int{}
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("u%d", r.IntN(300))
		elo := 100 + r.IntN(2000)
		l.Set(id, elo)
		ref[id] = elo
	}
	ids := make([]string, 0, len(ref))
	for id := range ref {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return less(ref[ids[i]], ids[i], ref[ids[j]], ids[j]) })

	top := l.Top(len(ids))
	if len(top) != len(ids) {
		t.Fatalf("len %d want %d", len(top), len(ids))
	}
	for i, id := range ids {
		if top[i].UserID != id {
			t.Fatalf("position %d: got %s want %s", i, top[i].UserID, id)
		}
		rank, _ := l.Rank(id)
		if rank != top[i].Rank {
			t.Fatalf("%s: Rank()=%d Top rank=%d", id, rank, top[i].Rank)
		}
	}
}

func TestLadder_ConcurrentAccess(t *testing.T) {
	l := NewLadder()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				l.Set(fmt.Sprintf("w%d-%d", w, i%20), 1000+i)
				_ = l.Top(10)
			}
		}(w)
	}
	wg.Wait()
	if l.Len() != 160 {
		t.Fatalf("expected 160 users, got %d", l.Len())
	}
}

func BenchmarkLadder_Set(b *testing.B) {
	l := NewLadder()
	for i := 0; i < b.N; i++ {
		l.Set(fmt.Sprintf("u%d", i%10000), 100+i%3000)
	}
}

func BenchmarkLadder_Top(b *testing.B) {
	l := NewLadder()
	for i := 0; i < 10000; i++ {
		l.Set(fmt.Sprintf("u%d", i), 100+i%3000)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = l.Top(100)
	}
}
