package repository

import (
	"math/rand/v2"
	"sync"

	"github.com/okian/courtside/internal/domain/model"
)

// Ladder is a treap-ordered Elo ranking.
//
// Ordering: elo DESC, then userID ASC (deterministic). "less" means ranks
// earlier, so an in-order traversal yields the ladder from best to worst.
// Ranks use competition style: equal ratings share a rank and the next
// distinct rating skips ahead (1, 1, 3).
type Ladder struct {
	mu   sync.RWMutex
	root *node
	elo  map[string]int
}

type node struct {
	id    string
	elo   int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aElo int, aID string, bElo int, bID string) bool {
	if aElo != bElo {
		return aElo > bElo
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, elo int) *node {
	if n == nil {
		return &node{id: id, elo: elo, prio: rand.Uint64(), size: 1}
	}
	if less(elo, id, n.elo, n.id) {
		n.left = insert(n.left, id, elo)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, elo)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, elo int) *node {
	if n == nil {
		return nil
	}
	switch {
	case elo == n.elo && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, elo)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, elo)
		}
	case less(elo, id, n.elo, n.id):
		n.left = deleteNode(n.left, id, elo)
	default:
		n.right = deleteNode(n.right, id, elo)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes have a strictly higher elo.
func countAbove(n *node, elo int) int {
	count := 0
	for n != nil {
		if n.elo > elo {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

func collectTop(n *node, limit int, out *[]model.LeaderboardEntry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTop(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, model.LeaderboardEntry{UserID: n.id, Elo: n.elo})
	}
	if len(*out) < limit {
		collectTop(n.right, limit, out)
	}
}

// NewLadder returns an empty ladder.
func NewLadder() *Ladder {
	return &Ladder{elo: make(map[string]int)}
}

// Set places userID at elo, moving it if already present.
func (l *Ladder) Set(userID string, elo int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if old, ok := l.elo[userID]; ok {
		if old == elo {
			return
		}
		l.root = deleteNode(l.root, userID, old)
	}
	l.elo[userID] = elo
	l.root = insert(l.root, userID, elo)
}

// Rank returns the competition rank of userID.
func (l *Ladder) Rank(userID string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	elo, ok := l.elo[userID]
	if !ok {
		return 0, false
	}
	return countAbove(l.root, elo) + 1, true
}

// Top returns up to n entries, best first, with ranks assigned.
func (l *Ladder) Top(n int) []model.LeaderboardEntry {
	if n < 1 {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.LeaderboardEntry, 0, min(n, len(l.elo)))
	collectTop(l.root, n, &out)
	AssignRanks(out)
	return out
}

// Len returns the number of ranked users.
func (l *Ladder) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.elo)
}

// AssignRanks assigns competition ranks to entries already in ladder order.
func AssignRanks(entries []model.LeaderboardEntry) {
	for i := range entries {
		if i > 0 && entries[i].Elo == entries[i-1].Elo {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
