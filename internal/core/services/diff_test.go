package services

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

func p(id int64) domain.Post {
	return domain.Post{ID: id, Author: "Netology", Content: fmt.Sprintf("post %d", id), Published: "21.05.2022 18:36"}
}

func posts(ids ...int64) []domain.Post {
	out := make([]domain.Post, 0, len(ids))
	for _, id := range ids {
		out = append(out, p(id))
	}
	return out
}

func liked(post domain.Post) domain.Post {
	post.Likes++
	post.LikedByMe = true
	return post
}

func TestDiff_SameSnapshotIsEmpty(t *testing.T) {
	s := posts(5, 4, 3, 2, 1)

	assert.True(t, Diff(s, s).Empty())
	assert.True(t, Diff(nil, nil).Empty())
}

func TestDiff_EmptyOldIsAllInserts(t *testing.T) {
	r := Diff(nil, posts(3, 2, 1))

	assert.Equal(t, []domain.Op{
		domain.InsertOp(0, p(3)),
		domain.InsertOp(1, p(2)),
		domain.InsertOp(2, p(1)),
	}, r.Ops)
}

func TestDiff_EmptyNewIsAllRemoves(t *testing.T) {
	r := Diff(posts(3, 2, 1), nil)

	assert.Equal(t, []domain.Op{domain.RemoveOp(2), domain.RemoveOp(1), domain.RemoveOp(0)}, r.Ops)
	assert.Empty(t, r.Apply(posts(3, 2, 1)))
}

func TestDiff_ContentChangeIsUpdate(t *testing.T) {
	old := posts(3, 2, 1)
	new := []domain.Post{p(3), liked(p(2)), p(1)}

	r := Diff(old, new)

	assert.Equal(t, []domain.Op{domain.UpdateOp(1, liked(p(2)))}, r.Ops)
}

func TestDiff_NewPostOnTop(t *testing.T) {
	r := Diff(posts(2, 1), posts(3, 2, 1))

	assert.Equal(t, []domain.Op{domain.InsertOp(0, p(3))}, r.Ops)
}

func TestDiff_LikedPostMovesToTop(t *testing.T) {
	p1 := p(1)
	p1.Likes = 10
	p2 := p(2)
	p2.Likes = 20
	p3 := p(3)
	p3.Likes = 5
	p2Liked := p2
	p2Liked.Likes = 25

	old := []domain.Post{p1, p2}
	new := []domain.Post{p2Liked, p1, p3}

	r := Diff(old, new)

	require.Equal(t, []domain.Op{
		domain.MoveOp(1, 0),
		domain.InsertOp(2, p3),
		domain.UpdateOp(0, p2Liked),
	}, r.Ops)
	assert.Equal(t, 1, r.Count(domain.OpUpdate))
	assert.Equal(t, 1, r.Count(domain.OpMove))
	assert.Equal(t, 1, r.Count(domain.OpInsert))
	assert.Equal(t, new, r.Apply(old))
}

func TestDiff_ReorderUsesMovesNotRemoveInsert(t *testing.T) {
	old := posts(1, 2, 3)
	new := posts(2, 1, 3)
	new[0] = liked(new[0])

	r := Diff(old, new)

	assert.Zero(t, r.Count(domain.OpRemove))
	assert.Zero(t, r.Count(domain.OpInsert))
	assert.Equal(t, 1, r.Count(domain.OpMove))
	assert.Equal(t, 1, r.Count(domain.OpUpdate))
	assert.Equal(t, new, r.Apply(old))
}

func TestDiff_ReversalMovesAllButOne(t *testing.T) {
	old := posts(1, 2, 3, 4)
	new := posts(4, 3, 2, 1)

	r := Diff(old, new)

	assert.Equal(t, 3, r.Count(domain.OpMove))
	assert.Len(t, r.Ops, 3)
	assert.Equal(t, new, r.Apply(old))
}

func TestDiff_MixedOpsOrdering(t *testing.T) {
	// P1 supprimé, P3 remonte, P4 nouveau, P2 liké
	old := posts(1, 2, 3)
	new := []domain.Post{p(3), liked(p(2)), p(4)}

	r := Diff(old, new)

	require.Equal(t, []domain.Op{
		domain.RemoveOp(0),
		domain.MoveOp(1, 0),
		domain.InsertOp(2, p(4)),
		domain.UpdateOp(1, liked(p(2))),
	}, r.Ops)
	assert.Equal(t, new, r.Apply(old))
}

func TestDiff_UnchangedItemsProduceNoOps(t *testing.T) {
	old := posts(7, 5, 3)
	new := posts(9, 7, 6, 5, 3, 1)

	r := Diff(old, new)

	for _, op := range r.Ops {
		assert.Equal(t, domain.OpInsert, op.Kind)
		assert.NotContains(t, []int64{7, 5, 3}, op.Item.ID)
	}
	assert.Equal(t, new, r.Apply(old))
}

func TestDiff_DuplicateIDsDoNotPanic(t *testing.T) {
	cases := []struct {
		name     string
		old, new []domain.Post
	}{
		{"dup in old", posts(1, 1, 2), posts(2, 1)},
		{"dup in new", posts(1, 2), posts(1, 1, 2)},
		{"dup on both sides", posts(3, 3, 3), posts(3, 3)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var r domain.DiffResult
			require.NotPanics(t, func() { r = Diff(tc.old, tc.new) })
			assert.Equal(t, tc.new, r.Apply(tc.old))
		})
	}
}

// Propriétés vérifiées sur des snapshots générés (graine fixe).
func TestDiff_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 300; round++ {
		old := randomSnapshot(rng)
		new := mutate(rng, old)

		r := Diff(old, new)

		require.Equal(t, new, r.Apply(old), "round %d", round)

		// Conservation des deux côtés
		assert.Equal(t, len(old)-r.Count(domain.OpRemove), len(new)-r.Count(domain.OpInsert), "round %d", round)

		// Ordre des groupes : Remove, Move, Insert, Update
		assertGrouped(t, r.Ops)

		// Un item conservé n'est jamais Remove + Insert
		inserted := map[int64]bool{}
		for _, op := range r.Ops {
			if op.Kind == domain.OpInsert {
				inserted[op.Item.ID] = true
			}
		}
		for _, o := range old {
			if containsID(new, o.ID) {
				assert.False(t, inserted[o.ID], "round %d: post %d re-inserted", round, o.ID)
			}
		}

		// Moves minimaux : conservés - plus longue sous-séquence croissante
		retained, lis := retainedAndLIS(old, new)
		assert.Equal(t, retained-lis, r.Count(domain.OpMove), "round %d", round)

		// Identité : diff(S, S) est vide
		assert.True(t, Diff(new, new).Empty())
	}
}

func randomSnapshot(rng *rand.Rand) []domain.Post {
	n := rng.Intn(30)
	ids := rng.Perm(60)[:n]
	out := make([]domain.Post, 0, n)
	for _, id := range ids {
		out = append(out, p(int64(id)+1))
	}
	return out
}

// mutate supprime, ajoute, déplace et modifie quelques posts.
func mutate(rng *rand.Rand, old []domain.Post) []domain.Post {
	next := []domain.Post{}
	for _, post := range old {
		switch rng.Intn(6) {
		case 0:
			continue
		case 1:
			next = append(next, liked(post))
		default:
			next = append(next, post)
		}
	}
	for i := rng.Intn(4); i > 0 && len(next) > 1; i-- {
		a, b := rng.Intn(len(next)), rng.Intn(len(next))
		next[a], next[b] = next[b], next[a]
	}
	for i := rng.Intn(5); i > 0; i-- {
		at := rng.Intn(len(next) + 1)
		fresh := p(int64(1000 + rng.Intn(1000)))
		if containsID(next, fresh.ID) {
			continue
		}
		next = append(next[:at], append([]domain.Post{fresh}, next[at:]...)...)
	}
	return next
}

// retainedAndLIS compte les posts communs et la plus longue sous-séquence
// croissante de leurs positions dans new (DP quadratique, référence).
func retainedAndLIS(old, new []domain.Post) (int, int) {
	pos := make(map[int64]int, len(new))
	for j, x := range new {
		pos[x.ID] = j
	}
	var seq []int
	for _, o := range old {
		if j, ok := pos[o.ID]; ok {
			seq = append(seq, j)
		}
	}

	best := 0
	lis := make([]int, len(seq))
	for i := range seq {
		lis[i] = 1
		for k := 0; k < i; k++ {
			if seq[k] < seq[i] && lis[k]+1 > lis[i] {
				lis[i] = lis[k] + 1
			}
		}
		best = max(best, lis[i])
	}
	return len(seq), best
}

func containsID(ps []domain.Post, id int64) bool {
	for _, x := range ps {
		if x.ID == id {
			return true
		}
	}
	return false
}

func assertGrouped(t *testing.T, ops []domain.Op) {
	t.Helper()
	rank := map[domain.OpKind]int{domain.OpRemove: 0, domain.OpMove: 1, domain.OpInsert: 2, domain.OpUpdate: 3}
	last := -1
	prevRemove, prevInsert, prevMove := -1, -1, -1
	for _, op := range ops {
		r := rank[op.Kind]
		require.GreaterOrEqual(t, r, last, "ops out of group order: %+v", ops)
		last = r

		switch op.Kind {
		case domain.OpRemove:
			if prevRemove >= 0 {
				assert.Less(t, op.Index, prevRemove)
			}
			prevRemove = op.Index
		case domain.OpInsert:
			assert.Greater(t, op.Index, prevInsert)
			prevInsert = op.Index
		case domain.OpMove:
			assert.GreaterOrEqual(t, op.To, prevMove)
			prevMove = op.To
		}
	}
}
