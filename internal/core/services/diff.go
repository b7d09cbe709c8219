package services

import (
	"slices"
	"sort"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

// Diff calcule les opérations qui transforment old en new.
//
// Identité = ID, égalité = tous les champs. Les items communs dont l'ordre
// relatif est conservé forment la plus longue sous-séquence stable (LIS sur
// les positions dans new, O(n log n)) ; les autres deviennent des Move.
// Un item conservé n'est jamais exprimé en Remove+Insert.
//
// Ordre des opérations : Remove (index décroissants), Move (cibles
// croissantes), Insert (index croissants), Update (index finaux).
// Seule la première occurrence d'un ID participe au matching : un doublon
// devient un Remove ou un Insert, sans panique.
func Diff(old, new []domain.Post) domain.DiffResult {
	oldIdx := firstIndex(old)
	newIdx := firstIndex(new)

	// matched[i] = position dans new de old[i], -1 si absent
	matched := make([]int, len(old))
	var ops []domain.Op

	for i := len(old) - 1; i >= 0; i-- {
		j, ok := newIdx[old[i].ID]
		if !ok || oldIdx[old[i].ID] != i {
			matched[i] = -1
			ops = append(ops, domain.RemoveOp(i))
			continue
		}
		matched[i] = j
	}

	// Séquence des positions new des items communs, dans l'ordre old
	common := make([]int, 0, len(old))
	for _, j := range matched {
		if j >= 0 {
			common = append(common, j)
		}
	}
	stable := stableSubsequence(common)

	// cur = IDs après les suppressions
	cur := make([]int64, 0, len(common))
	for _, j := range common {
		cur = append(cur, new[j].ID)
	}

	// Moves : dans l'ordre des cibles, on place chaque item juste après son prédécesseur dans new
	moved := make([]int, 0, len(common)-len(stable))
	for _, j := range common {
		if _, ok := stable[j]; !ok {
			moved = append(moved, j)
		}
	}
	sort.Ints(moved)

	retained := func(j int) bool {
		i, ok := oldIdx[new[j].ID]
		return ok && matched[i] == j
	}

	for _, j := range moved {
		pred := int64(-1)
		hasPred := false
		for k := j - 1; k >= 0; k-- {
			if retained(k) {
				pred, hasPred = new[k].ID, true
				break
			}
		}

		from := indexOf(cur, new[j].ID)
		cur = slices.Delete(cur, from, from+1)

		to := 0
		if hasPred {
			to = indexOf(cur, pred) + 1
		}
		cur = slices.Insert(cur, to, new[j].ID)
		ops = append(ops, domain.MoveOp(from, to))
	}

	for j, p := range new {
		if !retained(j) {
			ops = append(ops, domain.InsertOp(j, p))
		}
	}

	for j, p := range new {
		if retained(j) && !old[oldIdx[p.ID]].SameContent(p) {
			ops = append(ops, domain.UpdateOp(j, p))
		}
	}

	return domain.DiffResult{Ops: ops}
}

func firstIndex(posts []domain.Post) map[int64]int {
	idx := make(map[int64]int, len(posts))
	for i, p := range posts {
		if _, ok := idx[p.ID]; !ok {
			idx[p.ID] = i
		}
	}
	return idx
}

func indexOf(ids []int64, id int64) int {
	return slices.Index(ids, id)
}

// stableSubsequence retourne les valeurs d'une plus longue sous-séquence
// croissante de seq (valeurs distinctes). À longueur égale, on garde les
// éléments les plus à gauche.
func stableSubsequence(seq []int) map[int]struct{} {
	n := len(seq)
	// lenFrom[i] = longueur de la plus longue sous-séquence croissante commençant en i
	lenFrom := make([]int, n)
	// tails sur les valeurs négatées, parcours de droite à gauche
	var tails []int
	for i := n - 1; i >= 0; i-- {
		v := -seq[i]
		pos := sort.SearchInts(tails, v)
		if pos == len(tails) {
			tails = append(tails, v)
		} else {
			tails[pos] = v
		}
		lenFrom[i] = pos + 1
	}

	keep := make(map[int]struct{}, len(tails))
	remaining := len(tails)
	last := -1
	for i := 0; i < n && remaining > 0; i++ {
		if lenFrom[i] == remaining && seq[i] > last {
			keep[seq[i]] = struct{}{}
			last = seq[i]
			remaining--
		}
	}
	return keep
}
