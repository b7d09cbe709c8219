package domain

import "slices"

type OpKind string

const (
	OpInsert OpKind = "insert"
	OpRemove OpKind = "remove"
	OpMove   OpKind = "move"
	OpUpdate OpKind = "update"
)

// Op est une instruction de rendu. Les index se rapportent à la liste telle
// que laissée par les opérations précédentes.
//   - Insert/Update : Index + Item
//   - Remove        : Index
//   - Move          : From -> To (après le déplacement, l'item est à To)
type Op struct {
	Kind  OpKind
	Index int
	From  int
	To    int
	Item  Post
}

func InsertOp(index int, item Post) Op { return Op{Kind: OpInsert, Index: index, Item: item} }
func RemoveOp(index int) Op            { return Op{Kind: OpRemove, Index: index} }
func MoveOp(from, to int) Op           { return Op{Kind: OpMove, From: from, To: to} }
func UpdateOp(index int, item Post) Op { return Op{Kind: OpUpdate, Index: index, Item: item} }

// DiffResult est calculé une fois par transition de snapshot, puis consommé.
type DiffResult struct {
	Ops []Op
}

func (r DiffResult) Empty() bool {
	return len(r.Ops) == 0
}

// Count retourne le nombre d'opérations d'un type donné.
func (r DiffResult) Count(kind OpKind) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Apply rejoue les opérations sur une copie de old (jamais nil).
func (r DiffResult) Apply(old []Post) []Post {
	cur := append(make([]Post, 0, len(old)), old...)
	for _, op := range r.Ops {
		switch op.Kind {
		case OpRemove:
			cur = slices.Delete(cur, op.Index, op.Index+1)
		case OpInsert:
			cur = slices.Insert(cur, op.Index, op.Item)
		case OpMove:
			item := cur[op.From]
			cur = slices.Delete(cur, op.From, op.From+1)
			cur = slices.Insert(cur, op.To, item)
		case OpUpdate:
			cur[op.Index] = op.Item
		}
	}
	return cur
}
