package domain

import "fmt"

type ActionKind string

const (
	ActionLike           ActionKind = "like"
	ActionRepost         ActionKind = "repost"
	ActionEdit           ActionKind = "edit"
	ActionRemove         ActionKind = "remove"
	ActionOpen           ActionKind = "open"
	ActionOpenFullScreen ActionKind = "open_full_screen"
	ActionPlay           ActionKind = "play"
)

var actionKinds = map[string]ActionKind{
	string(ActionLike):           ActionLike,
	string(ActionRepost):         ActionRepost,
	string(ActionEdit):           ActionEdit,
	string(ActionRemove):         ActionRemove,
	string(ActionOpen):           ActionOpen,
	string(ActionOpenFullScreen): ActionOpenFullScreen,
	string(ActionPlay):           ActionPlay,
}

// ParseActionKind convertit le nom "wire" d'une action.
func ParseActionKind(s string) (ActionKind, error) {
	k, ok := actionKinds[s]
	if !ok {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownAction)
	}
	return k, nil
}

// Action est l'union étiquetée émise par la liste : une sorte + l'identité du post.
type Action struct {
	Kind   ActionKind
	PostID int64
}

// Mutates indique si l'action modifie la source de données
// (les autres sont de la navigation, transmises telles quelles).
func (a Action) Mutates() bool {
	switch a.Kind {
	case ActionLike, ActionRepost, ActionRemove:
		return true
	}
	return false
}

// ActionRequest associe une action au lecteur qui l'a déclenchée.
type ActionRequest struct {
	ViewerID string
	Action   Action
}
