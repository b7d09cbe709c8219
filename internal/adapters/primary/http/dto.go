package http

import (
	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
	"github.com/Shelq27/NMedia-DZ2/internal/core/ports"
	"github.com/Shelq27/NMedia-DZ2/internal/core/services"
)

type saveRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

type stateDTO struct {
	Loading    bool  `json:"loading"`
	Refreshing bool  `json:"refreshing"`
	Error      bool  `json:"error"`
	NewerCount int64 `json:"newer_count"`
}

type rowDTO struct {
	ID         int64  `json:"id"`
	Author     string `json:"author"`
	Published  string `json:"published"`
	Content    string `json:"content"`
	Likes      string `json:"likes"`
	Reposts    string `json:"reposts"`
	LikedByMe  bool   `json:"liked_by_me"`
	Video      string `json:"video,omitempty"`
	Attachment string `json:"attachment,omitempty"`
}

type opDTO struct {
	Kind  string  `json:"kind"`
	Index int     `json:"index"`
	From  int     `json:"from"`
	To    int     `json:"to"`
	Row   *rowDTO `json:"row,omitempty"` // insert / update
}

type updateDTO struct {
	Version int64    `json:"version"`
	State   stateDTO `json:"state"`
	Ops     []opDTO  `json:"ops"`
}

type feedDTO struct {
	Version int64    `json:"version"`
	State   stateDTO `json:"state"`
	Rows    []rowDTO `json:"rows"`
}

// --- HELPERS DE MAPPING ---

func mapState(s domain.FeedState) stateDTO {
	return stateDTO{
		Loading:    s.Loading,
		Refreshing: s.Refreshing,
		Error:      s.Error,
		NewerCount: s.NewerCount,
	}
}

func mapRow(r domain.Row) rowDTO {
	return rowDTO{
		ID:         r.ID,
		Author:     r.Author,
		Published:  r.Published,
		Content:    r.Content,
		Likes:      r.Likes,
		Reposts:    r.Reposts,
		LikedByMe:  r.LikedByMe,
		Video:      r.Video,
		Attachment: r.Attachment,
	}
}

// mapUpdate rend les items des Insert/Update (compteurs formatés)
func mapUpdate(u domain.Update) (updateDTO, error) {
	ops := make([]opDTO, len(u.Ops))
	for i, op := range u.Ops {
		ops[i] = opDTO{Kind: string(op.Kind), Index: op.Index, From: op.From, To: op.To}
		if op.Kind == domain.OpInsert || op.Kind == domain.OpUpdate {
			row, err := services.RenderRow(op.Item)
			if err != nil {
				return updateDTO{}, err
			}
			dto := mapRow(row)
			ops[i].Row = &dto
		}
	}
	return updateDTO{Version: u.Version, State: mapState(u.State), Ops: ops}, nil
}

func mapFeed(f *ports.CurrentFeed) feedDTO {
	rows := make([]rowDTO, len(f.Rows))
	for i, r := range f.Rows {
		rows[i] = mapRow(r)
	}
	return feedDTO{Version: f.Version, State: mapState(f.State), Rows: rows}
}
