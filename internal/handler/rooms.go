package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// listRooms returns the active room types.
func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.List(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range rooms {
				if rooms[i].Active {
					encodeRoom(e, &rooms[i])
				}
			}
		})
	})
}
