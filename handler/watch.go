package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stevemurr/reactive-docstore/jsonv"
	"github.com/stevemurr/reactive-docstore/store"
)

// Event is one message on a watch stream.
//
// Document watches send Type "doc" with ID, Exists and Doc (null when the
// document is absent). Collection watches send Type "collection" with Items.
// Exists is always written.
type Event struct {
	Type   string      `json:"type"`
	ID     string      `json:"id,omitempty"`
	Exists bool        `json:"exists"`
	Doc    jsonv.Value `json:"doc,omitempty"`
	Items  []Item      `json:"items,omitempty"`
}

func (h *Handler) watchItem(w http.ResponseWriter, r *http.Request) {
	collection, key := r.PathValue("collection"), r.PathValue("key")
	reg := h.store.Watches()
	if _, err := reg.Attach(collection, key); err != nil {
		h.fail(w, r, err)
		return
	}
	defer reg.Detach(collection, key)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	docs, err := h.store.DocumentStream(ctx, collection, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	events := make(chan Event)
	go func() {
		defer close(events)
		for d := range docs {
			select {
			case events <- Event{Type: "doc", ID: d.ID, Exists: d.Exists, Doc: d.Value}:
			case <-ctx.Done():
				return
			}
		}
	}()
	h.serveWatch(ctx, cancel, w, r, events)
}

func (h *Handler) watchCollection(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	lists, err := h.store.CollectionStream(ctx, collection)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	events := make(chan Event)
	go func() {
		defer close(events)
		for docs := range lists {
			items := make([]Item, 0, len(docs))
			for _, d := range docs {
				items = append(items, Item{ID: d.ID, Doc: d.Value})
			}
			select {
			case events <- Event{Type: "collection", Items: items}:
			case <-ctx.Done():
				return
			}
		}
	}()
	h.serveWatch(ctx, cancel, w, r, events)
}

// serveWatch upgrades the request and forwards events until the client
// goes away, the stream ends or a write fails.
func (h *Handler) serveWatch(ctx context.Context, cancel context.CancelFunc, w http.ResponseWriter, r *http.Request, events <-chan Event) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnCtx(ctx, "websocket upgrade failed", "path", r.URL.Path, "err", err)
		return
	}
	defer ws.Close()
	h.log.DebugCtx(ctx, "watch opened", "path", r.URL.Path)

	// The read side only detects the client closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.settings.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeWatch(ws, websocket.CloseNormalClosure, "")
			return
		case e, ok := <-events:
			if !ok {
				reason := "stream ended"
				if h.store.Disposed() {
					reason = store.ErrDisposed.Error()
				}
				h.closeWatch(ws, websocket.CloseGoingAway, reason)
				return
			}
			ws.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			if err := ws.WriteJSON(e); err != nil {
				h.log.DebugCtx(ctx, "watch write failed", "path", r.URL.Path, "err", err)
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.settings.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) closeWatch(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.settings.WriteTimeout))
}
