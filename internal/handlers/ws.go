package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/Brownie44l1/node-detect-api/internal/model"
	"github.com/Brownie44l1/node-detect-api/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	// CORS is handled by the HTTP middleware; the desktop shell connects from
	// its own origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsRequest struct {
	ID string `json:"id,omitempty"`
	pipeline.Request
}

type wsResponse struct {
	ID    string                `json:"id"`
	Nodes []model.PredictedNode `json:"nodes,omitempty"`
	Error string                `json:"error,omitempty"`
}

// WebSocket accepts a stream of prediction requests on one connection and
// answers each as soon as it completes, tagged with the request's id (or a
// generated job id when none was given). Replies may arrive out of order.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.maxBody)

	var (
		writeMu sync.Mutex
		pending sync.WaitGroup
	)
	send := func(resp wsResponse) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			log.WithError(err).Debug("WebSocket write failed")
		}
	}

	// stop waiting on outstanding jobs once the peer is gone
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("WebSocket read failed")
			}
			cancel()
			break
		}

		fut, err := h.pool.Submit(ctx, req.Request)
		if err != nil {
			send(wsResponse{ID: req.ID, Error: err.Error()})
			continue
		}
		id := req.ID
		if id == "" {
			id = fut.ID
		}

		pending.Add(1)
		go func() {
			defer pending.Done()
			nodes, err := fut.Wait(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				send(wsResponse{ID: id, Error: err.Error()})
				return
			}
			if nodes == nil {
				nodes = []model.PredictedNode{}
			}
			send(wsResponse{ID: id, Nodes: nodes})
		}()
	}

	pending.Wait()
}
