package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"

	"github.com/piwi3910/platenest/internal/jobs"
)

const writeWait = 10 * time.Second

// streamJob sends every status change of a job as a JSON message and
// closes the connection once the job has finished.
func (s *Server) streamJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	updates, unsubscribe, err := s.runner.Subscribe(id)
	if errors.Is(err, jobs.ErrUnknownJob) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.Origins})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients only listen; reading detects their close.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, conn, st)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "job", id)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
