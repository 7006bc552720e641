package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Farras8/cek-pohon-app/internal/auth"
	"github.com/Farras8/cek-pohon-app/internal/events"
	"github.com/Farras8/cek-pohon-app/internal/model"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsMessage frames: server sends connection_ack, stage and pong; clients may
// send ping.
type wsMessage struct {
	Type    string            `json:"type"`
	Payload *model.StageEvent `json:"payload,omitempty"`
}

// EventsWSHandler handles /v1/events/ws. Every pipeline stage transition is
// streamed; ?upload_id= narrows the stream to one upload.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, auth.RoleViewer) {
		return
	}
	filter := r.URL.Query().Get("upload_id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(events.TopicPipeline)
	defer s.Broker.Unsubscribe(events.TopicPipeline, ch)

	var mu sync.Mutex
	write := func(v any) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v)
	}
	if err := write(wsMessage{Type: "connection_ack"}); err != nil {
		return
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != "" && evt.UploadID != filter {
					continue
				}
				if err := write(wsMessage{Type: "stage", Payload: &evt}); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			_ = write(wsMessage{Type: "pong"})
		}
	}
	close(done)
	wg.Wait()
}
