package gateway

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"bandrebalance/internal/model"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	maxFrameDelay = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// handleStream runs a backtest and streams it over WebSocket: one "point"
// frame per simulated day (carrying the day's trade, if any), then a final
// "summary" frame. delay_ms paces the point frames.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, reqErr := s.parseBacktestRequest(q)
	var delay time.Duration
	if v := q.Get("delay_ms"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			delay = time.Duration(ms) * time.Millisecond
			if delay > maxFrameDelay {
				delay = maxFrameDelay
			}
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api_gateway] ws upgrade error: %v", err)
		return
	}
	defer conn.Close()
	if s.metrics != nil {
		s.metrics.GatewayRequests.WithLabelValues("ws_backtest").Inc()
		s.metrics.WSClients.Inc()
		defer s.metrics.WSClients.Dec()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go drainReads(conn, cancel)

	seq := 0
	send := func(m StreamMessage) bool {
		seq++
		m.Seq = seq
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(m); err != nil {
			log.Printf("[api_gateway] ws write error: %v", err)
			return false
		}
		return true
	}
	fail := func(err error) {
		send(StreamMessage{Type: MsgError, Error: err.Error()})
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "backtest failed"))
	}

	if reqErr != nil {
		fail(reqErr)
		return
	}
	rec, _, err := s.run(ctx, req)
	if err != nil {
		fail(err)
		return
	}

	sides := make(map[time.Time]model.Side, len(rec.Result.Events))
	for _, e := range rec.Result.Events {
		sides[e.Date] = e.Side
	}
	for i := range rec.Result.Points {
		p := rec.Result.Points[i]
		if delay > 0 && i > 0 {
			select {
			case <-ctx.Done():
				log.Printf("[api_gateway] ws stream %s cancelled after %d points", rec.RunID, i)
				return
			case <-time.After(delay):
			}
		}
		if !send(StreamMessage{Type: MsgPoint, RunID: rec.RunID, Date: &p.Date, Point: &p, Event: sides[p.Date]}) {
			return
		}
	}
	summary := rec.Result.Summary
	if !send(StreamMessage{Type: MsgSummary, RunID: rec.RunID, Summary: &summary}) {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

// drainReads consumes client frames so control messages are processed and
// cancels the stream when the peer goes away.
func drainReads(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
