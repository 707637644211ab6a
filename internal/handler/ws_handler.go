package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/model"
	"github.com/cogniseal/cogniseal-ledger/internal/response"
	ws "github.com/cogniseal/cogniseal-ledger/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// LogFeed delivers logs as they are mined.
type LogFeed interface {
	Subscribe(ctx context.Context) (<-chan model.Log, func() error)
}

// WSHandler streams live ledger logs over WebSocket.
type WSHandler struct {
	feed     LogFeed
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(feed LogFeed, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		feed:     feed,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// logFilter is the per-connection subscription, replaced by subscribe actions.
type logFilter struct {
	mu     sync.Mutex
	filter model.LogFilter
}

func (f *logFilter) set(req ws.SubscribeRequest) error {
	q := ledger.EventQuery{Event: req.Event, ExamID: req.ExamID}
	if req.Examinee != "" {
		addr, err := chain.ParseAddress(req.Examinee)
		if err != nil {
			return err
		}
		q.Account = &addr
	}
	filter, err := q.Filter()
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.filter = filter
	f.mu.Unlock()
	return nil
}

func (f *logFilter) matches(l model.Log) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.Matches(l)
}

// LogStream godoc
// WS /ws/v1/logs?event=&exam_id=&account=
// Streams mined logs matching the filter. Clients may send
// {"action":"subscribe",...} to change it and {"action":"ping"}.
func (h *WSHandler) LogStream(c *gin.Context) {
	q, fields := parseEventQuery(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	initial := ws.SubscribeRequest{Action: ws.ActionSubscribe, Event: q.Event, ExamID: q.ExamID}
	if q.Account != nil {
		initial.Examinee = q.Account.String()
	}
	filter := &logFilter{}
	if err := filter.set(initial); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"event": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	logs, closeFeed := h.feed.Subscribe(ctx)
	defer closeFeed()

	// gorilla allows one concurrent writer; replies from the reader go
	// through this channel to the write loop.
	replies := make(chan any, 8)
	go h.readLoop(ctx, cancel, conn, filter, replies)

	h.log.Debug().Str("remote", c.ClientIP()).Msg("Log stream connected")
	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case l, ok := <-logs:
			if !ok {
				return
			}
			if len(l.Topics) == 0 || !filter.matches(l) {
				continue
			}
			decoded, _ := ledger.DecodeLog(l)
			err = ws.WriteTyped(conn, ws.LogResponse{Event: ws.EventLog, Name: ledger.EventName(l.Topics[0]), Log: l, Decoded: decoded})
		case reply := <-replies:
			err = ws.WriteTyped(conn, reply)
		case <-ping.C:
			err = ws.WritePing(conn)
		}
		if err != nil {
			h.log.Debug().Err(err).Msg("Log stream write failed")
			return
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, filter *logFilter, replies chan<- any) {
	defer cancel()
	reply := func(v any) {
		select {
		case replies <- v:
		case <-ctx.Done():
		}
	}

	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			reply(ws.ErrorResponse{Event: ws.EventError, Error: "malformed message"})
			continue
		}

		switch env.Action {
		case ws.ActionPing:
			reply(ws.PongResponse{Event: ws.EventPong})
		case ws.ActionSubscribe:
			var req ws.SubscribeRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				reply(ws.ErrorResponse{Event: ws.EventError, Error: "malformed subscribe"})
				continue
			}
			if err := filter.set(req); err != nil {
				reply(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
				continue
			}
			reply(ws.SubscribedResponse{Event: ws.EventSubscribed, Filter: req})
		default:
			reply(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(env.Action)})
		}
	}
}
