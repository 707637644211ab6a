package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cogniseal/cogniseal-ledger/internal/model"
	ws "github.com/cogniseal/cogniseal-ledger/internal/websocket"
)

// streamMessage is any server event on the log stream.
type streamMessage struct {
	Event   ws.Event        `json:"event"`
	Name    string          `json:"name"`
	Log     model.Log       `json:"log"`
	Decoded json.RawMessage `json:"decoded"`
	Error   string          `json:"error"`
}

// streamURL turns the node's HTTP base URL into the log stream URL.
func streamURL(node string, event string, examID uint64, examinee string) (string, error) {
	u, err := url.Parse(node)
	if err != nil {
		return "", fmt.Errorf("parse node url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/v1/logs"

	q := url.Values{}
	if event != "" {
		q.Set("event", event)
	}
	if examID != 0 {
		q.Set("exam_id", strconv.FormatUint(examID, 10))
	}
	if examinee != "" {
		q.Set("account", examinee)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := newFlags("watch")
	event := fs.String("event", "", "Event name (ExamCreated, AnswersSubmitted, CertificateMinted)")
	examID := fs.Uint64("exam", 0, "Only events of this exam")
	examinee := fs.String("examinee", "", "Only events of this account")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target, err := streamURL(a.profile.Node, *event, *examID, *examinee)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("log stream refused (%s): %w", resp.Status, err)
		}
		return fail("Watch", err)
	}
	defer conn.Close()
	a.log.Debug().Str("url", target).Msg("Log stream connected")

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	fmt.Println("Watching ledger events. Press Ctrl+C to stop.")
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("log stream: %w", err)
		}
		switch msg.Event {
		case ws.EventLog:
			fmt.Printf("#%d %s %s %s\n", msg.Log.BlockNumber, formatTime(msg.Log.Timestamp), msg.Name, compactJSON(msg.Decoded))
		case ws.EventError:
			return errors.New(msg.Error)
		}
	}
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, _ := json.Marshal(v)
	return string(out)
}
