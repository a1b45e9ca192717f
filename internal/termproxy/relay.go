package termproxy

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

func deadlineNow() time.Time { return time.Now().Add(time.Second) }

// relay runs the two cooperative relay tasks of §4.8's proxy loop:
// client→upstream and upstream→client. The first to terminate cancels the
// other; residual close errors are swallowed. Every client→upstream frame
// is recorded to the audit stream; upstream→client frames never are.
func (p *Proxy) relay(ctx context.Context, client, upstream *websocket.Conn, projectID, userID string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		p.pumpClientToUpstream(ctx, client, upstream, projectID, userID)
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		p.pumpUpstreamToClient(ctx, upstream, client)
	}()

	<-done
	cancel()
	_ = client.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadlineNow())
	_ = upstream.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadlineNow())
}

func (p *Proxy) pumpClientToUpstream(ctx context.Context, client, upstream *websocket.Conn, projectID, userID string) {
	for {
		if ctx.Err() != nil {
			return
		}
		msgType, data, err := client.ReadMessage()
		if err != nil {
			return
		}
		if p.audit != nil {
			if logErr := p.audit.RecordInput(projectID, userID, string(data)); logErr != nil {
				p.logger.Printf("termproxy: audit write failed for project %s: %v", projectID, logErr)
			}
		}
		if err := upstream.WriteMessage(msgType, data); err != nil {
			return
		}
	}
}

func (p *Proxy) pumpUpstreamToClient(ctx context.Context, upstream, client *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		msgType, data, err := upstream.ReadMessage()
		if err != nil {
			return
		}
		if err := client.WriteMessage(msgType, data); err != nil {
			return
		}
	}
}
