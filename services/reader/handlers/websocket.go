// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianReader/services/reader/agent"
	"github.com/AleutianAI/AleutianReader/services/reader/events"
	"github.com/AleutianAI/AleutianReader/services/reader/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	// Requests carry whole documents.
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 64 << 10,
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleExploreWebSocket runs explorations over a WebSocket.
//
// Each text message is an exploration request. Its events are sent back
// as Frame objects in order; the next request is read once the run ends.
// An invalid request gets a single error frame and the connection stays
// open.
func HandleExploreWebSocket(explorer Explorer, metrics *observability.HTTPMetrics) gin.HandlerFunc {
	const ep = observability.EndpointExploreWS

	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			metrics.RecordError(ep, observability.ErrorCodeUpgradeError)
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()

		ctx := context.WithoutCancel(c.Request.Context())
		for {
			var req agent.Request
			if err := ws.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("websocket read ended", "error", err)
				}
				return
			}
			if err := requestValidate.Struct(req); err != nil {
				metrics.RecordError(ep, observability.ErrorCodeBadRequest)
				metrics.RecordRequest(ep, false)
				if sendJSON(ws, Frame{Event: events.TypeError, Data: events.ErrorData{Message: "invalid request: " + err.Error()}}) != nil {
					return
				}
				continue
			}

			metrics.StreamStarted(ep)
			broken := false
			sink := func(name events.Type, payload any) {
				if broken {
					return
				}
				if sendJSON(ws, Frame{Event: name, Data: payload}) != nil {
					broken = true
				}
			}
			res, runErr := explorer.Run(ctx, req, sink)
			metrics.StreamEnded(ep, res.Duration.Seconds(), runErr == nil)
			metrics.RecordRequest(ep, runErr == nil)
			if runErr != nil {
				metrics.RecordError(ep, observability.ErrorCodeRunFailed)
			}
			if broken {
				metrics.RecordClientDisconnect(ep)
				return
			}
		}
	}
}
