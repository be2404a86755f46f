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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mohinranait/koholi/services/storefront/datatypes"
	"github.com/mohinranait/koholi/services/storefront/store"
)

var socialProofErrors = errorMessages{notFound: "Notification not found"}

// Rotation exposes the social proof rotator. *socialproof.Rotator
// satisfies it.
type Rotation interface {
	Current() (datatypes.SocialProof, bool)
	Subscribe() (<-chan datatypes.SocialProof, func())
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// ListSocialProof handles GET /api/social-proof?search&status.
func ListSocialProof(proofs store.SocialProofs) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := datatypes.SocialProofFilter{
			Search: c.Query("search"),
			Status: c.Query("status"),
		}
		list, err := proofs.List(c.Request.Context(), f)
		if err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to fetch notifications"})
			return
		}
		respondData(c, http.StatusOK, list)
	}
}

// CreateSocialProof handles POST /api/social-proof.
func CreateSocialProof(proofs store.SocialProofs) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SocialProofRequest
		if !bindRequest(c, &req) {
			return
		}
		sp := req.SocialProof()
		if err := proofs.Create(c.Request.Context(), sp); err != nil {
			respondStoreError(c, err, errorMessages{failed: "Failed to create notification"})
			return
		}
		respondData(c, http.StatusCreated, sp)
	}
}

// PatchSocialProof handles PATCH /api/social-proof/:id. Omitted fields are
// unchanged.
func PatchSocialProof(proofs store.SocialProofs) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, socialProofErrors.notFound)
		if !ok {
			return
		}
		var patch datatypes.SocialProofPatch
		if !bindRequest(c, &patch) {
			return
		}
		ctx := c.Request.Context()
		sp, err := proofs.Get(ctx, id)
		if err != nil {
			respondStoreError(c, err, with(socialProofErrors, "Failed to update notification"))
			return
		}
		patch.Apply(sp)
		if err := proofs.Update(ctx, sp); err != nil {
			respondStoreError(c, err, with(socialProofErrors, "Failed to update notification"))
			return
		}
		respondData(c, http.StatusOK, sp)
	}
}

// DeleteSocialProof handles DELETE /api/social-proof/:id.
func DeleteSocialProof(proofs store.SocialProofs) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, socialProofErrors.notFound)
		if !ok {
			return
		}
		if err := proofs.Delete(c.Request.Context(), id); err != nil {
			respondStoreError(c, err, with(socialProofErrors, "Failed to delete notification"))
			return
		}
		respondMessage(c, "Notification deleted successfully")
	}
}

// CurrentSocialProof handles GET /api/social-proof/current. Responds 204
// when no notification is active.
func CurrentSocialProof(rotation Rotation) gin.HandlerFunc {
	return func(c *gin.Context) {
		sp, ok := rotation.Current()
		if !ok {
			c.Status(http.StatusNoContent)
			return
		}
		respondData(c, http.StatusOK, sp)
	}
}

// SocialProofStream handles GET /api/social-proof/ws. The current
// notification is sent on connect, then every rotation as it happens.
// Client messages are ignored.
func SocialProofStream(rotation Rotation) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("failed to upgrade social proof websocket", "error", err)
			return
		}
		defer ws.Close()

		updates, unsubscribe := rotation.Subscribe()
		defer unsubscribe()

		closed := make(chan struct{})
		go readUntilClosed(ws, closed)

		if sp, ok := rotation.Current(); ok {
			if err := writeJSON(ws, sp); err != nil {
				return
			}
		}

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				return
			case <-c.Request.Context().Done():
				return
			case sp, ok := <-updates:
				if !ok {
					return
				}
				if err := writeJSON(ws, sp); err != nil {
					return
				}
			case <-ping.C:
				_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

// readUntilClosed drains client frames so control messages are processed
// and closes done when the connection ends.
func readUntilClosed(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(ws *websocket.Conn, v any) error {
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := ws.WriteJSON(v); err != nil {
		slog.Debug("social proof websocket write failed", "error", err)
		return err
	}
	return nil
}
