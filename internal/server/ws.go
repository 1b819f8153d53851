package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"colorsweep/internal/domain"
	logpkg "colorsweep/internal/logger"
)

// dataRequest is one frame on the /data websocket.
type dataRequest map[string]json.RawMessage

func (r dataRequest) stringValue(key string) string {
	var s string
	if raw, ok := r[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// handleData serves colorgram lookups over a websocket. One request frame
// per connection, matching the client's connect-ask-close usage.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	log := logpkg.FromContext(r.Context())
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var req dataRequest
	if err := conn.ReadJSON(&req); err != nil {
		log.Warn("websocket read failed", zap.Error(err))
		return
	}
	log.Info("processing websocket request")

	if !s.requireKeys(conn, req, "action") {
		return
	}
	switch req.stringValue("action") {
	case "get":
		if !s.requireKeys(conn, req, "experiment", "get") {
			return
		}
		s.handleDataGet(r, conn, req)
	case "list_experiments":
		names, err := s.experiments.List(r.Context())
		if err != nil {
			s.sendFrame(conn, map[string]any{
				"status": http.StatusInternalServerError, "message": "internal error",
			})
			return
		}
		s.sendFrame(conn, map[string]any{"status": http.StatusOK, "experiments": names})
	default:
		s.sendFrame(conn, map[string]any{
			"status":  http.StatusNotFound,
			"message": "no action found for " + req.stringValue("action"),
		})
	}
}

func (s *Server) handleDataGet(r *http.Request, conn *websocket.Conn, req dataRequest) {
	log := logpkg.FromContext(r.Context())
	experimentName := req.stringValue("experiment")
	word := strings.ToLower(req.stringValue("get"))

	results, err := s.experiments.Get(r.Context(), experimentName, word)
	if err != nil {
		if errors.Is(err, domain.ErrColorgramNotFound) {
			log.Info("no match for get", zap.String("query", word))
			s.sendFrame(conn, map[string]any{
				"status":     http.StatusNotFound,
				"message":    "no colorgram for search term",
				"query":      word,
				"experiment": experimentName,
			})
			return
		}
		log.Error("websocket get failed", zap.Error(err))
		s.sendFrame(conn, map[string]any{
			"status": http.StatusInternalServerError, "message": "internal error",
		})
		return
	}

	artifact, err := os.ReadFile(results[0].ArtifactPath)
	if err != nil {
		log.Error("reading synced artifact failed", zap.Error(err))
		s.sendFrame(conn, map[string]any{
			"status": http.StatusInternalServerError, "message": "internal error",
		})
		return
	}
	s.sendFrame(conn, map[string]any{
		"status": http.StatusOK,
		"found": map[string]any{
			"doc":         results[0].Doc,
			"image_bytes": artifact, // base64-encoded by the JSON encoder
		},
	})
}

// requireKeys validates the frame has every required key, answering with
// a 400-style frame when not.
func (s *Server) requireKeys(conn *websocket.Conn, req dataRequest, keys ...string) bool {
	var missing []string
	for _, key := range keys {
		if _, ok := req[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		s.sendFrame(conn, map[string]any{
			"status":  http.StatusBadRequest,
			"message": "missing required keys",
			"missing": missing,
		})
		return false
	}
	return true
}

func (s *Server) sendFrame(conn *websocket.Conn, frame map[string]any) {
	if err := conn.WriteJSON(frame); err != nil {
		s.log.Warn("websocket write failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
