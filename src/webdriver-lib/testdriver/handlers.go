package testdriver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/model"
)

const (
	// Title is returned by the title command of every session.
	Title = "Fake Driver"
	// MissingSelector never matches an element.
	MissingSelector = "#missing"

	_w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"
)

func decodeBody(req *http.Request) (map[string]interface{}, error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	body := make(map[string]interface{})
	if len(bytes.TrimSpace(data)) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.statusCalls++
	ready := s.statusCalls >= s.readyAfter
	s.mu.Unlock()

	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s.respond(w, "", map[string]interface{}{"ready": true, "message": "fake driver ready"})
}

func (s *Server) handleNewSession(w http.ResponseWriter, req *http.Request) {
	body, err := decodeBody(req)
	if err != nil {
		s.fail(w, http.StatusBadRequest, errors.CodeInvalidArgument, err.Error())
		return
	}

	caps := model.Capabilities{}
	if desired, ok := body["desiredCapabilities"].(map[string]interface{}); ok {
		for k, v := range desired {
			caps[k] = v
		}
	}
	if w3c, ok := body["capabilities"].(map[string]interface{}); ok {
		if always, ok := w3c["alwaysMatch"].(map[string]interface{}); ok {
			for k, v := range always {
				caps[k] = v
			}
		}
	}
	caps["browserName"] = "fake"

	s.mu.Lock()
	id := fmt.Sprintf("session-%d", s.created+1)
	if s.created < len(s.ids) {
		id = s.ids[s.created]
	}
	s.created++
	s.sessions[id] = &session{caps: caps, url: "about:blank"}
	s.mu.Unlock()

	if s.legacy() {
		s.respond(w, id, caps)
		return
	}
	s.respond(w, "", map[string]interface{}{"sessionId": id, "capabilities": caps})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	list := make([]map[string]interface{}, 0)
	for _, id := range s.Sessions() {
		list = append(list, map[string]interface{}{"id": id})
	}
	s.respond(w, "", list)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "sessionID")
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.respond(w, id, nil)
}

func (s *Server) handleEcho(w http.ResponseWriter, req *http.Request) {
	var value interface{}
	if err := json.NewDecoder(req.Body).Decode(&value); err != nil {
		s.fail(w, http.StatusBadRequest, errors.CodeInvalidArgument, err.Error())
		return
	}
	s.respond(w, chi.URLParam(req, "sessionID"), value)
}

// handleHang never answers on its own; it returns once the client goes away.
func (s *Server) handleHang(_ http.ResponseWriter, req *http.Request) {
	<-req.Context().Done()
}

func (s *Server) handleTitle(w http.ResponseWriter, req *http.Request) {
	s.respond(w, chi.URLParam(req, "sessionID"), Title)
}

func (s *Server) handleNavigate(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "sessionID")
	body, err := decodeBody(req)
	if err != nil {
		s.fail(w, http.StatusBadRequest, errors.CodeInvalidArgument, err.Error())
		return
	}
	url, ok := body["url"].(string)
	if !ok {
		s.fail(w, http.StatusBadRequest, errors.CodeInvalidArgument, "missing url")
		return
	}

	s.mu.Lock()
	s.sessions[id].url = url
	s.mu.Unlock()
	s.respond(w, id, nil)
}

func (s *Server) handleCurrentURL(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "sessionID")
	s.mu.Lock()
	url := s.sessions[id].url
	s.mu.Unlock()
	s.respond(w, id, url)
}

func (s *Server) handleFindElement(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "sessionID")
	body, err := decodeBody(req)
	if err != nil {
		s.fail(w, http.StatusBadRequest, errors.CodeInvalidArgument, err.Error())
		return
	}
	if body["value"] == MissingSelector {
		s.fail(w, http.StatusNotFound, errors.CodeNoSuchElement, fmt.Sprintf("no element matches %v", body["value"]))
		return
	}

	if s.legacy() {
		s.respond(w, id, map[string]interface{}{"ELEMENT": "element-1"})
		return
	}
	s.respond(w, id, map[string]interface{}{_w3cElementKey: "element-1"})
}

func (s *Server) handleEmpty(w http.ResponseWriter, req *http.Request) {
	s.respond(w, chi.URLParam(req, "sessionID"), nil)
}
