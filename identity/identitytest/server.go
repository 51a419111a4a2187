// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

// Package identitytest provides an in-process DID resolver endpoint for tests.
package identitytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/julienschmidt/httprouter"

	"github.com/aumos-ai/did-delegator/identity"
)

// Server serves GET /identifiers/:did from an in-memory document set.
type Server struct {
	*httptest.Server

	mu   sync.Mutex
	docs map[string]*identity.DIDDocument
	hits map[string]int
	// Status, when non-zero, is returned for every request instead of a document.
	status int
}

// NewServer starts a Server. Close it when done.
func NewServer() *Server {
	s := &Server{
		docs: make(map[string]*identity.DIDDocument),
		hits: make(map[string]int),
	}
	router := httprouter.New()
	router.GET("/identifiers/:did", s.handleResolve)
	s.Server = httptest.NewServer(router)
	return s
}

func (s *Server) handleResolve(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	did := ps.ByName("did")

	s.mu.Lock()
	s.hits[did]++
	doc, ok := s.docs[did]
	status := s.status
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case status != 0:
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"unavailable"}`))
	case !ok:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	default:
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"didDocument": doc})
	}
}

// Put publishes doc under doc.ID.
func (s *Server) Put(doc *identity.DIDDocument) {
	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.mu.Unlock()
}

// Delete removes the document for did.
func (s *Server) Delete(did string) {
	s.mu.Lock()
	delete(s.docs, did)
	s.mu.Unlock()
}

// FailWith makes every request answer with status. Zero restores normal service.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Hits returns how many times did was requested.
func (s *Server) Hits(did string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[did]
}
