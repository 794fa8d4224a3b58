package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vaidashi/storefront-api/pkg/circuitbreaker"
)

// listFailedMessagesHandler returns outbox messages parked after max retries
func (s *Server) listFailedMessagesHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	messages, err := s.deps.DeadLetters.List(r.Context(), page, limit)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, messages)
}

// retryFailedMessageHandler puts a failed message back in the relay queue
func (s *Server) retryFailedMessageHandler(w http.ResponseWriter, r *http.Request) {
	message, err := s.deps.DeadLetters.Retry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.logger.Info("Outbox message requeued", "messageID", message.ID, "actor", s.caller(r).UserID)
	s.respondWithData(w, http.StatusOK, message)
}

// circuitBreakersHandler reports the state of every outbound breaker
func (s *Server) circuitBreakersHandler(w http.ResponseWriter, r *http.Request) {
	snapshots := make([]circuitbreaker.Snapshot, 0, len(s.deps.Breakers))
	for _, cb := range s.deps.Breakers {
		snapshots = append(snapshots, cb.Snapshot())
	}

	s.respondWithData(w, http.StatusOK, snapshots)
}
