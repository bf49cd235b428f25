package httpapi

import (
	"context"

	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/trust"
)

// trustViews builds one trust.SessionView per terminal session, fetching
// its turns and attestation (a missing attestation is not an error; it
// simply leaves the session untrusted).
func (s *Server) trustViews(ctx context.Context, sessions []*domain.Session) ([]trust.SessionView, error) {
	views := make([]trust.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		turns, err := s.store.ListTurns(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		var att *domain.Attestation
		if a, err := s.store.GetAttestation(ctx, sess.ID); err == nil {
			att = a
		}
		views = append(views, trust.SessionView{Session: sess, Turns: turns, Attestation: att})
	}
	return views, nil
}

func (s *Server) trustAggregate(views []trust.SessionView) []trust.Counters {
	return trust.Aggregate(views)
}
