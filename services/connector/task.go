package connector

import (
	"context"
	"encoding/json"
	"fmt"

	"businesspilot/services/vault"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeVerifyCredentials = "government:credentials:verify"

type VerifyPayload struct {
	BusinessID  int64             `json:"business_id"`
	ServiceName vault.ServiceName `json:"service_name"`
}

func NewVerifyTask(businessID int64, service vault.ServiceName) (*asynq.Task, error) {
	payload, err := json.Marshal(VerifyPayload{
		BusinessID:  businessID,
		ServiceName: service,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeVerifyCredentials, payload), nil
}

// HandleVerifyCredentials retrieves the plaintext just-in-time, probes the
// portal and records the outcome. Unavailable credentials end the task
// without error: the user-facing re-entry prompt handles that path.
func (s *Service) HandleVerifyCredentials(ctx context.Context, t *asynq.Task) error {
	var p VerifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("malformed verify payload: %w", err)
	}

	plain, err := s.vault.Retrieve(ctx, p.BusinessID, p.ServiceName)
	if err != nil {
		return err
	}
	if plain == nil {
		zap.L().Warn("credentials unavailable for verification",
			zap.Int64("business_id", p.BusinessID),
			zap.String("service_name", string(p.ServiceName)))
		return nil
	}

	ok, err := s.portal.VerifyLogin(ctx, p.ServiceName, plain.Username, plain.Password)
	if err != nil {
		// Portal unreachable; asynq retries with backoff.
		return fmt.Errorf("portal probe %s: %w", p.ServiceName, err)
	}

	if _, err := s.vault.MarkVerification(ctx, p.BusinessID, p.ServiceName, ok); err != nil {
		return err
	}

	return nil
}

func RegisterTaskHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(TypeVerifyCredentials, svc.HandleVerifyCredentials)
}
