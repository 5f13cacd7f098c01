package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ojalabs/oja-backend/api/responses"
	"github.com/ojalabs/oja-backend/pkg/courier"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/redis"
)

const signatureHeader = "X-Gigl-Signature"

type DeliveryWebhookService interface {
	UpdateFromWebhook(ctx context.Context, event courier.WebhookEvent) (*models.Delivery, error)
}

type courierClient interface {
	SigningSecret() string
}


// CourierWebhook ingests GIGL shipment status callbacks. Events are
// signature-checked and deduplicated by event id before they touch the
// delivery pipeline.
func CourierWebhook(svc DeliveryWebhookService, client courierClient, guard redis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(signatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "courier signature missing"))
			return
		}
		if !validateSignature(payload, client.SigningSecret(), sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid courier signature"))
			return
		}

		var event courier.WebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		eventID := strings.TrimSpace(event.EventID)
		if eventID == "" {
			eventID = fmt.Sprintf("%s:%s", event.ShipmentID, event.Status)
		}
		key := guard.IdempotencyKey("courier-webhook", eventID)

		claimed, err := guard.SetNX(ctx, key, "1", ttl)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if !claimed {
			responses.WriteSuccess(w, nil)
			return
		}

		if _, err := svc.UpdateFromWebhook(ctx, event); err != nil {
			// Release the claim so the courier's retry can land.
			delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if delErr := guard.Del(delCtx, key); delErr != nil && logg != nil {
				logg.Error(ctx, "release webhook idempotency claim", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("courier event %s processed", eventID))
		}
		responses.WriteSuccess(w, nil)
	}
}

func validateSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
