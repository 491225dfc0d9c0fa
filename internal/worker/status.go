package worker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/providers/genesys"
	"github.com/shabibmr/waba-xypr-sub001/internal/util"
	"github.com/shabibmr/waba-xypr-sub001/internal/validator"
)

// receiptStatuses maps forwarded WhatsApp statuses onto receipt statuses.
var receiptStatuses = map[string]string{
	"delivered": models.OpenReceiptDelivered,
	"read":      models.OpenReceiptRead,
}

// StatusRoute mirrors WhatsApp delivery receipts on the contact-center side.
// Only delivered and read are forwarded.
type StatusRoute struct {
	Credentials    CredentialStore
	Provider       genesys.Provider
	DefaultTimeout time.Duration
}

// Parse implements Route. Statuses that are not forwarded yield ErrSkip.
func (r *StatusRoute) Parse(raw []byte) (Job[models.StatusMessage], error) {
	res := validator.Status(raw)
	if !res.Valid {
		return Job[models.StatusMessage]{}, invalid(res.Reason)
	}
	msg := res.Data
	msg.Status = strings.ToLower(strings.TrimSpace(msg.Status))
	if _, ok := receiptStatuses[msg.Status]; !ok {
		return Job[models.StatusMessage]{}, fmt.Errorf("%w: status %q", ErrSkip, msg.Status)
	}
	return Job[models.StatusMessage]{
		TenantID:      msg.TenantID,
		DedupID:       msg.OriginalMessageID + ":" + msg.Status,
		CorrelationID: msg.CorrelationID,
		Message:       msg,
	}, nil
}

// Prepare implements Route.
func (r *StatusRoute) Prepare(ctx context.Context, job Job[models.StatusMessage]) (genesys.Target, error) {
	creds, err := r.Credentials.GenesysCredentials(ctx, job.TenantID)
	if err != nil {
		return genesys.Target{}, err
	}
	return genesys.Target{
		Region:        creds.Region,
		IntegrationID: creds.IntegrationID,
		Timeout:       timeoutOr(creds.Timeout(), r.DefaultTimeout),
	}, nil
}

// Deliver implements Route.
func (r *StatusRoute) Deliver(ctx context.Context, job Job[models.StatusMessage], target genesys.Target, token string) ([]string, error) {
	target.AccessToken = token
	if err := r.Provider.SendReceipt(ctx, target, Receipt(job.Message)); err != nil {
		return nil, err
	}
	return nil, nil
}

// Correlate implements Route. Receipts produce no correlation events.
func (r *StatusRoute) Correlate(context.Context, Job[models.StatusMessage], genesys.Target, []string) []models.CorrelationEvent {
	return nil
}

// Receipt builds the Open Messaging receipt for a forwarded status.
func Receipt(msg *models.StatusMessage) models.OpenReceipt {
	channel := models.OpenChannel{
		Platform:  "Open",
		Type:      "Private",
		MessageID: msg.OriginalMessageID,
	}
	if msg.WaID != "" {
		channel.To = &models.OpenParty{ID: msg.WaID}
	}
	if secs, err := util.ParseEpochSeconds(msg.Timestamp); err == nil {
		whole, frac := math.Modf(secs)
		channel.Time = time.Unix(int64(whole), int64(frac*1e9)).UTC().Format(time.RFC3339)
	}
	return models.OpenReceipt{
		ID:        msg.OriginalMessageID,
		Channel:   channel,
		Status:    receiptStatuses[msg.Status],
		Direction: models.OpenDirectionOutbound,
	}
}
