package services

import (
	"context"

	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/playfield/marketplace-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// PaymentAuditService records payment audit entries on a best-effort basis.
// A failed write is logged and never changes the outcome of the payment flow.
type PaymentAuditService struct {
	repo   AuditLogger
	logger *logrus.Logger
}

// NewPaymentAuditService creates a new payment audit service. A nil repo
// disables auditing.
func NewPaymentAuditService(repo AuditLogger, logger *logrus.Logger) *PaymentAuditService {
	return &PaymentAuditService{repo: repo, logger: logger}
}

// Record writes audit, enriched with client device details when meta is given
func (s *PaymentAuditService) Record(ctx context.Context, audit *models.PaymentAudit, meta *models.RequestMeta) {
	if s == nil || s.repo == nil || audit == nil {
		return
	}

	if meta != nil {
		device := utils.ParseUserAgent(meta.UserAgent)
		audit.SetClient(*meta, device.DeviceType, device.Platform)
	}

	if err := s.repo.Log(context.WithoutCancel(ctx), audit); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"audit_id":   audit.ID,
		}).Warn("Payment audit not recorded")
	}
}
