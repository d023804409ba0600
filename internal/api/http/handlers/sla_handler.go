package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// SLAHandler exposes the on-demand SLA sweep.
type SLAHandler struct {
	sla *service.SLAService
	cfg config.SLAConfig
}

// NewSLAHandler constructs handler.
func NewSLAHandler(sla *service.SLAService, cfg config.SLAConfig) *SLAHandler {
	return &SLAHandler{sla: sla, cfg: cfg}
}

// Check POST /sla/check. Admin only; the route guard enforces the role.
func (h *SLAHandler) Check(c *fiber.Ctx) error {
	var req dto.SLACheckRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return util.NewValidationError("invalid payload", nil)
		}
	}

	warnRatio := h.cfg.WarnRatio
	if req.WarnRatio != nil {
		if *req.WarnRatio <= 0 || *req.WarnRatio >= 1 {
			return util.NewValidationError("warn_ratio must be a fraction in (0,1)", nil)
		}
		warnRatio = *req.WarnRatio
	}

	result, err := h.sla.RunCheck(c.UserContext(), warnRatio, req.DryRun)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLACheckResponse{
		Warnings: result.Warnings,
		Breaches: result.Breaches,
		DryRun:   req.DryRun,
	}})
}
