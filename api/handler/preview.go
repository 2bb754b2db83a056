package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/exhibitly/backend/api/transport"
	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/pkg/httpcontext"
	previewUC "github.com/exhibitly/backend/usecase/preview"
)

type PreviewHandler struct {
	baseHandler
	uc *previewUC.UseCase
}

func NewPreviewHandler(uc *previewUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *PreviewHandler {
	return &PreviewHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Synthesize a narration preview
// @Router /api/v1/preview/audio [post]
func (h *PreviewHandler) Audio(ctx *fasthttp.RequestCtx) {
	customerID := h.customerID(ctx)
	if customerID == "" {
		return
	}

	var req transport.PreviewRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	audio, err := h.uc.Audio(stdCtx, req.Markup, req.Voice, req.Lang)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	ctx.Response.Header.SetContentType("audio/mpeg")
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBody(audio)
}
