package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/exhibitly/backend/api/transport"
	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/pkg/httpcontext"
	"github.com/exhibitly/backend/repository"
	resourceUC "github.com/exhibitly/backend/usecase/resource"
)

// ResourceHandler serves one resource kind; the router registers one instance
// per kind under its own route prefix.
type ResourceHandler struct {
	baseHandler
	uc     *resourceUC.UseCase
	signer *transport.URLSigner
	kind   domain.Kind
}

func NewResourceHandler(uc *resourceUC.UseCase, signer *transport.URLSigner, kind domain.Kind, adapter *httpcontext.Adapter, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		signer:      signer,
		kind:        kind,
	}
}

// @Summary Create resource
// @Router /api/v1/{kind} [post]
func (h *ResourceHandler) Create(ctx *fasthttp.RequestCtx) {
	customerID := h.customerID(ctx)
	if customerID == "" {
		return
	}

	var req transport.ResourceRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	res := &domain.Resource{
		CustomerID:    customerID,
		Kind:          h.kind,
		InstitutionID: req.InstitutionID,
		ExhibitionID:  req.ExhibitionID,
	}
	if req.ReferenceName != nil {
		res.ReferenceName = *req.ReferenceName
	}
	if req.LangOptions != nil {
		res.LangOptions = *req.LangOptions
	}
	if req.Images != nil {
		res.Images = *req.Images
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.SubmitCreate(stdCtx, res)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Get resource
// @Router /api/v1/{kind}/{id} [get]
func (h *ResourceHandler) Get(ctx *fasthttp.RequestCtx) {
	customerID := h.customerID(ctx)
	if customerID == "" {
		return
	}
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing resource id", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	res, err := h.uc.Get(stdCtx, h.kind, id, customerID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.ToResourceDTO(res, h.signer))
}

// @Summary List resources
// @Router /api/v1/{kind} [get]
func (h *ResourceHandler) List(ctx *fasthttp.RequestCtx) {
	customerID := h.customerID(ctx)
	if customerID == "" {
		return
	}

	q := repository.OwnerQuery{
		PageSize:          parseInt(string(ctx.QueryArgs().Peek("page-size")), 20),
		Cursor:            repository.Cursor(ctx.QueryArgs().Peek("next-page-key")),
		ReferenceNameLike: string(ctx.QueryArgs().Peek("reference-name-like")),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	page, err := h.uc.List(stdCtx, h.kind, customerID, q)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	dto := transport.PageDTO{Count: page.Count}
	for i := range page.Items {
		dto.Items = append(dto.Items, transport.ToResourceDTO(&page.Items[i], h.signer))
	}
	if page.NextPageKey != nil {
		dto.NextPageKey = string(*page.NextPageKey)
	}
	h.respondSuccess(ctx, http.StatusOK, dto)
}

// @Summary Update resource
// @Router /api/v1/{kind}/{id} [put]
func (h *ResourceHandler) Update(ctx *fasthttp.RequestCtx) {
	customerID := h.customerID(ctx)
	if customerID == "" {
		return
	}
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing resource id", nil))
		return
	}

	var req transport.ResourceRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.SubmitUpdate(stdCtx, h.kind, id, customerID, resourceUC.UpdateInput{
		ReferenceName: req.ReferenceName,
		LangOptions:   req.LangOptions,
		Images:        req.Images,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Delete resource
// @Router /api/v1/{kind}/{id} [delete]
func (h *ResourceHandler) Delete(ctx *fasthttp.RequestCtx) {
	customerID := h.customerID(ctx)
	if customerID == "" {
		return
	}
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing resource id", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.SubmitDelete(stdCtx, h.kind, id, customerID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
