package rest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/veratrail/veratrail"
	"github.com/veratrail/veratrail/internal/domain"
	"github.com/veratrail/veratrail/internal/present/rest/middleware"
	"github.com/veratrail/veratrail/internal/present/rest/presenter"
	"github.com/veratrail/veratrail/internal/service"
	"github.com/veratrail/veratrail/internal/usecase"
)

const maxUploadBytes = 32 << 20

// Uploader stores uploaded content and reports its URL and fingerprint.
type Uploader interface {
	Put(ctx context.Context, prefix string, name string, content []byte, contentType string) (string, string, error)
}

type Handler struct {
	config    domain.Config
	document  *usecase.DocumentUsecase
	user      *usecase.UserUsecase
	signature *usecase.SignatureUsecase
	audit     *usecase.AuditUsecase
	signal    *service.SignalService
	files     Uploader
}

func NewHandler(
	config domain.Config,
	document *usecase.DocumentUsecase,
	user *usecase.UserUsecase,
	signature *usecase.SignatureUsecase,
	audit *usecase.AuditUsecase,
	signal *service.SignalService,
	files Uploader,
) *Handler {
	return &Handler{
		config:    config,
		document:  document,
		user:      user,
		signature: signature,
		audit:     audit,
		signal:    signal,
		files:     files,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, auth *middleware.AuthMiddleware) {
	e.POST("/api/v1/session", h.handleSession)

	api := e.Group("/api/v1", auth.RequireSession)

	api.POST("/documents", h.handleCreateDocument)
	api.GET("/documents/:id", h.handleGetDocument)
	api.DELETE("/documents/:id", h.handleDeleteDocument)
	api.POST("/documents/:id/sign", h.handleSign, auth.RequireERSD)
	api.POST("/documents/:id/advance", h.handleAdvance)
	api.POST("/documents/:id/revert", h.handleRevert)
	api.POST("/documents/:id/finalize", h.handleFinalize)
	api.POST("/documents/:id/reopen", h.handleReopen)
	api.POST("/documents/:id/close", h.handleClose)
	api.POST("/documents/:id/copies", h.handleCreateCopy)
	api.POST("/documents/:id/participants", h.handleAddParticipant)
	api.DELETE("/documents/:id/participants/:userId", h.handleRemoveParticipant)
	api.PUT("/documents/:id/signing-order", h.handleSigningOrder)
	api.POST("/documents/:id/viewers", h.handleAddViewer)
	api.DELETE("/documents/:id/viewers/:userId", h.handleRemoveViewer)

	api.POST("/users", h.handleInviteUser)
	api.GET("/users/:id", h.handleGetUser)
	api.DELETE("/users/:id/invitation", h.handleWithdrawUser)
	api.POST("/users/:id/deactivate", h.handleDeactivateUser)
	api.POST("/users/:id/reactivate", h.handleReactivateUser)
	api.PUT("/users/:id/role", h.handleChangeRole)
	api.PUT("/users/:id/view-scope", h.handleViewScope)
	api.POST("/users/me/ersd", h.handleAcceptERSD)

	api.PUT("/users/:id/signature-verification", h.handleVerifySignature)
	api.DELETE("/users/:id/signature-verification", h.handleRevokeSignature)
	api.GET("/users/:id/signature-verification", h.handleGetSignature)

	api.GET("/audit", h.handleAuditQuery)
	api.POST("/files", h.handleUpload)

	e.GET("/realtime", h.handleRealtime, auth.RequireSession)
}

func requester(c echo.Context) (domain.User, bool) {
	return middleware.RequesterUser(c)
}

// --- session ---

func (h *Handler) handleSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req veratrail.SessionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.AccessToken == "" {
		return presenter.BadRequestMessage(c, "accessToken is required")
	}

	user, err := h.user.CompleteSignIn(ctx, req.AccessToken, req.InviteToken)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.User(user))
}

// --- documents ---

func (h *Handler) handleCreateDocument(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.CreateDocumentRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	doc, err := h.document.Create(ctx, actor, usecase.CreateDocumentInput{
		Name:               req.Name,
		ExternalReference:  req.ExternalReference,
		Category:           req.Category,
		SourceFileURL:      req.SourceFileURL,
		ContentFingerprint: req.ContentFingerprint,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, presenter.Document(doc))
}

func (h *Handler) handleGetDocument(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	doc, err := h.document.Get(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleDeleteDocument(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.DeleteOrVoidRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	outcome, err := h.document.DeleteOrVoid(ctx, actor, c.Param("id"), req.ConfirmationAccepted)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, veratrail.DeleteOrVoidResult{Outcome: outcome})
}

func (h *Handler) handleSign(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	doc, err := h.document.Sign(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleAdvance(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	doc, err := h.document.Advance(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleRevert(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.RevertRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	doc, err := h.document.Revert(ctx, actor, c.Param("id"), req.Reason)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleFinalize(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	doc, err := h.document.Finalize(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleReopen(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	doc, err := h.document.Reopen(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleClose(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	doc, err := h.document.Close(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleCreateCopy(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	doc, err := h.document.CreateControlledCopy(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, presenter.Document(doc))
}

func (h *Handler) handleAddParticipant(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.AddParticipantRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	stage, ok := domain.ParseStage(req.Stage)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid stage")
	}

	doc, err := h.document.AddParticipant(ctx, actor, c.Param("id"), domain.Participant{
		UserID:       req.UserID,
		Stage:        stage,
		WorkflowRole: req.WorkflowRole,
		SigningOrder: req.SigningOrder,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleRemoveParticipant(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	stage, ok := domain.ParseStage(c.QueryParam("stage"))
	if !ok {
		return presenter.BadRequestMessage(c, "stage parameter is required")
	}

	doc, err := h.document.RemoveParticipant(ctx, actor, c.Param("id"), c.Param("userId"), stage)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleSigningOrder(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.SigningOrderRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	stage, ok := domain.ParseStage(req.Stage)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid stage")
	}

	doc, err := h.document.SetSigningOrder(ctx, actor, c.Param("id"), stage, req.UserIDs)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleAddViewer(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.AddViewerRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	doc, err := h.document.AddViewer(ctx, actor, c.Param("id"), req.UserID)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

func (h *Handler) handleRemoveViewer(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	doc, err := h.document.RemoveViewer(ctx, actor, c.Param("id"), c.Param("userId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Document(doc))
}

// --- users ---

func (h *Handler) handleInviteUser(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.InviteUserRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid role")
	}

	user, token, err := h.user.Invite(ctx, actor, usecase.InviteUserInput{
		Email:     req.Email,
		LegalName: req.LegalName,
		Initials:  req.Initials,
		Role:      role,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, veratrail.InviteUserResponse{
		User:  presenter.User(user),
		Token: token,
	})
}

func (h *Handler) handleGetUser(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	id := c.Param("id")
	if id == "me" {
		id = actor.ID
	}

	user, err := h.user.Get(ctx, actor, id)
	if err != nil {
		return presenter.Error(c, err)
	}
	out := presenter.User(user)
	if rec, err := h.signature.Get(ctx, actor, id); err == nil {
		out.VerificationRecord = presenter.Verification(rec)
	}
	return presenter.OK(c, out)
}

func (h *Handler) handleWithdrawUser(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	user, err := h.user.Withdraw(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.User(user))
}

func (h *Handler) handleDeactivateUser(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	user, err := h.user.Deactivate(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.User(user))
}

func (h *Handler) handleReactivateUser(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	user, err := h.user.Reactivate(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.User(user))
}

func (h *Handler) handleChangeRole(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.ChangeRoleRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid role")
	}

	user, err := h.user.ChangeRole(ctx, actor, c.Param("id"), role)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.User(user))
}

func (h *Handler) handleViewScope(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.ViewScopeRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	user, err := h.user.SetViewScope(ctx, actor, c.Param("id"), req.CanAccessAllDocuments)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.User(user))
}

func (h *Handler) handleAcceptERSD(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	user, err := h.user.AcceptERSD(ctx, actor)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.User(user))
}

// --- signature verification ---

func (h *Handler) handleVerifySignature(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	var req veratrail.VerifySignatureRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	rec, err := h.signature.Verify(ctx, actor, c.Param("id"), usecase.VerifyInput{
		Method:   domain.VerificationMethod(req.Method),
		ImageURL: req.ImageURL,
		Notation: req.Notation,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Verification(&rec))
}

func (h *Handler) handleRevokeSignature(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	if err := h.signature.Revoke(ctx, actor, c.Param("id")); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleGetSignature(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	rec, err := h.signature.Get(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	if rec == nil {
		return presenter.Error(c, domain.Errf(domain.ErrNotFound.Code, "no verification record"))
	}
	return presenter.OK(c, presenter.Verification(rec))
}

// --- audit ---

func (h *Handler) handleAuditQuery(c echo.Context) error {
	ctx := c.Request().Context()
	actor, _ := requester(c)

	q := domain.AuditQuery{
		TargetType: domain.TargetType(c.QueryParam("targetType")),
		TargetID:   c.QueryParam("targetId"),
		Category:   c.QueryParam("category"),
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid limit parameter")
		}
		q.Limit = limit
	}
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid offset parameter")
		}
		q.Offset = offset
	}

	entries, total, err := h.audit.Query(ctx, actor, q)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.AuditPage(entries, total, q.Limit, q.Offset))
}

// --- files ---

func (h *Handler) handleUpload(c echo.Context) error {
	if h.files == nil {
		return presenter.BadRequestMessage(c, "file storage is not configured")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return presenter.BadRequestMessage(c, "file field is required")
	}
	if file.Size > maxUploadBytes {
		return presenter.BadRequestMessage(c, "file exceeds the upload limit")
	}

	src, err := file.Open()
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, fingerprint, err := h.files.Put(c.Request().Context(), "documents", file.Filename, content, contentType)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, veratrail.UploadResponse{
		URL:         url,
		Fingerprint: fingerprint,
	})
}

// --- realtime ---

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type    string   `json:"type"`
	Targets []string `json:"targets"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	input := make(chan []string)
	defer close(input)
	output := make(chan veratrail.Event)
	defer close(output)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "listen":
				input <- req.Targets
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
