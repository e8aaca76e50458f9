package server

import (
	"errors"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"

	"github.com/alechenninger/provisioner/internal/provisioning"
	"github.com/alechenninger/provisioner/internal/redirect"
	"github.com/alechenninger/provisioner/internal/resolver"
	"github.com/alechenninger/provisioner/internal/session"
	"github.com/alechenninger/provisioner/internal/settings"
)

// Routes served by Handlers
const (
	CallbackPath      = "/provisioning/callback"
	AccountTicketPath = "/provisioning/account-ticket"
	LinkPath          = "/provisioning/link"
	PropertyPath      = "/provisioning/property"
	ProfilePath       = "/provisioning/profile"
	SettingsPath      = "/settings"
)

// Error codes of JSON error responses
const (
	CodeUnauthenticated     = "unauthenticated"
	CodeForbidden           = "forbidden"
	CodeInvalidRequest      = "invalid_request"
	CodeAccountTicketFailed = "account_ticket_failed"
	CodePropertyNotFound    = "property_not_found"
	CodeCreateFailed        = "resource_create_failed"
	CodeInternal            = "internal_error"
)

// HandlersConfig wires the provisioning components into HTTP handlers
type HandlersConfig struct {
	Sessions   session.Provider
	Authorizer *session.Authorizer
	Reconciler *provisioning.Reconciler
	Initiator  *provisioning.Initiator
	Linker     *provisioning.Linker
	Creator    *provisioning.Creator
	Settings   settings.Store
	Dispatcher *redirect.Dispatcher
	Logger     logrus.FieldLogger
}

// Handlers serves the provisioning HTTP surface
type Handlers struct {
	sessions   session.Provider
	authorizer *session.Authorizer
	reconciler *provisioning.Reconciler
	initiator  *provisioning.Initiator
	linker     *provisioning.Linker
	creator    *provisioning.Creator
	settings   settings.Store
	dispatcher *redirect.Dispatcher
	logger     logrus.FieldLogger
}

// NewHandlers creates Handlers. A nil Authorizer allows every identified user.
func NewHandlers(cfg HandlersConfig) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	authorizer := cfg.Authorizer
	if authorizer == nil {
		authorizer, _ = session.NewAuthorizer("")
	}
	return &Handlers{
		sessions:   cfg.Sessions,
		authorizer: authorizer,
		reconciler: cfg.Reconciler,
		initiator:  cfg.Initiator,
		linker:     cfg.Linker,
		creator:    cfg.Creator,
		settings:   cfg.Settings,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
	}
}

// Register adds every route to mux
func (h *Handlers) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, CallbackPath, h.callback},
		{http.MethodPost, AccountTicketPath, h.createAccountTicket},
		{http.MethodPost, LinkPath, h.link},
		{http.MethodPost, PropertyPath, h.createProperty},
		{http.MethodPost, ProfilePath, h.createProfile},
		{http.MethodGet, SettingsPath, h.getSettings},
	}
	for _, route := range routes {
		if err := mux.HandlePath(route.method, route.pattern, h.withMarshalers(mux, route.handler)); err != nil {
			return err
		}
	}
	return nil
}

type marshalersKey struct{}

type marshalers struct {
	in, out runtime.Marshaler
}

func (h *Handlers) withMarshalers(mux *runtime.ServeMux, next runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		in, out := runtime.MarshalerForRequest(mux, r)
		ctx := withMarshalers(r.Context(), marshalers{in: in, out: out})
		next(w, r.WithContext(ctx), params)
	}
}

// identify authenticates and authorizes the request, writing the error
// response itself when it fails
func (h *Handlers) identify(w http.ResponseWriter, r *http.Request) (*session.Identity, bool) {
	id, err := h.sessions.Identify(r)
	if err != nil {
		h.logger.WithError(err).Debug("Request not authenticated")
		h.writeError(w, r, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
		return nil, false
	}
	if err := h.authorizer.Authorize(id); err != nil {
		h.logger.WithError(err).WithField("user_id", id.ID).Info("Request not authorized")
		h.writeError(w, r, http.StatusForbidden, CodeForbidden, "not allowed to manage analytics settings")
		return nil, false
	}
	return id, true
}

// callback reconciles the remote service's redirect and sends the user on
func (h *Handlers) callback(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	id, ok := h.identify(w, r)
	if !ok {
		return
	}

	out := h.reconciler.Reconcile(r.Context(), id.ID, provisioning.ParseCallbackParams(r.URL.Query()))
	h.dispatcher.Dispatch(w, r, out)
}

func (h *Handlers) createAccountTicket(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	id, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req provisioning.AccountRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	ticket, err := h.initiator.CreateAccountTicket(r.Context(), id.ID, req)
	switch {
	case errors.Is(err, provisioning.ErrInvalidRequest):
		h.writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	case err != nil:
		h.logger.WithError(err).WithField("user_id", id.ID).Error("Failed to create account ticket")
		h.writeError(w, r, http.StatusBadGateway, CodeAccountTicketFailed, "could not create account ticket")
		return
	}

	h.writeJSON(w, r, http.StatusCreated, ticket)
}

type linkRequest struct {
	PropertyID string `json:"propertyID"`
	ProfileID  string `json:"profileID"`
}

func (h *Handlers) link(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	id, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req linkRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	_, err := h.linker.Link(r.Context(), req.PropertyID, req.ProfileID)
	h.writeLinked(w, r, id, http.StatusOK, err)
}

func (h *Handlers) createProperty(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	id, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req provisioning.PropertyRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	_, err := h.creator.CreatePropertyAndLink(r.Context(), req)
	h.writeLinked(w, r, id, http.StatusCreated, err)
}

func (h *Handlers) createProfile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	id, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req provisioning.ProfileRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	_, err := h.creator.CreateProfileAndLink(r.Context(), req)
	h.writeLinked(w, r, id, http.StatusCreated, err)
}

// writeLinked answers with the stored settings once a unit was committed
func (h *Handlers) writeLinked(w http.ResponseWriter, r *http.Request, id *session.Identity, status int, err error) {
	if err != nil {
		h.writeLinkError(w, r, id, err)
		return
	}

	current, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read settings after link")
		h.writeError(w, r, http.StatusInternalServerError, CodeInternal, "could not read settings")
		return
	}
	h.writeJSON(w, r, status, current)
}

func (h *Handlers) writeLinkError(w http.ResponseWriter, r *http.Request, id *session.Identity, err error) {
	var lookupErr *resolver.LookupError
	switch {
	case errors.Is(err, provisioning.ErrInvalidRequest):
		h.writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, provisioning.ErrCreateFailed):
		h.logger.WithError(err).WithField("user_id", id.ID).Error("Remote create failed")
		h.writeError(w, r, http.StatusBadGateway, CodeCreateFailed, "could not create analytics resource")
	case errors.Is(err, resolver.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, CodePropertyNotFound, "property not found")
	case errors.As(err, &lookupErr):
		h.logger.WithError(err).WithField("user_id", id.ID).Error("Property lookup failed")
		h.writeError(w, r, http.StatusBadGateway, provisioning.CodeLookupFailed, "property lookup failed")
	default:
		h.logger.WithError(err).WithField("user_id", id.ID).Error("Failed to link property")
		h.writeError(w, r, http.StatusInternalServerError, provisioning.CodeCommitFailed, "could not save settings")
	}
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if _, ok := h.identify(w, r); !ok {
		return
	}

	current, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read settings")
		h.writeError(w, r, http.StatusInternalServerError, CodeInternal, "could not read settings")
		return
	}
	h.writeJSON(w, r, http.StatusOK, current)
}
