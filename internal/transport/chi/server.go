package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
	"github.com/kailas-cloud/semdex/internal/domain/schema"
	"github.com/kailas-cloud/semdex/internal/domain/validate"
	"github.com/kailas-cloud/semdex/internal/metrics"
	"github.com/kailas-cloud/semdex/internal/repository/archive"
	batchuc "github.com/kailas-cloud/semdex/internal/usecase/batch"
	healthuc "github.com/kailas-cloud/semdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/semdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/semdex/internal/usecase/search"
	transferuc "github.com/kailas-cloud/semdex/internal/usecase/transfer"
)

// maxImportBytes caps the body of POST /items/import.
const maxImportBytes = 64 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the semdex HTTP API.
type Server struct {
	items         *indexuc.Service
	search        *searchuc.Service
	batch         *batchuc.Service
	health        *healthuc.Service
	transfer      *transferuc.Service
	registry      *schema.Registry
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	items *indexuc.Service,
	search *searchuc.Service,
	batch *batchuc.Service,
	health *healthuc.Service,
	registry *schema.Registry,
	logger *zap.Logger,
) *Server {
	s := &Server{
		items:    items,
		search:   search,
		batch:    batch,
		health:   health,
		transfer: transferuc.New(items, items, items.Version().Fields()),
		registry: registry,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		queryHandler,
		normalizationHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
		sentinelHandler(domain.ErrDuplicateContent, http.StatusConflict, CodeDuplicateContent),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, CodeInvalidSchema),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Get("/schema", s.GetSchema)
	r.Get("/schema/fields/{field}", s.GetSchemaField)

	r.Post("/normalize", s.Normalize)
	r.Post("/validate", s.Validate)

	r.Route("/items", func(r chi.Router) {
		r.Post("/", s.AddItem)
		r.Get("/", s.ListItems)
		r.Delete("/", s.ClearItems)
		r.Post("/batch", s.BatchAdd)
		r.Delete("/batch", s.BatchRemove)
		r.Get("/export", s.ExportItems)
		r.Post("/import", s.ImportItems)
		r.Get("/stats", s.ItemStats)
		r.Get("/values/{field}", s.FieldValues)
		r.Get("/{id}", s.GetItem)
		r.Put("/{id}", s.UpdateItem)
		r.Delete("/{id}", s.RemoveItem)
	})

	r.Post("/query", s.Query)
	r.Post("/query/explain", s.ExplainQuery)
}

// Handler returns a chi router serving the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

// GetSchema handles GET /schema.
func (s *Server) GetSchema(w http.ResponseWriter, _ *http.Request) {
	v := s.items.Version()
	names := v.Fields()
	fields := make([]schemaField, 0, len(names))
	for _, name := range names {
		f, _ := v.Field(name)
		fields = append(fields, schemaField{Name: f.Name(), Required: f.Required(), Description: f.Description()})
	}
	writeJSON(w, http.StatusOK, schemaResponse{
		Version:  v.ID(),
		Versions: s.registry.Versions(),
		Fields:   fields,
	})
}

// GetSchemaField handles GET /schema/fields/{field}. The optional prefix query
// parameter narrows the options to the children of that value.
func (s *Server) GetSchemaField(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "field")
	v := s.items.Version()
	f, ok := v.Field(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Code:    CodeFieldNotFound,
			Message: fmt.Sprintf("field %q is not declared in schema %s", name, v.ID()),
			Details: map[string]any{
				"suggestions": validate.Rank(normalize.FieldName(name), v.Fields(), validate.MaxSuggestions),
			},
		})
		return
	}

	var prefix string
	if raw := r.URL.Query().Get("prefix"); raw != "" {
		canon, err := normalize.Value(raw)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		prefix = canon
	}
	options := f.LabelsAt(normalize.Path(prefix))
	if options == nil {
		options = []string{}
	}

	writeJSON(w, http.StatusOK, fieldResponse{
		schemaField: schemaField{Name: f.Name(), Required: f.Required(), Description: f.Description()},
		Prefix:      prefix,
		Options:     options,
		Values:      f.Values(),
		Tree:        treeToResponse(f.Roots()),
	})
}

// Normalize handles POST /normalize.
func (s *Server) Normalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == nil && req.Descriptor == nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "value or descriptor is required")
		return
	}

	var resp normalizeResponse
	if req.Value != nil {
		v, err := normalize.Value(*req.Value)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.Value, resp.Path, resp.Depth = v, normalize.Path(v), normalize.Depth(v)
	}
	if req.Descriptor != nil {
		d, err := normalize.Fields(req.Descriptor)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.Descriptor = d
	}
	writeJSON(w, http.StatusOK, resp)
}

// Validate handles POST /validate. An invalid descriptor is still a 200; the
// body carries the errors.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res := s.items.Validate(req.Descriptor, req.Partial)
	if res.Errors == nil {
		res.Errors = []validate.FieldError{}
	}
	if res.Warnings == nil {
		res.Warnings = []validate.FieldError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    res.Valid(),
		"errors":   res.Errors,
		"warnings": res.Warnings,
	})
}

// AddItem handles POST /items.
func (s *Server) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	it, err := s.items.Add(r.Context(), addInput(req))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemToResponse(it))
}

// ListItems handles GET /items?offset=&limit=.
func (s *Server) ListItems(w http.ResponseWriter, r *http.Request) {
	var offset, limit *int
	if err := runtime.BindQueryParameter("form", true, false, "offset", r.URL.Query(), &offset); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid offset: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid limit: "+err.Error())
		return
	}

	page, err := s.items.List(r.Context(), derefInt(offset), derefInt(limit))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listItemsResponse{
		Items:  itemsToResponse(page.Items),
		Total:  page.Total,
		Offset: page.Offset,
		Limit:  page.Limit,
	})
}

// ClearItems handles DELETE /items.
func (s *Server) ClearItems(w http.ResponseWriter, r *http.Request) {
	if err := s.items.Clear(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetItem handles GET /items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.items.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemToResponse(it))
}

// UpdateItem handles PUT /items/{id}.
func (s *Server) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	it, err := s.items.Update(r.Context(), chi.URLParam(r, "id"), indexuc.UpdateInput{
		Text:       req.Text,
		Descriptor: req.Descriptor,
		Metadata:   req.Metadata,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemToResponse(it))
}

// RemoveItem handles DELETE /items/{id}.
func (s *Server) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := s.items.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchAdd handles POST /items/batch.
func (s *Server) BatchAdd(w http.ResponseWriter, r *http.Request) {
	var req batchAddRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 || len(req.Items) > s.batch.MaxSize() {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("items count must be between 1 and %d", s.batch.MaxSize()))
		return
	}
	inputs := make([]indexuc.AddInput, len(req.Items))
	for i, it := range req.Items {
		inputs[i] = addInput(it)
	}
	writeJSON(w, http.StatusOK, batchToResponse(s.batch.Add(r.Context(), inputs)))
}

// BatchRemove handles DELETE /items/batch.
func (s *Server) BatchRemove(w http.ResponseWriter, r *http.Request) {
	var req batchRemoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 || len(req.IDs) > s.batch.MaxSize() {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("ids count must be between 1 and %d", s.batch.MaxSize()))
		return
	}
	writeJSON(w, http.StatusOK, batchToResponse(s.batch.Remove(r.Context(), req.IDs)))
}

// ExportItems handles GET /items/export?format=json|jsonl|csv.
func (s *Server) ExportItems(w http.ResponseWriter, r *http.Request) {
	f, ok := archiveFormat(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if _, err := s.transfer.Export(r.Context(), &buf, f); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"items.%s\"", f))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("write export", zap.Error(err))
	}
}

// ImportItems handles POST /items/import?format=json|jsonl|csv. The body is the archive.
func (s *Server) ImportItems(w http.ResponseWriter, r *http.Request) {
	f, ok := archiveFormat(w, r)
	if !ok {
		return
	}
	results, err := s.transfer.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxImportBytes), f)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest,
			fmt.Sprintf("archive exceeds %d bytes", tooLarge.Limit))
		return
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchToResponse(results))
}

func archiveFormat(w http.ResponseWriter, r *http.Request) (archive.Format, bool) {
	var name string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &name); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid format: "+err.Error())
		return "", false
	}
	f, err := archive.ParseFormat(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return "", false
	}
	return f, true
}

// ItemStats handles GET /items/stats?field=a&field=b.
func (s *Server) ItemStats(w http.ResponseWriter, r *http.Request) {
	var fields []string
	if err := runtime.BindQueryParameter("form", true, false, "field", r.URL.Query(), &fields); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid field: "+err.Error())
		return
	}
	total, err := s.items.Count(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	dist, err := s.items.Distribution(r.Context(), fields...)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":         total,
		"distributions": dist,
	})
}

// FieldValues handles GET /items/values/{field}: the distinct values in use.
func (s *Server) FieldValues(w http.ResponseWriter, r *http.Request) {
	values, err := s.items.FieldValues(r.Context(), chi.URLParam(r, "field"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": values})
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := buildQuery(req, s.items.Version())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("rejected").Inc()
		s.handleDomainError(w, err)
		return
	}

	res, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	resp := queryResponse{
		Items:       itemsToResponse(res.Items),
		Total:       res.Total,
		Explanation: res.Explanation,
	}
	if len(req.Distribution) > 0 {
		dist, err := s.search.Distribution(r.Context(), q, req.Distribution...)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.Distribution = dist
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExplainQuery handles POST /query/explain.
func (s *Server) ExplainQuery(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "id is required")
		return
	}
	q, err := buildQuery(req.queryRequest, s.items.Version())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("rejected").Inc()
		s.handleDomainError(w, err)
		return
	}

	ex, err := s.search.ExplainItem(r.Context(), q, req.ID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{
		ID:      ex.Item.ID(),
		Matched: ex.Matched,
		Text:    ex.Text,
		Trace:   ex.Trace,
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":         report.Status,
		"checks":         report.Checks,
		"schema_version": report.SchemaVersion,
		"items":          report.Items,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func addInput(req addItemRequest) indexuc.AddInput {
	return indexuc.AddInput{
		ID:         req.ID,
		Text:       req.Text,
		Descriptor: req.Descriptor,
		Metadata:   req.Metadata,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// clientSentinels are errors whose messages are safe to show to clients.
var clientSentinels = []error{
	domain.ErrNotFound,
	domain.ErrAlreadyExists,
	domain.ErrDuplicateContent,
	domain.ErrValidation,
	domain.ErrNormalization,
	domain.ErrQuery,
	domain.ErrInvalidSchema,
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Typed domain errors describe user input and are returned whole.
func safeDomainMessage(err error) string {
	var (
		ve *domain.ValidationError
		qe *domain.QueryError
		ne *domain.NormalizationError
	)
	switch {
	case errors.As(err, &ve):
		return fmt.Sprintf("%s with %d error(s)", domain.ErrValidation.Error(), len(ve.Errors))
	case errors.As(err, &qe):
		return qe.Error()
	case errors.As(err, &ne):
		return ne.Error()
	}
	for _, s := range clientSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func errorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, domain.ErrDuplicateContent):
		return CodeDuplicateContent
	case errors.Is(err, domain.ErrValidation):
		return CodeValidationFailed
	case errors.Is(err, domain.ErrNormalization):
		return CodeNormalizationFailed
	case errors.Is(err, domain.ErrQuery):
		return CodeInvalidQuery
	default:
		return CodeInternalError
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler reports every field problem of a strict validation failure.
func validationHandler(w http.ResponseWriter, err error, msg string) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	details := map[string]any{"errors": ve.Errors}
	if len(ve.Warnings) > 0 {
		details["warnings"] = ve.Warnings
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: CodeValidationFailed, Message: msg, Details: details})
	return true
}

// queryHandler reports a rejected query with the offending field and suggestions.
func queryHandler(w http.ResponseWriter, err error, msg string) bool {
	var qe *domain.QueryError
	if !errors.As(err, &qe) {
		return false
	}
	details := map[string]any{}
	if qe.Field != "" {
		details["field"] = qe.Field
	}
	if qe.Value != "" {
		details["value"] = qe.Value
	}
	if len(qe.Suggestions) > 0 {
		details["suggestions"] = qe.Suggestions
	}
	resp := ErrorResponse{Code: CodeInvalidQuery, Message: msg}
	if len(details) > 0 {
		resp.Details = details
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

func normalizationHandler(w http.ResponseWriter, err error, msg string) bool {
	var ne *domain.NormalizationError
	if !errors.As(err, &ne) {
		return false
	}
	resp := ErrorResponse{Code: CodeNormalizationFailed, Message: msg}
	if ne.Field != "" || ne.Value != "" {
		resp.Details = map[string]any{"field": ne.Field, "value": ne.Value}
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Debug("client error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
