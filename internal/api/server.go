package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"

	"precheck/internal/config"
	"precheck/internal/gateway"
	"precheck/internal/models"
	"precheck/internal/objstore"
	"precheck/internal/parser"
	"precheck/internal/storage"
	"precheck/internal/util"
	"precheck/internal/workflows"
)

const (
	rulesetVersion        = "ruleset-v1"
	promptTemplateVersion = "risk-v1"
)

// Server is the read-mostly HTTP surface. Contract uploads, KB ingest and
// task creation land here; all pipeline execution happens on the workers.
type Server struct {
	cfg       config.Config
	db        *storage.DB
	tasks     *storage.TaskRepo
	events    *storage.EventRepo
	clauses   *storage.ClauseRepo
	risks     *storage.RiskRepo
	kb        *storage.KBRepo
	contracts *storage.ContractRepo
	reports   *storage.ReportRepo
	gw        *gateway.Gateway
	store     objstore.Store
	temporal  tclient.Client
	logger    *slog.Logger
}

type Deps struct {
	Config   config.Config
	DB       *storage.DB
	Gateway  *gateway.Gateway
	Store    objstore.Store
	Temporal tclient.Client
	Logger   *slog.Logger
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       d.Config,
		db:        d.DB,
		tasks:     storage.NewTaskRepo(d.DB),
		events:    storage.NewEventRepo(d.DB),
		clauses:   storage.NewClauseRepo(d.DB),
		risks:     storage.NewRiskRepo(d.DB),
		kb:        storage.NewKBRepo(d.DB),
		contracts: storage.NewContractRepo(d.DB),
		reports:   storage.NewReportRepo(d.DB),
		gw:        d.Gateway,
		store:     d.Store,
		temporal:  d.Temporal,
		logger:    logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/contracts", s.handleContracts)
	mux.HandleFunc("/contracts/", s.handleContractScoped)
	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/tasks/", s.handleTaskScoped)
	mux.HandleFunc("/kb/collections", s.handleCollections)
	mux.HandleFunc("/kb/collections/", s.handleCollectionScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	dbOK := s.db.Pool.Ping(ctx) == nil
	health := s.gw.HealthCheck(ctx)
	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ok": dbOK, "db": dbOK, "models": health})
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Name         string `json:"name"`
		Counterparty string `json:"counterparty"`
		ContractType string `json:"contract_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}
	id, err := s.contracts.CreateContract(r.Context(), req.Name, req.Counterparty, req.ContractType)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"contract_id": id})
}

// handleContractScoped serves POST /contracts/{id}/versions.
func (s *Server) handleContractScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/contracts/"), "/"), "/")
	if len(parts) != 2 || parts[1] != "versions" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	contractID := parts[0]

	fh, data, mime, err := readUpload(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if !parser.IsSupported(mime) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unsupported mime type %s", mime))
		return
	}

	key := fmt.Sprintf("contracts/%s/%s/%s", contractID, util.NewID("up"), filepath.Base(fh.Filename))
	if err := s.store.Upload(r.Context(), key, data, mime); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	versionID, err := s.contracts.CreateVersion(r.Context(), models.ContractVersion{
		ContractID: contractID,
		ObjectKey:  key,
		Mime:       mime,
		SHA256:     util.SHA256Hex(data),
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"contract_version_id": versionID, "object_key": key})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		ContractVersionID string   `json:"contract_version_id"`
		KBCollectionIDs   []string `json:"kb_collection_ids"`
		KBMode            string   `json:"kb_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.ContractVersionID) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("contract_version_id is required"))
		return
	}
	mode := models.KBMode(strings.ToUpper(strings.TrimSpace(req.KBMode)))
	if mode == "" {
		mode = models.KBModeRelaxed
	}
	if mode != models.KBModeStrict && mode != models.KBModeRelaxed {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("kb_mode must be STRICT or RELAXED"))
		return
	}
	if mode == models.KBModeStrict && len(req.KBCollectionIDs) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("strict kb mode requires at least one kb collection"))
		return
	}
	if _, err := s.contracts.GetVersion(r.Context(), req.ContractVersionID); err != nil {
		if err == storage.ErrContractVersionNotFound {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	modelConfig, _ := json.Marshal(map[string]string{
		"provider":     s.cfg.LLMProvider,
		"chat_model":   s.cfg.ChatModel,
		"embed_model":  s.cfg.EmbedModel,
		"rerank_model": s.cfg.RerankModel,
	})
	taskID, err := s.tasks.CreateTask(r.Context(), storage.CreateTaskParams{
		ContractVersionID: req.ContractVersionID,
		KBCollectionIDs:   req.KBCollectionIDs,
		KBMode:            mode,
		RulesetVersion:    rulesetVersion,
		ModelConfigJSON:   string(modelConfig),
		PromptVersion:     promptTemplateVersion,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	// WorkflowID equals the task id, so a duplicate submit cannot start a
	// second pipeline for the same task.
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       taskID,
		TaskQueue:                                workflows.TaskQueue(s.cfg.QueuePrefix, workflows.QueueOrchestrator),
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.TaskPipelineWorkflow, workflows.PipelineInput{
		TaskID:      taskID,
		TraceID:     util.NewID("trace"),
		QueuePrefix: s.cfg.QueuePrefix,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id":     taskID,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

// handleTaskScoped serves GET /tasks/{id}, GET /tasks/{id}/events, risks,
// reports and POST /tasks/{id}/cancel.
func (s *Server) handleTaskScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/tasks/"), "/"), "/")
	taskID := parts[0]
	if taskID == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		task, err := s.tasks.GetTask(r.Context(), taskID)
		if err != nil {
			if err == storage.ErrTaskNotFound {
				writeErr(w, http.StatusNotFound, err)
				return
			}
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
		return
	}

	switch parts[1] {
	case "events":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		events, err := s.events.ListEvents(r.Context(), taskID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	case "risks":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.writeTaskRisks(w, r, taskID)
	case "reports":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		reports, err := s.reports.ListReports(r.Context(), taskID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	case "cancel":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		if err := s.tasks.SetCancelRequested(r.Context(), taskID); err != nil {
			if err == storage.ErrTaskNotFound {
				writeErr(w, http.StatusNotFound, err)
				return
			}
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "cancel_requested": true})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) writeTaskRisks(w http.ResponseWriter, r *http.Request, taskID string) {
	risks, err := s.risks.ListRisks(r.Context(), taskID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	type riskWithCitations struct {
		models.Risk
		Citations []models.KBCitation `json:"citations"`
	}
	out := make([]riskWithCitations, 0, len(risks))
	for _, risk := range risks {
		citations, err := s.risks.ListCitations(r.Context(), risk.ID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, riskWithCitations{Risk: risk, Citations: citations})
	}
	writeJSON(w, http.StatusOK, map[string]any{"risks": out})
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		collections, err := s.kb.ListCollections(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
	case http.MethodPost:
		var req struct {
			Name  string `json:"name"`
			Scope string `json:"scope"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}
		if req.Scope == "" {
			req.Scope = "global"
		}
		id, err := s.kb.CreateCollection(r.Context(), req.Name, req.Scope)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"collection_id": id})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

// handleCollectionScoped serves POST /kb/collections/{id}/documents.
func (s *Server) handleCollectionScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/kb/collections/"), "/"), "/")
	if len(parts) != 2 || parts[1] != "documents" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	collectionID := parts[0]
	if _, err := s.kb.GetCollection(r.Context(), collectionID); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}

	fh, data, mime, err := readUpload(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if !parser.IsSupported(mime) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unsupported mime type %s", mime))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = filepath.Base(fh.Filename)
	}
	docType := strings.TrimSpace(r.FormValue("doc_type"))
	if docType == "" {
		docType = "reference"
	}

	key := fmt.Sprintf("kb/%s/%s/%s", collectionID, util.NewID("up"), filepath.Base(fh.Filename))
	if err := s.store.Upload(r.Context(), key, data, mime); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                    "kb-ingest-" + util.NewID("wf"),
		TaskQueue:             workflows.TaskQueue(s.cfg.QueuePrefix, workflows.QueueKBIngest),
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.KBIngestWorkflow, workflows.KBIngestInput{
		CollectionID: collectionID,
		Title:        title,
		DocType:      docType,
		ObjectKey:    key,
		Mime:         mime,
		QueuePrefix:  s.cfg.QueuePrefix,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"object_key":  key,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

const maxUploadBytes = 50 << 20

// readUpload extracts the single "file" part of a multipart request.
func readUpload(r *http.Request) (*multipart.FileHeader, []byte, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, "", fmt.Errorf("parse multipart: %w", err)
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		return nil, nil, "", fmt.Errorf("no file provided: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, nil, "", fmt.Errorf("file exceeds %d bytes", maxUploadBytes)
	}
	mime := fh.Header.Get("Content-Type")
	if override := r.FormValue("mime"); override != "" {
		mime = override
	}
	return fh, data, mime, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, code, map[string]any{"error": map[string]any{"message": msg}})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
