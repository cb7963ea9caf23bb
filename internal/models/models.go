package models

import "time"

type TaskStatus string

const (
	StatusQueued      TaskStatus = "QUEUED"
	StatusParsing     TaskStatus = "PARSING"
	StatusStructuring TaskStatus = "STRUCTURING"
	StatusRuleScoring TaskStatus = "RULE_SCORING"
	StatusKBRetrieval TaskStatus = "KB_RETRIEVAL"
	StatusLLMRisk     TaskStatus = "LLM_RISK"
	StatusEvidencing  TaskStatus = "EVIDENCING"
	StatusQCing       TaskStatus = "QCING"
	StatusDone        TaskStatus = "DONE"
	StatusFailed      TaskStatus = "FAILED"
	StatusCancelled   TaskStatus = "CANCELLED"
)

type KBMode string

const (
	KBModeStrict  KBMode = "STRICT"
	KBModeRelaxed KBMode = "RELAXED"
)

type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
	RiskInfo   RiskLevel = "INFO"
)

type Task struct {
	ID                string     `json:"id"`
	ContractVersionID string     `json:"contract_version_id"`
	Status            TaskStatus `json:"status"`
	Progress          int        `json:"progress"`
	CurrentStage      string     `json:"current_stage"`
	CancelRequested   bool       `json:"cancel_requested"`
	KBMode            KBMode     `json:"kb_mode"`
	ConfigSnapshotID  string     `json:"config_snapshot_id"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ConfigSnapshot freezes the model/prompt/ruleset configuration at task
// creation so a run stays reproducible across later global config changes.
type ConfigSnapshot struct {
	ID                    string    `json:"id"`
	RulesetVersion        string    `json:"ruleset_version"`
	ModelConfigJSON       string    `json:"model_config_json"`
	PromptTemplateVersion string    `json:"prompt_template_version"`
	KBCollectionsJSON     string    `json:"kb_collections_json"`
	CreatedAt             time.Time `json:"created_at"`
}

// TaskKBSnapshot records the version of one KB collection frozen for a task.
// A chunk is a legitimate citation source only if its document's version
// equals this frozen version.
type TaskKBSnapshot struct {
	ID                string `json:"id"`
	TaskID            string `json:"task_id"`
	CollectionID      string `json:"collection_id"`
	CollectionVersion int    `json:"collection_version"`
}

type ContractVersion struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	VersionNo  int       `json:"version_no"`
	ObjectKey  string    `json:"object_key"`
	Mime       string    `json:"mime"`
	SHA256     string    `json:"sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

type Clause struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id"`
	ClauseID string `json:"clause_id"`
	Title    string `json:"title,omitempty"`
	Text     string `json:"text"`
	OrderNo  int    `json:"order_no"`
}

type Risk struct {
	ID         string            `json:"id"`
	TaskID     string            `json:"task_id"`
	ClauseID   string            `json:"clause_id"`
	RiskLevel  RiskLevel         `json:"risk_level"`
	RiskType   string            `json:"risk_type"`
	Confidence float64           `json:"confidence"`
	Summary    string            `json:"summary"`
	Suggestion string            `json:"suggestion,omitempty"`
	Status     string            `json:"status"`
	QCFlags    map[string]string `json:"qc_flags,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// KBCitation links a risk to a KB chunk. DocVersion is the version asserted
// by the LLM output, not necessarily the chunk's actual current version.
type KBCitation struct {
	ID         string  `json:"id"`
	RiskID     string  `json:"risk_id"`
	ChunkID    string  `json:"chunk_id"`
	Score      float64 `json:"score"`
	QuoteText  string  `json:"quote_text"`
	DocVersion int     `json:"doc_version"`
}

type KBCollection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scope     string    `json:"scope"`
	Version   int       `json:"version"`
	IsEnabled bool      `json:"is_enabled"`
	CreatedAt time.Time `json:"created_at"`
}

type KBDocument struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	Title        string    `json:"title"`
	DocType      string    `json:"doc_type"`
	ObjectKey    string    `json:"object_key"`
	Version      int       `json:"version"`
	Hash         string    `json:"hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type KBChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	ChunkNo    int    `json:"chunk_no"`
	Text       string `json:"text"`
}

type TaskEvent struct {
	ID      string    `json:"id"`
	TaskID  string    `json:"task_id"`
	TS      time.Time `json:"ts"`
	Stage   string    `json:"stage"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Meta    string    `json:"meta,omitempty"`
}

type RuleHit struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id"`
	ClauseID string `json:"clause_id"`
	RuleKey  string `json:"rule_key"`
	Hint     string `json:"hint"`
}

type KBHit struct {
	ID         string  `json:"id"`
	TaskID     string  `json:"task_id"`
	ClauseID   string  `json:"clause_id"`
	ChunkID    string  `json:"chunk_id"`
	Score      float64 `json:"score"`
	QuoteText  string  `json:"quote_text"`
	DocTitle   string  `json:"doc_title"`
	DocVersion int     `json:"doc_version"`
}

type Report struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Format    string    `json:"format"`
	ObjectKey string    `json:"object_key"`
	CreatedAt time.Time `json:"created_at"`
}
