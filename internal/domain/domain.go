package domain

// Payment statuses.
const (
	StatusPending    = "PENDING"
	StatusValidated  = "VALIDATED"
	StatusApproved   = "APPROVED"
	StatusRejected   = "REJECTED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Task statuses.
const (
	TaskNotStarted  = "NOT_STARTED"
	TaskInProgress  = "IN_PROGRESS"
	TaskSubmitted   = "SUBMITTED"
	TaskUnderReview = "UNDER_REVIEW"
	TaskCompleted   = "COMPLETED"
	TaskReturned    = "RETURNED"
)

// Task priorities.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Verification source kinds.
const (
	SourceBankStatement = "bank_statement"
	SourceCNP           = "cnp"
)

// Exception statuses.
const (
	ExceptionOpen     = "Open"
	ExceptionResolved = "Resolved"
)

type Beneficiary struct {
	Name    string `json:"name"`
	Account string `json:"account"`
	Bank    string `json:"bank"`
}

// Payment is a treasury ledger entry keyed by reference.
// Amount is kept as its decimal text so values round-trip unchanged.
type Payment struct {
	Reference   string      `json:"reference"`
	Company     string      `json:"company"`
	Beneficiary Beneficiary `json:"beneficiary"`
	Amount      string      `json:"amount"`
	Date        string      `json:"date" format:"date"`
	Status      string      `json:"status"`
	Timestamp   string      `json:"timestamp" format:"date-time"`
}

// StatusEntry is one immutable history record per status transition.
type StatusEntry struct {
	ID             int64   `json:"id"`
	Reference      string  `json:"reference"`
	Status         string  `json:"status"`
	PreviousStatus *string `json:"previous_status,omitempty"`
	Timestamp      string  `json:"timestamp" format:"date-time"`
	Reason         string  `json:"reason,omitempty"`
	User           string  `json:"user,omitempty"`
}

// SourceRecord is a read-only row from an external verification export
// (bank statement or CNP clearing file).
type SourceRecord struct {
	Kind      string `json:"kind"`
	Company   string `json:"company"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SourceMatch pairs a matching record with the source it was found in.
type SourceMatch struct {
	Source string       `json:"source"`
	Record SourceRecord `json:"record"`
}

// Verification is the outcome of cross-referencing a payment.
type Verification struct {
	Reference        string        `json:"reference"`
	Matched          bool          `json:"matched"`
	Matches          []SourceMatch `json:"matches,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
	RequiresApproval bool          `json:"requires_approval"`
}

type ExceptionRecord struct {
	ID          string `json:"id"`
	Reference   string `json:"reference"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Resolution  string `json:"resolution,omitempty"`
	Timestamp   string `json:"timestamp" format:"date-time"`
}

type Feedback struct {
	User      string `json:"user"`
	Timestamp string `json:"timestamp" format:"date-time"`
	Message   string `json:"message"`
}

type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Owner       string     `json:"owner"`
	Reviewer    *string    `json:"reviewer,omitempty"`
	Deadline    string     `json:"deadline" format:"date"`
	Priority    string     `json:"priority" enum:"Low,Medium,High"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	LastEdited  string     `json:"last_edited" format:"date-time"`
	Feedback    []Feedback `json:"feedback_history,omitempty"`
	Archived    bool       `json:"archived"`
	ArchivedAt  *string    `json:"archived_at,omitempty" format:"date-time"`
}

type AuditEntry struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp" format:"date-time"`
	Action    string `json:"action"`
	Reference string `json:"reference,omitempty"`
	Details   string `json:"details,omitempty"`
	User      string `json:"user,omitempty"`
	Status    string `json:"status,omitempty"`
}

// RefreshSummary reports a bulk status refresh run.
type RefreshSummary struct {
	Updated int      `json:"updated"`
	Errors  int      `json:"errors"`
	Details []string `json:"details,omitempty"`
}
