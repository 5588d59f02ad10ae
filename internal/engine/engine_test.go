package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"payline/internal/config"
	"payline/internal/db"
	"payline/internal/domain"
	"payline/internal/engine"
	"payline/internal/migrate"
	"payline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.Admins = []string{"admin"}
	eng, err := engine.New(conn, cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.Now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func testPayment(reference, date, amount string) domain.Payment {
	return domain.Payment{
		Reference: reference,
		Company:   "SALAM",
		Beneficiary: domain.Beneficiary{
			Name:    "Acme Trading",
			Account: "SA0380000000608010167519",
			Bank:    "SNB",
		},
		Amount: amount,
		Date:   date,
	}
}

func mustCreate(t *testing.T, env testEnv, opts engine.PaymentCreateOptions) domain.Payment {
	t.Helper()
	p, err := env.Engine.CreatePayment(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return p
}

func TestCreatePayment(t *testing.T) {
	env := newTestEnv(t)
	p := mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0001", "2024-06-10", "5000"),
		Actor:   "alice",
	})
	if p.Status != domain.StatusPending {
		t.Fatalf("status = %s, want PENDING", p.Status)
	}
	entry, err := env.Engine.GetStatus(env.Ctx, "SAL-2024-0001")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if entry.Status != domain.StatusPending || entry.PreviousStatus != nil {
		t.Fatalf("initial entry = %+v", entry)
	}

	_, err = env.Engine.CreatePayment(env.Ctx, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0001", "2024-06-11", "7000"),
		Actor:   "alice",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("duplicate reference: got %v, want ValidationError", err)
	}
}

func TestCreatePaymentRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name    string
		mutate  func(*domain.Payment)
		wantErr string
	}{
		{"unknown company", func(p *domain.Payment) { p.Company = "OTHER" }, "company"},
		{"bad reference", func(p *domain.Payment) { p.Reference = "SALAM-24-1" }, "reference"},
		{"bad iban", func(p *domain.Payment) { p.Beneficiary.Account = "GB29NWBK60161331926819" }, "IBAN"},
		{"zero amount", func(p *domain.Payment) { p.Amount = "0" }, "amount"},
		{"over limit", func(p *domain.Payment) { p.Amount = "1000001" }, "maximum"},
		{"future date", func(p *domain.Payment) { p.Date = "2024-07-01" }, "future"},
		{"hostile name", func(p *domain.Payment) { p.Beneficiary.Name = "x'; DROP TABLE payments--" }, "invalid characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testPayment("SAL-2024-0002", "2024-06-10", "5000")
			tc.mutate(&p)
			_, err := env.Engine.CreatePayment(env.Ctx, engine.PaymentCreateOptions{Payment: p, Actor: "alice"})
			var ve engine.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			if !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(tc.wantErr)) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestOldPaymentNeedsApproval(t *testing.T) {
	env := newTestEnv(t)
	old := testPayment("SAL-2024-0003", "2024-05-20", "5000")

	_, err := env.Engine.CreatePayment(env.Ctx, engine.PaymentCreateOptions{Payment: old, Actor: "alice"})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("old payment without approval: got %v, want ValidationError", err)
	}

	_, err = env.Engine.CreatePayment(env.Ctx, engine.PaymentCreateOptions{
		Payment: old, Actor: "alice", CNPApproved: true,
	})
	if !errors.As(err, &ve) {
		t.Fatalf("approval without reason: got %v, want ValidationError", err)
	}

	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: old, Actor: "alice", CNPApproved: true, OverrideReason: "late clearing batch",
	})
	entries, err := env.Engine.Repo.ListAuditEntries(env.Ctx, repo.AuditFilters{Reference: "SAL-2024-0003", Action: "Override_Approved"})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Details != "late clearing batch" {
		t.Fatalf("override audit = %+v", entries)
	}
}

func TestStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0010", "2024-06-10", "5000"),
		Actor:   "alice",
	})
	ref := "SAL-2024-0010"

	for _, status := range []string{
		domain.StatusValidated, domain.StatusApproved, domain.StatusProcessing, domain.StatusCompleted,
	} {
		if err := env.Engine.UpdateStatus(env.Ctx, ref, status, "", "alice", false); err != nil {
			t.Fatalf("to %s: %v", status, err)
		}
	}

	err := env.Engine.UpdateStatus(env.Ctx, ref, domain.StatusPending, "", "alice", false)
	var te engine.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("from COMPLETED: got %v, want TransitionError", err)
	}
	if te.From != domain.StatusCompleted || te.To != domain.StatusPending {
		t.Fatalf("transition error = %+v", te)
	}

	history, err := env.Engine.StatusHistory(env.Ctx, ref)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5", len(history))
	}
	if history[4].PreviousStatus == nil || *history[4].PreviousStatus != domain.StatusProcessing {
		t.Fatalf("last entry previous = %+v", history[4])
	}
}

func TestSameStatusIsNoop(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0011", "2024-06-10", "5000"),
		Actor:   "alice",
	})
	if err := env.Engine.UpdateStatus(env.Ctx, "SAL-2024-0011", domain.StatusPending, "", "alice", false); err != nil {
		t.Fatalf("same status: %v", err)
	}
	history, _ := env.Engine.StatusHistory(env.Ctx, "SAL-2024-0011")
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1 (no-op must not append)", len(history))
	}
}

func TestFailedRetriesToPending(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0012", "2024-06-10", "5000"),
		Actor:   "alice",
	})
	ref := "SAL-2024-0012"
	for _, status := range []string{
		domain.StatusValidated, domain.StatusApproved, domain.StatusProcessing, domain.StatusFailed,
	} {
		if err := env.Engine.UpdateStatus(env.Ctx, ref, status, "", "alice", false); err != nil {
			t.Fatalf("to %s: %v", status, err)
		}
	}
	if err := env.Engine.UpdateStatus(env.Ctx, ref, domain.StatusPending, "retry", "alice", false); err != nil {
		t.Fatalf("FAILED -> PENDING: %v", err)
	}
}

func TestForceOverridesTransitionTable(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0013", "2024-06-10", "5000"),
		Actor:   "alice",
	})
	ref := "SAL-2024-0013"

	err := env.Engine.UpdateStatus(env.Ctx, ref, domain.StatusCompleted, "", "alice", false)
	var te engine.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("skip ahead without force: got %v", err)
	}
	if err := env.Engine.UpdateStatus(env.Ctx, ref, domain.StatusCompleted, "correction", "admin", true); err != nil {
		t.Fatalf("forced: %v", err)
	}
	entries, _ := env.Engine.Repo.ListAuditEntries(env.Ctx, repo.AuditFilters{Reference: ref, Action: "Status_Updated"})
	if len(entries) == 0 || !strings.Contains(entries[0].Details, "(forced)") {
		t.Fatalf("forced update not audited: %+v", entries)
	}
}

func TestRefreshStatuses(t *testing.T) {
	env := newTestEnv(t)
	// Simulate a legacy row imported without any history entry.
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := testPayment("SAL-2024-0020", "2024-06-10", "5000")
	p.Status = domain.StatusPending
	p.Timestamp = "2024-06-10T00:00:00Z"
	if err := env.Engine.Repo.InsertPaymentTx(env.Ctx, tx, p); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	summary, err := env.Engine.RefreshStatuses(env.Ctx, "system")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if summary.Updated != 1 || summary.Errors != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	entry, err := env.Engine.GetStatus(env.Ctx, "SAL-2024-0020")
	if err != nil || entry.Status != domain.StatusPending {
		t.Fatalf("entry = %+v err = %v", entry, err)
	}

	again, err := env.Engine.RefreshStatuses(env.Ctx, "system")
	if err != nil || again.Updated != 0 {
		t.Fatalf("second refresh = %+v err = %v", again, err)
	}
}

func importRecords(t *testing.T, env testEnv, kind string, records ...domain.SourceRecord) {
	t.Helper()
	if err := env.Engine.Repo.ReplaceSourceRecords(env.Ctx, kind, "SALAM", records); err != nil {
		t.Fatalf("import %s: %v", kind, err)
	}
}

func TestVerifyExactMatch(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0030", "2024-06-10", "5000"),
		Actor:   "alice",
	})
	importRecords(t, env, domain.SourceBankStatement, domain.SourceRecord{
		Kind: domain.SourceBankStatement, Company: "SALAM",
		Reference: " SAL-2024-0030 ", Amount: "5000.00", Date: "2024-06-10",
	})

	v, err := env.Engine.Verify(env.Ctx, "SAL-2024-0030")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !v.Matched || len(v.Matches) != 1 || v.RequiresApproval || len(v.Warnings) != 0 {
		t.Fatalf("verification = %+v", v)
	}
	if v.Matches[0].Source != domain.SourceBankStatement {
		t.Fatalf("match source = %s", v.Matches[0].Source)
	}
}

func TestVerifyToleranceBoundary(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0031", "2024-06-10", "20000"),
		Actor:   "alice",
	})
	// 20150 is within 1% of itself vs 20000; 20300 is not.
	importRecords(t, env, domain.SourceBankStatement,
		domain.SourceRecord{Kind: domain.SourceBankStatement, Company: "SALAM", Reference: "SAL-2024-0031", Amount: "20150", Date: "2024-06-10"},
		domain.SourceRecord{Kind: domain.SourceBankStatement, Company: "SALAM", Reference: "SAL-2024-0031", Amount: "20300", Date: "2024-06-10"},
	)

	v, err := env.Engine.Verify(env.Ctx, "SAL-2024-0031")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(v.Matches) != 1 || v.Matches[0].Record.Amount != "20150" {
		t.Fatalf("matches = %+v", v.Matches)
	}
}

func TestVerifySmallAmountMustBeExact(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0032", "2024-06-10", "1000"),
		Actor:   "alice",
	})
	importRecords(t, env, domain.SourceBankStatement, domain.SourceRecord{
		Kind: domain.SourceBankStatement, Company: "SALAM",
		Reference: "SAL-2024-0032", Amount: "1001", Date: "2024-06-10",
	})
	v, err := env.Engine.Verify(env.Ctx, "SAL-2024-0032")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Matched {
		t.Fatalf("1001 must not match 1000 below the tolerance threshold")
	}
}

func TestVerifyOldPaymentLogsException(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0033", "2024-05-20", "5000"),
		Actor:   "alice", CNPApproved: true, OverrideReason: "late batch",
	})
	importRecords(t, env, domain.SourceBankStatement, domain.SourceRecord{
		Kind: domain.SourceBankStatement, Company: "SALAM",
		Reference: "SAL-2024-0033", Amount: "5000", Date: "2024-05-20",
	})
	// No CNP import at all.

	v, err := env.Engine.Verify(env.Ctx, "SAL-2024-0033")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !v.RequiresApproval {
		t.Fatalf("old payment missing from CNP must require approval: %+v", v)
	}
	if len(v.Warnings) != 1 || v.Warnings[0] != "Payment not found in CNP file" {
		t.Fatalf("warnings = %v", v.Warnings)
	}

	open, err := env.Engine.OpenExceptions(env.Ctx, "SAL-2024-0033")
	if err != nil {
		t.Fatalf("open exceptions: %v", err)
	}
	if len(open) != 1 || open[0].Type != engine.ExceptionOldPayment {
		t.Fatalf("exceptions = %+v", open)
	}
	if open[0].Description != "Payment not found in CNP file" {
		t.Fatalf("description = %q", open[0].Description)
	}
}

func TestVerifyOldPaymentMissingBothSources(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0034", "2024-05-20", "5000"),
		Actor:   "alice", CNPApproved: true, OverrideReason: "late batch",
	})
	v, err := env.Engine.Verify(env.Ctx, "SAL-2024-0034")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(v.Warnings) != 2 {
		t.Fatalf("warnings = %v", v.Warnings)
	}
	open, _ := env.Engine.OpenExceptions(env.Ctx, "SAL-2024-0034")
	if len(open) != 1 {
		t.Fatalf("exceptions = %+v", open)
	}
	if open[0].Description != "Payment not found in CNP file; Payment not found in Bank Statement" {
		t.Fatalf("description = %q", open[0].Description)
	}
}

func TestResolveExceptionIdempotent(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.LogException(env.Ctx, "SAL-2024-0040", engine.ExceptionOldPayment, "missing"); err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := env.Engine.LogException(env.Ctx, "SAL-2024-0040", engine.ExceptionOldPayment, "still missing"); err != nil {
		t.Fatalf("log: %v", err)
	}

	resolved, err := env.Engine.ResolveException(env.Ctx, "SAL-2024-0040", "confirmed with bank", "alice")
	if err != nil || !resolved {
		t.Fatalf("resolve = %v, %v", resolved, err)
	}
	open, _ := env.Engine.OpenExceptions(env.Ctx, "SAL-2024-0040")
	if len(open) != 0 {
		t.Fatalf("still open: %+v", open)
	}

	resolved, err = env.Engine.ResolveException(env.Ctx, "SAL-2024-0040", "again", "alice")
	if err != nil || resolved {
		t.Fatalf("second resolve = %v, %v (want false, nil)", resolved, err)
	}
}

func TestTaskReviewLifecycle(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Description: "Reconcile May statements",
		Owner:       "alice",
		Deadline:    "2024-06-30",
		Actor:       "alice",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != domain.TaskNotStarted || task.Priority != domain.PriorityMedium {
		t.Fatalf("task = %+v", task)
	}

	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, task.ID, domain.TaskInProgress, "alice", ""); err != nil {
		t.Fatalf("owner start: %v", err)
	}
	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, task.ID, domain.TaskSubmitted, "alice", ""); err != nil {
		t.Fatalf("owner submit: %v", err)
	}

	// Nobody is reviewer yet, so review pickup must fail.
	_, err = env.Engine.UpdateTaskStatus(env.Ctx, task.ID, domain.TaskUnderReview, "bob", "")
	var te engine.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("non-reviewer pickup: got %v", err)
	}

	if _, err := env.Engine.AssignReviewer(env.Ctx, task.ID, "bob", "alice"); err != nil {
		t.Fatalf("assign reviewer: %v", err)
	}
	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, task.ID, domain.TaskUnderReview, "bob", ""); err != nil {
		t.Fatalf("reviewer pickup: %v", err)
	}
	task, err = env.Engine.UpdateTaskStatus(env.Ctx, task.ID, domain.TaskReturned, "bob", "missing the MVNO column")
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if len(task.Feedback) != 1 || task.Feedback[0].User != "bob" {
		t.Fatalf("feedback = %+v", task.Feedback)
	}

	// Owner may not complete their own work.
	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, task.ID, domain.TaskCompleted, "alice", ""); err == nil {
		t.Fatalf("owner completing own task must fail")
	}

	for _, step := range []struct{ status, user string }{
		{domain.TaskInProgress, "alice"},
		{domain.TaskSubmitted, "alice"},
		{domain.TaskUnderReview, "bob"},
		{domain.TaskCompleted, "bob"},
	} {
		if _, err := env.Engine.UpdateTaskStatus(env.Ctx, task.ID, step.status, step.user, ""); err != nil {
			t.Fatalf("%s by %s: %v", step.status, step.user, err)
		}
	}
}

// submitTask creates a task, assigns the reviewer and walks it to
// SUBMITTED.
func submitTask(t *testing.T, env testEnv, owner, reviewer string) string {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Description: "Check June clearing totals",
		Owner:       owner,
		Deadline:    "2024-06-30",
		Actor:       owner,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.Engine.AssignReviewer(env.Ctx, task.ID, reviewer, owner); err != nil {
		t.Fatalf("assign reviewer: %v", err)
	}
	for _, status := range []string{domain.TaskInProgress, domain.TaskSubmitted} {
		if _, err := env.Engine.UpdateTaskStatus(env.Ctx, task.ID, status, owner, ""); err != nil {
			t.Fatalf("%s: %v", status, err)
		}
	}
	return task.ID
}

func TestReviewerActsDirectlyOnSubmitted(t *testing.T) {
	env := newTestEnv(t)

	// Accepting a submission does not require opening a formal review.
	id := submitTask(t, env, "alice", "bob")
	task, err := env.Engine.UpdateTaskStatus(env.Ctx, id, domain.TaskCompleted, "bob", "")
	if err != nil {
		t.Fatalf("direct completion: %v", err)
	}
	if task.Status != domain.TaskCompleted {
		t.Fatalf("status = %s, want COMPLETED", task.Status)
	}

	// Neither does sending it straight back.
	id = submitTask(t, env, "alice", "bob")
	task, err = env.Engine.UpdateTaskStatus(env.Ctx, id, domain.TaskReturned, "bob", "wrong month")
	if err != nil {
		t.Fatalf("direct return: %v", err)
	}
	if task.Status != domain.TaskReturned || len(task.Feedback) != 1 {
		t.Fatalf("task = %+v", task)
	}

	// The owner still cannot decide on their own submission.
	id = submitTask(t, env, "alice", "bob")
	_, err = env.Engine.UpdateTaskStatus(env.Ctx, id, domain.TaskCompleted, "alice", "")
	var te engine.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("owner deciding own submission: got %v, want TransitionError", err)
	}
}

func TestAssignReviewerIsUnconditional(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Description: "Spot-check April exceptions",
		Owner:       "alice",
		Deadline:    "2024-06-30",
		Actor:       "alice",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Owner as own reviewer is accepted; keeping the pairing sensible is
	// the caller's job.
	task, err = env.Engine.AssignReviewer(env.Ctx, task.ID, "alice", "alice")
	if err != nil {
		t.Fatalf("self assignment: %v", err)
	}
	if task.Reviewer == nil || *task.Reviewer != "alice" {
		t.Fatalf("reviewer = %v", task.Reviewer)
	}

	// Reassignment overwrites.
	task, err = env.Engine.AssignReviewer(env.Ctx, task.ID, "bob", "alice")
	if err != nil {
		t.Fatalf("reassignment: %v", err)
	}
	if task.Reviewer == nil || *task.Reviewer != "bob" {
		t.Fatalf("reviewer = %v", task.Reviewer)
	}
}

func TestTaskArchivePermissions(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Description: "Chase missing CNP export",
		Owner:       "alice",
		Deadline:    "2024-06-30",
		Priority:    domain.PriorityHigh,
		Actor:       "alice",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.Engine.ArchiveTask(env.Ctx, task.ID, "carol")
	var fe engine.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("outsider archive: got %v, want ForbiddenError", err)
	}

	archived, err := env.Engine.ArchiveTask(env.Ctx, task.ID, "admin")
	if err != nil || !archived.Archived || archived.ArchivedAt == nil {
		t.Fatalf("admin archive = %+v err = %v", archived, err)
	}

	// Archiving again is a no-op; status changes are refused.
	if _, err := env.Engine.ArchiveTask(env.Ctx, task.ID, "alice"); err != nil {
		t.Fatalf("re-archive: %v", err)
	}
	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, task.ID, domain.TaskInProgress, "alice", ""); err == nil {
		t.Fatalf("archived task accepted a status change")
	}

	def := false
	visible, err := env.Engine.Repo.ListTasks(env.Ctx, repo.TaskFilters{Archived: &def})
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 0 {
		t.Fatalf("archived task still listed: %+v", visible)
	}
}

func TestImportSourceCSV(t *testing.T) {
	env := newTestEnv(t)
	csvBody := "reference,amount,date,status\nSAL-2024-0050,5000,2024-06-01,Settled\nSAL-2024-0051,750.25,2024-06-02,\n"
	n, err := env.Engine.ImportSourceCSV(env.Ctx, domain.SourceBankStatement, "salam", strings.NewReader(csvBody))
	if err != nil || n != 2 {
		t.Fatalf("import = %d, %v", n, err)
	}

	records, err := env.Engine.Repo.SourceRecordsByReference(env.Ctx, domain.SourceBankStatement, "SALAM", "SAL-2024-0050")
	if err != nil || len(records) != 1 {
		t.Fatalf("records = %+v err = %v", records, err)
	}
	if records[0].Status != "Settled" {
		t.Fatalf("status = %q", records[0].Status)
	}

	// Re-import replaces, never appends.
	n, err = env.Engine.ImportSourceCSV(env.Ctx, domain.SourceBankStatement, "SALAM", strings.NewReader("reference,amount,date\nSAL-2024-0052,10,2024-06-03\n"))
	if err != nil || n != 1 {
		t.Fatalf("re-import = %d, %v", n, err)
	}
	all, _ := env.Engine.Repo.ListSourceRecords(env.Ctx, repo.SourceFilters{Kind: domain.SourceBankStatement})
	if len(all) != 1 {
		t.Fatalf("after re-import: %+v", all)
	}

	_, err = env.Engine.ImportSourceCSV(env.Ctx, domain.SourceBankStatement, "SALAM", strings.NewReader("reference,amount\nX,1\n"))
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("missing date column: got %v", err)
	}
	_, err = env.Engine.ImportSourceCSV(env.Ctx, "ledger", "SALAM", strings.NewReader("reference,amount,date\n"))
	if !errors.As(err, &ve) {
		t.Fatalf("bad kind: got %v", err)
	}
}

func TestAuditRowsUseEngineClock(t *testing.T) {
	env := newTestEnv(t)
	mustCreate(t, env, engine.PaymentCreateOptions{
		Payment: testPayment("SAL-2024-0070", "2024-06-10", "5000"),
		Actor:   "alice",
	})
	entries, err := env.Engine.Repo.ListAuditEntries(env.Ctx, repo.AuditFilters{Reference: "SAL-2024-0070"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("no audit entries written")
	}
	want := "2024-06-15T12:00:00Z"
	for _, entry := range entries {
		if entry.Timestamp != want {
			t.Fatalf("audit timestamp = %s, want %s", entry.Timestamp, want)
		}
	}
}
