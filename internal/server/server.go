package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"payline/internal/domain"
	"payline/internal/engine"
	"payline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"amount exceeds maximum limit"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Payline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Payline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerPayments(group, cfg.Engine)
	registerSources(group, cfg.Engine)
	registerExceptions(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerAudit(group, cfg.Engine)
	registerMe(group)
	registerDevAuth(group, cfg.Engine, cfg.Auth)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
	}
	var te engine.TransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"from": te.From, "to": te.To})
	}
	var fe engine.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerPayments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-payment",
		Method:        http.MethodPost,
		Path:          "/payments",
		Summary:       "Record a payment",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Payment        domain.Payment `json:"payment"`
			CNPApproved    bool           `json:"cnp_approved,omitempty"`
			OverrideReason string         `json:"override_reason,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.Payment `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreatePayment(ctx, engine.PaymentCreateOptions{
			Payment:        input.Body.Payment,
			Actor:          user,
			CNPApproved:    input.Body.CNPApproved,
			OverrideReason: input.Body.OverrideReason,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Payment `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-payments",
		Method:      http.MethodGet,
		Path:        "/payments",
		Summary:     "List payments",
	}, func(ctx context.Context, input *struct {
		Company string `query:"company"`
		Status  string `query:"status"`
		Limit   int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Payment `json:"body"`
	}, error) {
		items, err := e.Repo.ListPayments(ctx, repo.PaymentFilters{
			Company: strings.ToUpper(strings.TrimSpace(input.Company)),
			Status:  input.Status,
			Limit:   input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Payment{}
		}
		return &struct {
			Body []domain.Payment `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-payment",
		Method:      http.MethodGet,
		Path:        "/payments/{reference}",
		Summary:     "Get payment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Reference string `path:"reference"`
	}) (*struct {
		Body domain.Payment `json:"body"`
	}, error) {
		p, err := e.Repo.GetPayment(ctx, input.Reference)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Payment `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-payment",
		Method:      http.MethodPost,
		Path:        "/payments/{reference}/verify",
		Summary:     "Verify payment against imported sources",
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Reference string `path:"reference"`
	}) (*struct {
		Body domain.Verification `json:"body"`
	}, error) {
		v, err := e.Verify(ctx, input.Reference)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Verification `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-payment-status",
		Method:      http.MethodPatch,
		Path:        "/payments/{reference}/status",
		Summary:     "Update payment status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Reference string `path:"reference"`
		Force     bool   `query:"force"`
		Body      struct {
			Status string `json:"status"`
			Reason string `json:"reason,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.StatusEntry `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Status == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "status is required", nil)
		}
		if input.Force && !isAdmin(ctx, e) {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "force requires admin", nil)
		}
		if err := e.UpdateStatus(ctx, input.Reference, input.Body.Status, input.Body.Reason, user, input.Force); err != nil {
			return nil, handleError(err)
		}
		entry, err := e.GetStatus(ctx, input.Reference)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.StatusEntry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "payment-status-history",
		Method:      http.MethodGet,
		Path:        "/payments/{reference}/history",
		Summary:     "Payment status history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Reference string `path:"reference"`
	}) (*struct {
		Body []domain.StatusEntry `json:"body"`
	}, error) {
		if _, err := e.Repo.GetPayment(ctx, input.Reference); err != nil {
			return nil, handleError(err)
		}
		items, err := e.StatusHistory(ctx, input.Reference)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.StatusEntry{}
		}
		return &struct {
			Body []domain.StatusEntry `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "payment-summary",
		Method:      http.MethodGet,
		Path:        "/payments/summary",
		Summary:     "Payment counts by status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		counts, err := e.PaymentsByStatus(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: counts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-statuses",
		Method:      http.MethodPost,
		Path:        "/payments/refresh",
		Summary:     "Initialize missing payment statuses",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.RefreshSummary `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		summary, err := e.RefreshStatuses(ctx, user)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RefreshSummary `json:"body"`
		}{Body: summary}, nil
	})
}

func registerSources(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "import-source",
		Method:      http.MethodPut,
		Path:        "/sources/{kind}/{company}",
		Summary:     "Import a verification export (CSV)",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Kind    string `path:"kind" enum:"bank_statement,cnp"`
		Company string `path:"company"`
		RawBody []byte `contentType:"text/csv"`
	}) (*struct {
		Body struct {
			Imported int `json:"imported"`
		} `json:"body"`
	}, error) {
		if _, authErr := userFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if len(input.RawBody) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "csv body required", nil)
		}
		n, err := e.ImportSourceCSV(ctx, input.Kind, input.Company, bytes.NewReader(input.RawBody))
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Imported int `json:"imported"`
			} `json:"body"`
		}{}
		out.Body.Imported = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-source-records",
		Method:      http.MethodGet,
		Path:        "/sources",
		Summary:     "List imported source records",
	}, func(ctx context.Context, input *struct {
		Kind    string `query:"kind"`
		Company string `query:"company"`
		Limit   int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.SourceRecord `json:"body"`
	}, error) {
		items, err := e.Repo.ListSourceRecords(ctx, repo.SourceFilters{
			Kind:    input.Kind,
			Company: strings.ToUpper(strings.TrimSpace(input.Company)),
			Limit:   input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.SourceRecord{}
		}
		return &struct {
			Body []domain.SourceRecord `json:"body"`
		}{Body: items}, nil
	})
}

func registerExceptions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-exceptions",
		Method:      http.MethodGet,
		Path:        "/exceptions",
		Summary:     "List exception ledger records",
	}, func(ctx context.Context, input *struct {
		Reference string `query:"reference"`
		Status    string `query:"status"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.ExceptionRecord `json:"body"`
	}, error) {
		items, err := e.Repo.ListExceptions(ctx, repo.ExceptionFilters{
			Reference: input.Reference,
			Status:    input.Status,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.ExceptionRecord{}
		}
		return &struct {
			Body []domain.ExceptionRecord `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-exceptions",
		Method:      http.MethodPost,
		Path:        "/exceptions/{reference}/resolve",
		Summary:     "Resolve all open exceptions for a reference",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Reference string `path:"reference"`
		Body      struct {
			Resolution string `json:"resolution"`
		} `json:"body"`
	}) (*struct {
		Body struct {
			Resolved bool `json:"resolved"`
		} `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.Resolution) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "resolution is required", nil)
		}
		resolved, err := e.ResolveException(ctx, input.Reference, input.Body.Resolution, user)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Resolved bool `json:"resolved"`
			} `json:"body"`
		}{}
		out.Body.Resolved = resolved
		return out, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create review task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Description string `json:"description"`
			Owner       string `json:"owner"`
			Deadline    string `json:"deadline" format:"date"`
			Priority    string `json:"priority,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Description: input.Body.Description,
			Owner:       input.Body.Owner,
			Deadline:    input.Body.Deadline,
			Priority:    input.Body.Priority,
			Actor:       user,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		Owner    string `query:"owner"`
		Reviewer string `query:"reviewer"`
		Status   string `query:"status"`
		Archived bool   `query:"archived" default:"false"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		archived := input.Archived
		items, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			Owner:    input.Owner,
			Reviewer: input.Reviewer,
			Status:   input.Status,
			Archived: &archived,
			Limit:    input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Task{}
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task-status",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/status",
		Summary:     "Move task through review lifecycle",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Status   string `json:"status"`
			Feedback string `json:"feedback,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Status == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "status is required", nil)
		}
		t, err := e.UpdateTaskStatus(ctx, input.ID, input.Body.Status, user, input.Body.Feedback)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-reviewer",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/reviewer",
		Summary:     "Assign task reviewer",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Reviewer string `json:"reviewer"`
		} `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AssignReviewer(ctx, input.ID, input.Body.Reviewer, user)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-task-feedback",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/feedback",
		Summary:     "Add task feedback",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Message string `json:"message"`
		} `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AddFeedback(ctx, input.ID, user, input.Body.Message)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/archive",
		Summary:     "Archive task",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.ArchiveTask(ctx, input.ID, user)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func registerAudit(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "List audit log entries",
	}, func(ctx context.Context, input *struct {
		Reference string `query:"reference"`
		Action    string `query:"action"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.AuditEntry `json:"body"`
	}, error) {
		items, err := e.Repo.ListAuditEntries(ctx, repo.AuditFilters{
			Reference: input.Reference,
			Action:    input.Action,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.AuditEntry{}
		}
		return &struct {
			Body []domain.AuditEntry `json:"body"`
		}{Body: items}, nil
	})
}

func registerMe(api huma.API) {
	type meResponse struct {
		User   string `json:"user"`
		Admin  bool   `json:"admin"`
		Source string `json:"source"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body meResponse `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body meResponse `json:"body"`
		}{Body: meResponse{User: p.User, Admin: p.Admin, Source: p.Source}}, nil
	})
}

func registerDevAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body struct {
			User string `json:"user"`
		} `json:"body"`
	}) (*struct {
		Body struct {
			Token string `json:"token"`
		} `json:"body"`
	}, error) {
		user := strings.TrimSpace(input.Body.User)
		if user == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, user, e.Config.IsAdmin(user))
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		out := &struct {
			Body struct {
				Token string `json:"token"`
			} `json:"body"`
		}{}
		out.Body.Token = token
		return out, nil
	})
}

func isAdmin(ctx context.Context, e engine.Engine) bool {
	p, ok := principalFromContext(ctx)
	if !ok {
		return false
	}
	return p.Admin || e.Config.IsAdmin(p.User)
}
