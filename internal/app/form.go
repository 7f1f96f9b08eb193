// Package app holds the interactive pieces that sit between the user and
// the API client: the submission form state machine and the notification
// presenter.
package app

import (
	"context"
	"errors"
	"sync"

	"github.com/ebisaa944/ExpenseTracker/internal/client"
	"github.com/ebisaa944/ExpenseTracker/internal/core"
	"github.com/ebisaa944/ExpenseTracker/internal/log"
)

// FormState tracks where the form is in its submission lifecycle.
type FormState int

const (
	StateIdle FormState = iota
	StateSubmitting
	StateErrorShown
)

func (s FormState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateErrorShown:
		return "error"
	default:
		return "unknown"
	}
}

// ErrSubmitInFlight is returned when Submit is called while an earlier
// submission is still running. The form is single-flight.
var ErrSubmitInFlight = errors.New("a submission is already in progress")

// Submitter is the part of the API client the form needs.
type Submitter interface {
	Create(ctx context.Context, draft core.Draft) (core.Transaction, error)
}

// FormController drives the transaction entry form. Entered values survive
// a failed submission so the user can correct them in place; a successful
// one resets the form to its defaults with today's date.
type FormController struct {
	mu          sync.Mutex
	state       FormState
	values      core.Draft
	fieldErrors map[string][]string
	message     string
	submitter   Submitter
	notifier    *NotificationPresenter
	logger      *log.Logger
	today       func() core.Date
}

// FormOption customizes a FormController.
type FormOption func(*FormController)

// WithFormLogger replaces the default logger.
func WithFormLogger(logger *log.Logger) FormOption {
	return func(f *FormController) { f.logger = logger.WithComponent(log.ComponentForm) }
}

// WithNotifier attaches a presenter that announces submission outcomes.
func WithNotifier(notifier *NotificationPresenter) FormOption {
	return func(f *FormController) { f.notifier = notifier }
}

// withToday overrides the clock. Test hook.
func withToday(today func() core.Date) FormOption {
	return func(f *FormController) { f.today = today }
}

// NewFormController creates an idle form with default values.
func NewFormController(submitter Submitter, opts ...FormOption) *FormController {
	f := &FormController{
		submitter: submitter,
		logger:    log.New(log.Config{Component: log.ComponentForm}),
		today:     core.Today,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.values = f.defaults()
	return f
}

func (f *FormController) defaults() core.Draft {
	return core.Draft{
		Type: core.Expense,
		Date: f.today(),
	}
}

// State returns the current lifecycle state.
func (f *FormController) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Values returns the currently entered draft.
func (f *FormController) Values() core.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

// FieldErrors returns the per-field messages from the last failed
// submission, if any.
func (f *FormController) FieldErrors() map[string][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fieldErrors
}

// Message returns the banner message from the last failure.
func (f *FormController) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// SetValues replaces the entered draft. Editing after a failure clears the
// shown error and returns the form to idle.
func (f *FormController) SetValues(draft core.Draft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateSubmitting {
		return
	}
	f.values = draft
	f.state = StateIdle
	f.fieldErrors = nil
	f.message = ""
}

// Reset returns the form to defaults and idle.
func (f *FormController) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateSubmitting {
		return
	}
	f.values = f.defaults()
	f.state = StateIdle
	f.fieldErrors = nil
	f.message = ""
}

// Submit validates the draft and sends it. A local validation failure keeps
// the form in Idle with the entered values intact and never reaches the
// network; only a rejected or failed submission moves to ErrorShown. A
// second Submit while one is running fails with ErrSubmitInFlight.
func (f *FormController) Submit(ctx context.Context) (core.Transaction, error) {
	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return core.Transaction{}, ErrSubmitInFlight
	}
	draft := f.values
	if err := draft.Validate(); err != nil {
		f.state = StateIdle
		f.message = err.Error()
		f.fieldErrors = nil
		f.mu.Unlock()
		f.notifyError(err.Error())
		f.logger.InfoContext(ctx, "Draft rejected locally",
			log.FieldOperation, log.OpValidate, log.FieldError, err)
		return core.Transaction{}, err
	}
	f.state = StateSubmitting
	f.fieldErrors = nil
	f.message = ""
	f.mu.Unlock()

	created, err := f.submitter.Create(ctx, draft)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateErrorShown
		var valErr *client.ValidationError
		if errors.As(err, &valErr) {
			f.fieldErrors = valErr.Fields
		}
		f.message = err.Error()
		f.notifyError(err.Error())
		f.logger.WarnContext(ctx, "Submission failed",
			log.FieldOperation, log.OpCreate, log.FieldError, err)
		return core.Transaction{}, err
	}

	f.state = StateIdle
	f.values = f.defaults()
	f.notifySuccess("Transaction added: " + created.Title)
	f.logger.InfoContext(ctx, "Submission accepted",
		log.FieldTransactionID, created.ID, log.FieldTitle, created.Title)
	return created, nil
}

func (f *FormController) notifyError(message string) {
	if f.notifier != nil {
		f.notifier.Error(message)
	}
}

func (f *FormController) notifySuccess(message string) {
	if f.notifier != nil {
		f.notifier.Success(message)
	}
}
