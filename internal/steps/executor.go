// Package steps executes flow transitions: given the state a conversation is
// entering, it builds the outbound response and runs the state's side
// effects.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fizzycl/partsflow/internal/flow"
	"github.com/fizzycl/partsflow/internal/models"
	"github.com/fizzycl/partsflow/internal/session"
)

// PriorSteps looks up earlier answers of the same tracker.
type PriorSteps interface {
	StepByState(trackerID string, state models.FlowState) (models.TrackerStep, error)
}

// Catalogs renders pages of the external selection catalogs.
type Catalogs interface {
	Page(ctx context.Context, key string, n int, param string) ([]models.Choice, error)
}

// Modes reads and resets the conversation mode of a phone number.
type Modes interface {
	Get(ctx context.Context, phone string) (int, error)
	Reset(ctx context.Context, phone string) error
}

// Uploader stores an attached media object and returns its stored key.
type Uploader interface {
	Upload(ctx context.Context, mediaID string) (string, error)
}

// MissingPriorAnswerError reports a state whose rendering depends on an
// earlier step that was never recorded.
type MissingPriorAnswerError struct {
	State models.FlowState
	Want  models.FlowState
}

func (e *MissingPriorAnswerError) Error() string {
	return fmt.Sprintf("state %s requires a prior %s step", e.State, e.Want)
}

// Result is the outcome of executing one transition.
type Result struct {
	// Message is the outbound response, addressed to the tracker's phone
	// number.
	Message models.MessageRequest
	// Persist reports whether a step should be recorded for this
	// transition. Page navigation re-renders without advancing.
	Persist bool
	// AttachedFile is the stored key of an uploaded attachment, when the
	// transition carried one.
	AttachedFile string
}

// Executor builds responses and runs side effects for flow transitions.
type Executor struct {
	prior    PriorSteps
	catalogs Catalogs
	modes    Modes
	uploader Uploader
}

// NewExecutor creates an executor over its collaborators.
func NewExecutor(prior PriorSteps, catalogs Catalogs, modes Modes, uploader Uploader) *Executor {
	return &Executor{prior: prior, catalogs: catalogs, modes: modes, uploader: uploader}
}

// Execute enters a state: it renders the state's response with the captured
// content and runs the state's side effects. The result always persists.
func (e *Executor) Execute(ctx context.Context, state models.FlowState, tracker models.Tracker, content string, ev *models.Event) (Result, error) {
	res, err := e.render(ctx, state, tracker, content, 1)
	if err != nil {
		return Result{}, err
	}

	switch state {
	case models.PartDescriptionProvided:
		res.AttachedFile = e.uploadAttachment(ctx, ev)
	case models.RequestAccepted:
		e.resetMode(ctx, tracker.PhoneNumber)
	}
	return res, nil
}

// resetMode hands the phone number back to the manager's main menu. A number
// already on the menu is left untouched; failures are logged and ignored.
func (e *Executor) resetMode(ctx context.Context, phone string) {
	mode, err := e.modes.Get(ctx, phone)
	if err != nil {
		slog.Warn("Executor.resetMode: mode lookup failed", "error", err, "phone", phone)
	} else if mode == session.DefaultMode {
		return
	}
	if err := e.modes.Reset(ctx, phone); err != nil {
		slog.Warn("Executor.resetMode: mode reset failed", "error", err, "phone", phone)
	}
}

// RenderPage re-renders a list state at the requested page. The result does
// not persist: navigation never advances the conversation.
func (e *Executor) RenderPage(ctx context.Context, state models.FlowState, tracker models.Tracker, page int, param string) (Result, error) {
	def, err := flow.DefinitionOf(state)
	if err != nil {
		return Result{}, err
	}
	if def.Data == nil {
		return Result{}, fmt.Errorf("state %s has no catalog to paginate", state)
	}

	msg := def.Response.Clone()
	msg.To = []string{tracker.PhoneNumber}
	choices, err := e.catalogs.Page(ctx, def.Data.Catalog, page, param)
	if err != nil {
		return Result{}, err
	}
	msg.Content.List.Choices = choices

	slog.Debug("Executor.RenderPage: catalog page rendered", "state", state, "page", page, "param", param)
	return Result{Message: msg, Persist: false}, nil
}

// render builds the response of a state, filling the body placeholder and
// the first catalog page for list states.
func (e *Executor) render(ctx context.Context, state models.FlowState, tracker models.Tracker, content string, page int) (Result, error) {
	def, err := flow.DefinitionOf(state)
	if err != nil {
		return Result{}, err
	}

	msg := def.Response.Clone()
	msg.To = []string{tracker.PhoneNumber}
	msg.Content.Body = strings.ReplaceAll(msg.Content.Body, flow.BodyPlaceholder, DisplayValue(content))

	if def.Data != nil {
		param := ""
		if def.Data.ParamSourceState.Valid() {
			prior, err := e.prior.StepByState(tracker.ID, def.Data.ParamSourceState)
			if err != nil {
				return Result{}, &MissingPriorAnswerError{State: state, Want: def.Data.ParamSourceState}
			}
			param = ChoiceValue(prior.Value)
		}
		choices, err := e.catalogs.Page(ctx, def.Data.Catalog, page, param)
		if err != nil {
			return Result{}, err
		}
		msg.Content.List.Choices = choices
	}

	return Result{Message: msg, Persist: true}, nil
}

// uploadAttachment stores the image of the triggering message, if any.
// Upload failures are not fatal: the request proceeds without the file.
func (e *Executor) uploadAttachment(ctx context.Context, ev *models.Event) string {
	if ev == nil {
		return ""
	}
	msg, err := ev.FirstMessage()
	if err != nil || msg.Image == nil {
		return ""
	}

	key, err := e.uploader.Upload(ctx, msg.Image.ID)
	if err != nil {
		slog.Warn("Executor.uploadAttachment: media upload failed", "error", err, "media_id", msg.Image.ID)
		return ""
	}
	return key
}

// ChoiceValue strips the "-id" suffix of a selection id: "toyota-id"
// becomes "toyota".
func ChoiceValue(selection string) string {
	return strings.TrimSuffix(selection, "-id")
}

// DisplayValue renders a captured value for message templates: selection ids
// lose their suffix and are capitalized.
func DisplayValue(content string) string {
	v := ChoiceValue(content)
	if v == "" {
		return v
	}
	return strings.ToUpper(v[:1]) + v[1:]
}
