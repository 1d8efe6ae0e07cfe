// Package engine orchestrates the request flow: it receives delivery
// notifications, validates inbound messages against the flow table, executes
// transitions and records the step history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fizzycl/partsflow/internal/catalog"
	"github.com/fizzycl/partsflow/internal/flow"
	"github.com/fizzycl/partsflow/internal/metrics"
	"github.com/fizzycl/partsflow/internal/models"
	"github.com/fizzycl/partsflow/internal/steps"
	"github.com/fizzycl/partsflow/internal/store"
	"github.com/fizzycl/partsflow/internal/util"
	"github.com/fizzycl/partsflow/internal/validation"
)

// DefaultStaleAfter is how long a conversation may sit idle before an
// inbound message cancels it instead of advancing it.
const DefaultStaleAfter = 3 * time.Hour

// Corrective hints sent when an inbound message fails validation.
const (
	hintSelectFromList = "Seleccione una opcion de la lista para continuar."
	hintSendText       = "Envie un mensaje de texto para continuar."
	hintSendDetail     = "Envie la descripcion como texto, puede adjuntar una imagen en el mismo mensaje."
	hintStartKeyword   = "Escribe 'hola' para iniciar la solicitud."
	hintInvalidVehicle = "El VIN ingresado no es valido, verifique y reintente."
)

// Executor runs flow transitions.
type Executor interface {
	Execute(ctx context.Context, state models.FlowState, tracker models.Tracker, content string, ev *models.Event) (steps.Result, error)
	RenderPage(ctx context.Context, state models.FlowState, tracker models.Tracker, page int, param string) (steps.Result, error)
}

// Sender delivers outbound messages.
type Sender interface {
	SendMessage(ctx context.Context, req models.MessageRequest) (models.StandardResponse, error)
}

// Bus publishes delivery notifications and reads cached inbound events.
type Bus interface {
	Publish(ctx context.Context, log models.MessageLog) error
	FetchEvent(ctx context.Context, phone, registerID string) (*models.Event, error)
}

// Opts holds engine configuration.
type Opts struct {
	StaleAfter time.Duration
	Now        func() time.Time
}

// Option configures an Engine.
type Option func(*Opts)

// WithStaleAfter overrides the idle threshold after which an inbound message
// cancels the conversation.
func WithStaleAfter(d time.Duration) Option {
	return func(o *Opts) { o.StaleAfter = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Engine is the conversation orchestrator.
type Engine struct {
	store      store.TrackerStore
	exec       Executor
	sender     Sender
	bus        Bus
	staleAfter time.Duration
	now        func() time.Time
}

// New creates an engine over its collaborators.
func New(ts store.TrackerStore, exec Executor, sender Sender, bus Bus, opts ...Option) *Engine {
	cfg := Opts{StaleAfter: DefaultStaleAfter, Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		store:      ts,
		exec:       exec,
		sender:     sender,
		bus:        bus,
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
	}
}

// Outgoing handles a delivery notification addressed to this engine. A
// notification from the whatsapp-manager starts a new conversation; one from
// the engine itself advances the automatic states of an existing one.
func (e *Engine) Outgoing(ctx context.Context, log models.MessageLog) (models.StandardResponse, error) {
	var resp models.StandardResponse

	switch log.OriginSystem {
	case models.SystemWhatsAppManager:
		if err := e.start(ctx, log, &resp); err != nil {
			metrics.Deliveries.WithLabelValues("outgoing", "error").Inc()
			resp.AddError(err.Error())
			return resp, err
		}
	case models.SystemPartsFlow:
		tracker, err := e.store.LatestTracker(log.PhoneNumber)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				err = models.ErrNoActiveConversation
			}
			metrics.Deliveries.WithLabelValues("outgoing", "error").Inc()
			resp.AddError(err.Error())
			return resp, err
		}
		if err := e.advance(ctx, tracker, log.RegisterID, &resp); err != nil {
			metrics.Deliveries.WithLabelValues("outgoing", "error").Inc()
			resp.AddError(err.Error())
			return resp, err
		}
	default:
		metrics.Deliveries.WithLabelValues("outgoing", "error").Inc()
		err := fmt.Errorf("%w: %s", models.ErrUnsupportedOrigin, log.OriginSystem)
		resp.AddError(err.Error())
		return resp, err
	}

	metrics.Deliveries.WithLabelValues("outgoing", "ok").Inc()
	return resp, nil
}

// Incoming handles a user message notification: it validates the message
// against the state the conversation would enter, executes the transition
// and then advances any automatic states behind it.
func (e *Engine) Incoming(ctx context.Context, log models.MessageLog) (models.StandardResponse, error) {
	var resp models.StandardResponse

	tracker, latest, err := e.current(log.PhoneNumber)
	if err != nil {
		metrics.Deliveries.WithLabelValues("incoming", "error").Inc()
		resp.AddError(err.Error())
		return resp, err
	}

	// Redelivery of an already handled message replays as a no-op.
	if latest.MessageReference != "" && latest.MessageReference == log.RegisterID {
		slog.Info("Engine.Incoming: duplicate delivery ignored", "phone", log.PhoneNumber, "register_id", log.RegisterID)
		metrics.Deliveries.WithLabelValues("incoming", "noop").Inc()
		return resp, nil
	}

	// Messages after completion or cancellation are ignored; a new
	// conversation starts from the main menu.
	if latest.Status.Terminal() {
		slog.Info("Engine.Incoming: conversation already finished", "phone", log.PhoneNumber, "status", latest.Status)
		metrics.Deliveries.WithLabelValues("incoming", "noop").Inc()
		return resp, nil
	}

	if e.stale(latest) {
		if err := e.cancel(ctx, tracker, log.RegisterID, &resp); err != nil {
			metrics.Deliveries.WithLabelValues("incoming", "error").Inc()
			resp.AddError(err.Error())
			return resp, err
		}
		metrics.Deliveries.WithLabelValues("incoming", "ok").Inc()
		return resp, nil
	}

	ev, err := e.bus.FetchEvent(ctx, log.PhoneNumber, log.RegisterID)
	if err != nil {
		metrics.Deliveries.WithLabelValues("incoming", "error").Inc()
		resp.AddError(err.Error())
		return resp, err
	}

	def, err := flow.DefinitionOf(latest.Status)
	if err != nil {
		metrics.Deliveries.WithLabelValues("incoming", "error").Inc()
		resp.AddError(err.Error())
		return resp, err
	}
	nextDef, err := flow.DefinitionOf(def.Successor)
	if err != nil {
		metrics.Deliveries.WithLabelValues("incoming", "error").Inc()
		resp.AddError(err.Error())
		return resp, err
	}

	content, err := validation.Validate(nextDef, ev)
	if err != nil {
		e.reject(ctx, tracker, err)
		metrics.Deliveries.WithLabelValues("incoming", "noop").Inc()
		return resp, nil
	}

	// Page navigation re-renders the current list without advancing.
	if page, param, ok := catalog.ParseNavChoice(content); ok && nextDef.RequiredInput == models.KindListSelection {
		res, err := e.exec.RenderPage(ctx, latest.Status, tracker, page, param)
		if err == nil {
			_, err = e.sender.SendMessage(ctx, res.Message)
		}
		if err != nil {
			metrics.Deliveries.WithLabelValues("incoming", "error").Inc()
			resp.AddError(err.Error())
			return resp, err
		}
		metrics.Deliveries.WithLabelValues("incoming", "ok").Inc()
		return resp, nil
	}

	if err := e.transition(ctx, tracker, nextDef.State, content, ev, log.RegisterID, &resp); err != nil {
		metrics.Deliveries.WithLabelValues("incoming", "error").Inc()
		resp.AddError(err.Error())
		return resp, err
	}

	if err := e.advance(ctx, tracker, log.RegisterID, &resp); err != nil {
		metrics.Deliveries.WithLabelValues("incoming", "error").Inc()
		resp.AddError(err.Error())
		return resp, err
	}

	metrics.Deliveries.WithLabelValues("incoming", "ok").Inc()
	return resp, nil
}

// start creates a tracker and enters FlowStarted.
func (e *Engine) start(ctx context.Context, log models.MessageLog, resp *models.StandardResponse) error {
	tracker := models.Tracker{
		ID:          util.NewID(),
		PhoneNumber: log.PhoneNumber,
		Timestamp:   e.now().UnixMilli(),
	}
	if err := e.store.CreateTracker(tracker); err != nil {
		return err
	}
	resp.AddReference(models.SystemPartsFlow, tracker.Reference())
	slog.Info("Engine.start: conversation started", "phone", log.PhoneNumber, "tracker_id", tracker.ID)

	return e.transition(ctx, tracker, models.FlowStarted, "", nil, log.RegisterID, resp)
}

// advance walks the automatic states behind the latest step: states whose
// definitions require no user input are entered immediately, stopping at the
// first state that awaits a reply or at a terminal state.
func (e *Engine) advance(ctx context.Context, tracker models.Tracker, registerID string, resp *models.StandardResponse) error {
	for {
		latest, err := e.store.LatestStep(tracker.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.ErrNoStepHistory
			}
			return err
		}
		if latest.Status.Terminal() {
			return nil
		}

		def, err := flow.DefinitionOf(latest.Status)
		if err != nil {
			return err
		}
		nextDef, err := flow.DefinitionOf(def.Successor)
		if err != nil {
			return err
		}
		if nextDef.RequiredInput != models.KindNone {
			return nil
		}

		if err := e.transition(ctx, tracker, nextDef.State, "", nil, registerID, resp); err != nil {
			return err
		}
	}
}

// transition enters a state: execute, send, then record. The step is only
// persisted once the user has seen the response.
func (e *Engine) transition(ctx context.Context, tracker models.Tracker, state models.FlowState, content string, ev *models.Event, registerID string, resp *models.StandardResponse) error {
	res, err := e.exec.Execute(ctx, state, tracker, content, ev)
	if err != nil {
		return err
	}

	sent, err := e.sender.SendMessage(ctx, res.Message)
	resp.References = append(resp.References, sent.References...)
	if err != nil {
		return fmt.Errorf("failed to send response for state %s: %w", state, err)
	}

	step := models.TrackerStep{
		ID:               util.NewID(),
		TrackerID:        tracker.ID,
		Timestamp:        e.now().UnixMilli(),
		Status:           state,
		Value:            content,
		AttachedFiles:    res.AttachedFile,
		MessageReference: registerID,
	}
	if err := e.store.AppendStep(step); err != nil {
		return err
	}
	resp.AddReference(models.SystemPartsFlow, step.Reference())
	metrics.StepsAppended.WithLabelValues(state.Status()).Inc()
	slog.Info("Engine.transition: step recorded", "phone", tracker.PhoneNumber, "status", state, "tracker_id", tracker.ID)

	e.notify(ctx, tracker, state)
	return nil
}

// cancel expires a stale conversation: the user is told to start over and a
// cancellation step closes the tracker.
func (e *Engine) cancel(ctx context.Context, tracker models.Tracker, registerID string, resp *models.StandardResponse) error {
	slog.Info("Engine.cancel: conversation expired", "phone", tracker.PhoneNumber, "tracker_id", tracker.ID)
	return e.transition(ctx, tracker, models.RequestCancelled, "", nil, registerID, resp)
}

// reject sends a corrective hint for a message that failed validation. The
// conversation state does not move.
func (e *Engine) reject(ctx context.Context, tracker models.Tracker, cause error) {
	metrics.ValidationFailures.WithLabelValues(validationFailureKind(cause)).Inc()

	hint := hintFor(cause)
	if hint == "" {
		slog.Warn("Engine.reject: message dropped", "phone", tracker.PhoneNumber, "error", cause)
		return
	}

	req := models.MessageRequest{
		SystemID:    models.PartsFlowSystemID,
		To:          []string{tracker.PhoneNumber},
		MessageType: models.MessageTypeText,
		Content:     models.MessageContent{Body: hint},
	}
	if _, err := e.sender.SendMessage(ctx, req); err != nil {
		slog.Error("Engine.reject: failed to send hint", "error", err, "phone", tracker.PhoneNumber)
	}
	slog.Info("Engine.reject: message rejected", "phone", tracker.PhoneNumber, "error", cause)
}

// notify publishes a delivery notification for a recorded step. RequestAccepted
// additionally notifies the part classification system of the finished
// request. Publish failures do not fail the transition.
func (e *Engine) notify(ctx context.Context, tracker models.Tracker, state models.FlowState) {
	log := models.MessageLog{
		Timestamp:          strconv.FormatInt(e.now().UnixMilli(), 10),
		DestinationSystems: []string{models.SystemWhatsAppManager},
		OriginSystem:       models.SystemPartsFlow,
		PhoneNumber:        tracker.PhoneNumber,
		Origin:             models.OriginOutgoing,
		RegisterID:         tracker.Reference(),
	}
	if state == models.RequestAccepted {
		log.DestinationSystems = append(log.DestinationSystems, models.SystemPartClassification)
	}
	if err := e.bus.Publish(ctx, log); err != nil {
		slog.Warn("Engine.notify: publish failed", "error", err, "phone", tracker.PhoneNumber, "status", state)
	}
}

// current resolves the active tracker and its latest step.
func (e *Engine) current(phone string) (models.Tracker, models.TrackerStep, error) {
	tracker, err := e.store.LatestTracker(phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Tracker{}, models.TrackerStep{}, models.ErrNoActiveConversation
		}
		return models.Tracker{}, models.TrackerStep{}, err
	}
	latest, err := e.store.LatestStep(tracker.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Tracker{}, models.TrackerStep{}, models.ErrNoStepHistory
		}
		return models.Tracker{}, models.TrackerStep{}, err
	}
	return tracker, latest, nil
}

func (e *Engine) stale(latest models.TrackerStep) bool {
	age := e.now().Sub(time.UnixMilli(latest.Timestamp))
	return age > e.staleAfter
}

func hintFor(cause error) string {
	if errors.Is(cause, validation.ErrInvalidVehicleID) {
		return hintInvalidVehicle
	}
	var kind *validation.KindMismatchError
	if errors.As(cause, &kind) {
		switch kind.Want {
		case models.KindListSelection, models.KindButtonSelection:
			return hintSelectFromList
		case models.KindPlainTextAndImage:
			return hintSendDetail
		default:
			return hintSendText
		}
	}
	var rule *validation.RuleMismatchError
	if errors.As(cause, &rule) {
		return hintStartKeyword
	}
	return ""
}

func validationFailureKind(cause error) string {
	switch {
	case errors.Is(cause, validation.ErrInvalidVehicleID):
		return "vehicle_id"
	case errors.As(cause, new(*validation.KindMismatchError)):
		return "kind"
	case errors.As(cause, new(*validation.RuleMismatchError)):
		return "rule"
	default:
		return "other"
	}
}
