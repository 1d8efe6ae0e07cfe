// Package flow holds the static definition table of the parts-request
// conversation.
//
// Each FlowState maps to exactly one StepDefinition describing the input the
// state requires, the rule that gates it, the successor state, the response
// template sent on entry, and an optional catalog data source.
package flow

import (
	"regexp"

	"github.com/fizzycl/partsflow/internal/models"
)

// RuleKind selects the validation applied to the content that enters a state.
type RuleKind int

const (
	// RuleNone accepts any content.
	RuleNone RuleKind = iota
	// RulePattern requires the content to match a regular expression.
	RulePattern
	// RuleVehicleID requires a VIN with a valid check digit or a 6-character
	// license plate.
	RuleVehicleID
)

// Rule is the validation rule attached to a step definition.
type Rule struct {
	Kind    RuleKind
	Pattern *regexp.Regexp
}

// DataSource describes the catalog a list state renders. When
// ParamSourceState is set, the catalog key is parameterized by the captured
// value of that earlier step (e.g. the models of the selected brand).
type DataSource struct {
	Catalog          string
	ParamSourceState models.FlowState
}

// StepDefinition is the immutable contract of one FlowState.
type StepDefinition struct {
	State         models.FlowState
	RequiredInput models.MessageKind
	Rule          Rule
	Successor     models.FlowState // zero when terminal
	Response      models.MessageRequest
	Data          *DataSource
}

// HasSuccessor reports whether the state has a next state.
func (d StepDefinition) HasSuccessor() bool {
	return d.Successor.Valid()
}

// Catalog keys served by the external catalog store.
const (
	CatalogMakes  = "makes"
	CatalogModels = "models"
)

// BodyPlaceholder marks the spot in a response template that is replaced by
// the captured value of the triggering step.
const BodyPlaceholder = "{}"

var startKeywordPattern = regexp.MustCompile(`(?i)^hola$`)

func textResponse(body string) models.MessageRequest {
	return models.MessageRequest{
		SystemID:    models.PartsFlowSystemID,
		MessageType: models.MessageTypeText,
		Content:     models.MessageContent{Body: body},
	}
}

func listResponse(body, title string) models.MessageRequest {
	return models.MessageRequest{
		SystemID:    models.PartsFlowSystemID,
		MessageType: models.MessageTypeList,
		Content: models.MessageContent{
			Body: body,
			List: &models.ListMessage{Title: title},
		},
	}
}

// definitions is the hand-authored flow table, indexed by FlowState.
var definitions = map[models.FlowState]StepDefinition{
	models.FlowStarted: {
		State:     models.FlowStarted,
		Successor: models.BrandModalSent,
		Response:  textResponse("Escribe 'hola' para iniciar la solicitud."),
	},
	models.BrandModalSent: {
		State:         models.BrandModalSent,
		RequiredInput: models.KindPlainText,
		Rule:          Rule{Kind: RulePattern, Pattern: startKeywordPattern},
		Successor:     models.BrandSelected,
		Response:      listResponse("Selecciona la marca del vehiculo.", "Marcas"),
		Data:          &DataSource{Catalog: CatalogMakes},
	},
	models.BrandSelected: {
		State:         models.BrandSelected,
		RequiredInput: models.KindListSelection,
		Successor:     models.ModelModalSent,
		Response:      textResponse("Has seleccionado {}."),
	},
	models.ModelModalSent: {
		State:     models.ModelModalSent,
		Successor: models.ModelSelected,
		Response:  listResponse("Selecciona el modelo correspondiente al vehiculo.", "Modelos"),
		Data:      &DataSource{Catalog: CatalogModels, ParamSourceState: models.BrandSelected},
	},
	models.ModelSelected: {
		State:         models.ModelSelected,
		RequiredInput: models.KindListSelection,
		Successor:     models.IdentificationRequestSent,
		Response:      textResponse("Has seleccionado {}."),
	},
	models.IdentificationRequestSent: {
		State:     models.IdentificationRequestSent,
		Successor: models.IdentificationProvided,
		Response:  textResponse("Ingresa la patente o VIN del vehiculo a consultar."),
	},
	models.IdentificationProvided: {
		State:         models.IdentificationProvided,
		RequiredInput: models.KindPlainText,
		Rule:          Rule{Kind: RuleVehicleID},
		Successor:     models.PartDescriptionRequested,
		Response:      textResponse("El identificador provisto es valido."),
	},
	models.PartDescriptionRequested: {
		State:     models.PartDescriptionRequested,
		Successor: models.PartDescriptionProvided,
		Response:  textResponse("Por favor, describa el repuesto que busca de la manera mas especifica posible, puede adjuntar una imagen en el mismo mensaje (solo una)."),
	},
	models.PartDescriptionProvided: {
		State:         models.PartDescriptionProvided,
		RequiredInput: models.KindPlainTextAndImage,
		Successor:     models.RequestAccepted,
		Response:      textResponse("Se recibio descripcion de repuesto."),
	},
	models.RequestAccepted: {
		State:    models.RequestAccepted,
		Response: textResponse("Se recibio la solicitud de repuesto exitosamente, lo estaremos contactando una vez encontremos el repuesto buscado."),
	},
	models.RequestCancelled: {
		State:    models.RequestCancelled,
		Response: textResponse("Expiro el tiempo de la solicitud, inicia una solicitud nueva escribiendo 'hola' en el chat."),
	},
}

// DefinitionOf returns the definition of a state. It is total over the valid
// range [1, StateCount] and returns UnknownStateError for anything else.
func DefinitionOf(state models.FlowState) (StepDefinition, error) {
	def, ok := definitions[state]
	if !ok {
		return StepDefinition{}, &models.UnknownStateError{ID: int(state)}
	}
	return def, nil
}
