package validation

import (
	"errors"
	"testing"

	"github.com/fizzycl/partsflow/internal/flow"
	"github.com/fizzycl/partsflow/internal/models"
)

func textEvent(body string) *models.Event {
	return &models.Event{
		Entry: []models.Entry{{
			Changes: []models.Change{{
				Value: models.ChangeValue{
					Messages: []models.Message{{
						From: "5215550001234",
						ID:   "wamid.test",
						Type: "text",
						Text: &models.Text{Body: body},
					}},
				},
			}},
		}},
	}
}

func listReplyEvent(id, title string) *models.Event {
	ev := textEvent("")
	msg := &ev.Entry[0].Changes[0].Value.Messages[0]
	msg.Type = "interactive"
	msg.Text = nil
	msg.Interactive = &models.Interactive{
		Type:      "list_reply",
		ListReply: &models.Reply{ID: id, Title: title},
	}
	return ev
}

func imageEvent(mediaID, caption string) *models.Event {
	ev := textEvent("")
	msg := &ev.Entry[0].Changes[0].Value.Messages[0]
	msg.Type = "image"
	msg.Text = nil
	msg.Image = &models.Image{ID: mediaID, Caption: caption}
	return ev
}

func stepDef(t *testing.T, state models.FlowState) flow.StepDefinition {
	t.Helper()
	def, err := flow.DefinitionOf(state)
	if err != nil {
		t.Fatalf("DefinitionOf(%d): %v", state, err)
	}
	return def
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		ev   *models.Event
		want models.MessageKind
	}{
		{"text", textEvent("hola"), models.KindPlainText},
		{"list reply", listReplyEvent("toyota-id", "Toyota"), models.KindListSelection},
		{"image", imageEvent("media-1", ""), models.KindPlainTextAndImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := tc.ev.FirstMessage()
			if err != nil {
				t.Fatalf("FirstMessage: %v", err)
			}
			got, err := Classify(msg)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tc.want {
				t.Errorf("Classify = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyUnsupported(t *testing.T) {
	msg := &models.Message{Type: "audio"}
	if _, err := Classify(msg); err == nil {
		t.Fatal("expected error for unsupported message type")
	}
}

func TestValidateStartKeyword(t *testing.T) {
	def := stepDef(t, models.BrandModalSent)

	for _, body := range []string{"hola", "Hola", "HOLA", "  hola  "} {
		content, err := Validate(def, textEvent(body))
		if err != nil {
			t.Errorf("Validate(%q): %v", body, err)
		}
		if content == "" {
			t.Errorf("Validate(%q) returned empty content", body)
		}
	}

	for _, body := range []string{"hello", "holaa", ""} {
		if _, err := Validate(def, textEvent(body)); err == nil {
			t.Errorf("Validate(%q): expected rule mismatch", body)
		}
	}
}

func TestValidateKindMismatch(t *testing.T) {
	def := stepDef(t, models.BrandSelected)

	_, err := Validate(def, textEvent("toyota"))
	var mismatch *KindMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Validate = %v, want KindMismatchError", err)
	}
	if mismatch.Want != models.KindListSelection || mismatch.Got != models.KindPlainText {
		t.Errorf("mismatch = want %s got %s", mismatch.Want, mismatch.Got)
	}
}

func TestValidateSelectionContent(t *testing.T) {
	def := stepDef(t, models.BrandSelected)

	content, err := Validate(def, listReplyEvent("toyota-id", "Toyota"))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if content != "toyota-id" {
		t.Errorf("content = %q, want %q", content, "toyota-id")
	}
}

func TestValidateTextAndImage(t *testing.T) {
	def := stepDef(t, models.PartDescriptionProvided)

	if _, err := Validate(def, textEvent("bomba de agua")); err != nil {
		t.Errorf("text message rejected: %v", err)
	}
	if _, err := Validate(def, imageEvent("media-1", "bomba de agua")); err != nil {
		t.Errorf("image message rejected: %v", err)
	}
	if _, err := Validate(def, listReplyEvent("x", "y")); err == nil {
		t.Error("list reply accepted for text-and-image step")
	}
}

func TestValidateVehicleID(t *testing.T) {
	def := stepDef(t, models.IdentificationProvided)

	if _, err := Validate(def, textEvent("1M8GDM9AXKP042788")); err != nil {
		t.Errorf("valid VIN rejected: %v", err)
	}
	if _, err := Validate(def, textEvent("AB1234")); err != nil {
		t.Errorf("valid plate rejected: %v", err)
	}
	if _, err := Validate(def, textEvent("1M8GDM9AXKP042789")); !errors.Is(err, ErrInvalidVehicleID) {
		t.Errorf("corrupted VIN: got %v, want ErrInvalidVehicleID", err)
	}
}

func TestValidVehicleID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"1M8GDM9AXKP042788", true},
		{"1m8gdm9axkp042788", true},
		{"2M8GDM9AXKP042788", false},
		{"1M8GDM9AXKP04278", false},
		{"1M8GDM9AXKP0427IQ", false},
		{"AB1234", true},
		{"ab1234", true},
		{"AB-123", false},
		{"AB12345", false},
	}
	for _, tc := range cases {
		if got := ValidVehicleID(tc.id); got != tc.want {
			t.Errorf("ValidVehicleID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
