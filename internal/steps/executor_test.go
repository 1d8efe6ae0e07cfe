package steps

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fizzycl/partsflow/internal/models"
	"github.com/fizzycl/partsflow/internal/session"
	"github.com/fizzycl/partsflow/internal/store"
)

type fakePrior struct {
	steps map[models.FlowState]models.TrackerStep
}

func (f *fakePrior) StepByState(_ string, state models.FlowState) (models.TrackerStep, error) {
	st, ok := f.steps[state]
	if !ok {
		return models.TrackerStep{}, store.ErrNotFound
	}
	return st, nil
}

type fakeCatalogs struct {
	calls []string
}

func (f *fakeCatalogs) Page(_ context.Context, key string, n int, param string) ([]models.Choice, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s/%d/%s", key, n, param))
	return []models.Choice{{ID: "toyota-id", Title: "Toyota"}}, nil
}

type fakeModes struct {
	mode   int
	getErr error
	resets []string
	err    error
}

func (f *fakeModes) Get(_ context.Context, _ string) (int, error) {
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.mode, nil
}

func (f *fakeModes) Reset(_ context.Context, phone string) error {
	f.resets = append(f.resets, phone)
	return f.err
}

type fakeUploader struct {
	key string
	err error
}

func (f *fakeUploader) Upload(_ context.Context, mediaID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.key, nil
}

func newTestExecutor() (*Executor, *fakePrior, *fakeCatalogs, *fakeModes, *fakeUploader) {
	prior := &fakePrior{steps: map[models.FlowState]models.TrackerStep{}}
	catalogs := &fakeCatalogs{}
	modes := &fakeModes{}
	uploader := &fakeUploader{key: "stored.jpeg"}
	return NewExecutor(prior, catalogs, modes, uploader), prior, catalogs, modes, uploader
}

var testTracker = models.Tracker{ID: "t1", PhoneNumber: "5215550001234", Timestamp: 1000}

func imageEvent(mediaID string) *models.Event {
	return &models.Event{
		Entry: []models.Entry{{
			Changes: []models.Change{{
				Value: models.ChangeValue{
					Messages: []models.Message{{
						Type:  "image",
						Image: &models.Image{ID: mediaID, Caption: "bomba de agua"},
					}},
				},
			}},
		}},
	}
}

func TestExecuteBrandModal(t *testing.T) {
	exec, _, catalogs, _, _ := newTestExecutor()

	res, err := exec.Execute(context.Background(), models.BrandModalSent, testTracker, "hola", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Persist {
		t.Error("brand modal should persist")
	}
	if res.Message.MessageType != models.MessageTypeList {
		t.Errorf("message type = %s, want list", res.Message.MessageType)
	}
	if res.Message.Content.List == nil || len(res.Message.Content.List.Choices) != 1 {
		t.Fatalf("list choices = %+v", res.Message.Content.List)
	}
	if len(catalogs.calls) != 1 || catalogs.calls[0] != "makes/1/" {
		t.Errorf("catalog calls = %v, want makes page 1", catalogs.calls)
	}
	if got := res.Message.To; len(got) != 1 || got[0] != testTracker.PhoneNumber {
		t.Errorf("recipients = %v", got)
	}
}

func TestExecuteBrandSelectedFillsTemplate(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor()

	res, err := exec.Execute(context.Background(), models.BrandSelected, testTracker, "toyota-id", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Message.Content.Body != "Has seleccionado Toyota." {
		t.Errorf("body = %q", res.Message.Content.Body)
	}
}

func TestExecuteModelModalUsesBrand(t *testing.T) {
	exec, prior, catalogs, _, _ := newTestExecutor()
	prior.steps[models.BrandSelected] = models.TrackerStep{Value: "toyota-id"}

	_, err := exec.Execute(context.Background(), models.ModelModalSent, testTracker, "", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(catalogs.calls) != 1 || catalogs.calls[0] != "models/1/toyota" {
		t.Errorf("catalog calls = %v, want models page 1 for toyota", catalogs.calls)
	}
}

func TestExecuteModelModalMissingBrand(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor()

	_, err := exec.Execute(context.Background(), models.ModelModalSent, testTracker, "", nil)
	var missing *MissingPriorAnswerError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want MissingPriorAnswerError", err)
	}
	if missing.Want != models.BrandSelected {
		t.Errorf("missing.Want = %s", missing.Want)
	}
}

func TestExecuteDescriptionUploadsImage(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor()

	res, err := exec.Execute(context.Background(), models.PartDescriptionProvided, testTracker, "bomba de agua", imageEvent("media-1"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.AttachedFile != "stored.jpeg" {
		t.Errorf("attached file = %q", res.AttachedFile)
	}
}

func TestExecuteDescriptionUploadFailureNotFatal(t *testing.T) {
	exec, _, _, _, uploader := newTestExecutor()
	uploader.err = errors.New("bucket unavailable")

	res, err := exec.Execute(context.Background(), models.PartDescriptionProvided, testTracker, "bomba de agua", imageEvent("media-1"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.AttachedFile != "" {
		t.Errorf("attached file = %q, want empty", res.AttachedFile)
	}
}

func TestExecuteAcceptedResetsMode(t *testing.T) {
	exec, _, _, modes, _ := newTestExecutor()

	res, err := exec.Execute(context.Background(), models.RequestAccepted, testTracker, "", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(modes.resets) != 1 || modes.resets[0] != testTracker.PhoneNumber {
		t.Errorf("mode resets = %v", modes.resets)
	}
	if !res.Persist {
		t.Error("accepted step should persist")
	}
}

func TestExecuteAcceptedSkipsResetWhenOnMenu(t *testing.T) {
	exec, _, _, modes, _ := newTestExecutor()
	modes.mode = session.DefaultMode

	if _, err := exec.Execute(context.Background(), models.RequestAccepted, testTracker, "", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(modes.resets) != 0 {
		t.Errorf("mode resets = %v, want none for a number already on the menu", modes.resets)
	}
}

func TestExecuteAcceptedModeLookupFailureStillResets(t *testing.T) {
	exec, _, _, modes, _ := newTestExecutor()
	modes.getErr = errors.New("redis down")

	if _, err := exec.Execute(context.Background(), models.RequestAccepted, testTracker, "", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(modes.resets) != 1 {
		t.Errorf("mode resets = %v, want one despite the failed lookup", modes.resets)
	}
}

func TestExecuteAcceptedModeResetFailureNotFatal(t *testing.T) {
	exec, _, _, modes, _ := newTestExecutor()
	modes.err = errors.New("redis down")

	if _, err := exec.Execute(context.Background(), models.RequestAccepted, testTracker, "", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestRenderPage(t *testing.T) {
	exec, _, catalogs, _, _ := newTestExecutor()

	res, err := exec.RenderPage(context.Background(), models.ModelModalSent, testTracker, 2, "toyota")
	if err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	if res.Persist {
		t.Error("page navigation must not persist")
	}
	if len(catalogs.calls) != 1 || catalogs.calls[0] != "models/2/toyota" {
		t.Errorf("catalog calls = %v", catalogs.calls)
	}
}

func TestRenderPageNonListState(t *testing.T) {
	exec, _, _, _, _ := newTestExecutor()

	if _, err := exec.RenderPage(context.Background(), models.BrandSelected, testTracker, 2, ""); err == nil {
		t.Fatal("expected error for non-list state")
	}
}

func TestDisplayValue(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"toyota-id", "Toyota"},
		{"alfa romeo-id", "Alfa romeo"},
		{"corolla", "Corolla"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := DisplayValue(tc.in); got != tc.want {
			t.Errorf("DisplayValue(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
