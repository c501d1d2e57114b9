package processor

import (
	"affiliate-server/internal/clients/platform"
	"affiliate-server/internal/notifications"
	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type fakeCreativeStore struct {
	programs  map[uuid.UUID]store.Program
	offers    map[uuid.UUID]store.Offer
	creatives map[uuid.UUID]store.Creative

	created *store.CreateCreativeParams
	deleted []uuid.UUID
}

func newFakeCreativeStore() *fakeCreativeStore {
	return &fakeCreativeStore{
		programs:  make(map[uuid.UUID]store.Program),
		offers:    make(map[uuid.UUID]store.Offer),
		creatives: make(map[uuid.UUID]store.Creative),
	}
}

func (f *fakeCreativeStore) GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error) {
	program, ok := f.programs[programID]
	if !ok {
		return store.Program{}, store.ErrNotFound
	}
	return program, nil
}

func (f *fakeCreativeStore) GetOfferByID(ctx context.Context, offerID uuid.UUID) (store.Offer, error) {
	offer, ok := f.offers[offerID]
	if !ok {
		return store.Offer{}, store.ErrNotFound
	}
	return offer, nil
}

func (f *fakeCreativeStore) CreateCreative(ctx context.Context, params store.CreateCreativeParams) (store.Creative, error) {
	f.created = &params
	creative := store.Creative{
		ID:       uuid.New(),
		OfferID:  params.OfferID,
		Type:     params.Type,
		URL:      params.URL,
		Title:    params.Title,
		Metadata: params.Metadata,
	}
	f.creatives[creative.ID] = creative
	return creative, nil
}

func (f *fakeCreativeStore) GetCreativeByID(ctx context.Context, creativeID uuid.UUID) (store.Creative, error) {
	creative, ok := f.creatives[creativeID]
	if !ok {
		return store.Creative{}, store.ErrNotFound
	}
	return creative, nil
}

func (f *fakeCreativeStore) ListCreativesByOffer(ctx context.Context, offerID uuid.UUID) ([]store.Creative, error) {
	var out []store.Creative
	for _, creative := range f.creatives {
		if creative.OfferID == offerID {
			out = append(out, creative)
		}
	}
	return out, nil
}

func (f *fakeCreativeStore) ListCreativesByProgram(ctx context.Context, programID uuid.UUID) ([]store.Creative, error) {
	var out []store.Creative
	for _, creative := range f.creatives {
		if offer, ok := f.offers[creative.OfferID]; ok && offer.ProgramID == programID {
			out = append(out, creative)
		}
	}
	return out, nil
}

func (f *fakeCreativeStore) DeleteCreative(ctx context.Context, creativeID uuid.UUID) error {
	f.deleted = append(f.deleted, creativeID)
	delete(f.creatives, creativeID)
	return nil
}

type fakeUploader struct {
	attachment platform.Attachment
	err        error
	uploads    int
}

func (f *fakeUploader) UploadAttachment(ctx context.Context, fileName, contentType string, data []byte) (platform.Attachment, error) {
	f.uploads++
	if f.err != nil {
		return platform.Attachment{}, f.err
	}
	return f.attachment, nil
}

type fakeNotifier struct {
	dispatched []notifications.Notification
}

func (f *fakeNotifier) Dispatch(ctx context.Context, notification notifications.Notification) {
	f.dispatched = append(f.dispatched, notification)
}

func seedOffer(f *fakeCreativeStore, companyID string) store.Offer {
	programID := uuid.New()
	experienceID := "exp_1"
	f.programs[programID] = store.Program{ID: programID, CompanyID: companyID}
	offer := store.Offer{ID: uuid.New(), ProgramID: programID, Name: "Launch", ExperienceID: &experienceID}
	f.offers[offer.ID] = offer
	return offer
}

func TestUploadCreativeStoresMetadataAndNotifies(t *testing.T) {
	fake := newFakeCreativeStore()
	offer := seedOffer(fake, "biz_1")
	uploader := &fakeUploader{attachment: platform.Attachment{DirectUploadID: "upl_1", URL: "https://cdn/asset.png"}}
	notifier := &fakeNotifier{}
	p := New(fake, uploader, notifier, observability.NewLogger())

	creative, err := p.UploadCreative(context.Background(), "biz_1", UploadCreativeParams{
		OfferID:     offer.ID,
		Title:       "Banner",
		Type:        store.CreativeTypeImage,
		FileName:    "banner.png",
		ContentType: "image/png",
		Data:        []byte("png-bytes"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creative.URL != "https://cdn/asset.png" {
		t.Errorf("expected attachment url, got %q", creative.URL)
	}
	if fake.created.Metadata["direct_upload_id"] != "upl_1" {
		t.Errorf("expected upload id in metadata, got %v", fake.created.Metadata)
	}
	if fake.created.Metadata["size_bytes"] != len("png-bytes") {
		t.Errorf("expected size in metadata, got %v", fake.created.Metadata["size_bytes"])
	}
	if len(notifier.dispatched) != 1 || notifier.dispatched[0].Kind != notifications.KindCreativeUploaded {
		t.Errorf("expected one creative notification, got %v", notifier.dispatched)
	}
}

func TestUploadCreativeFailedUpload(t *testing.T) {
	fake := newFakeCreativeStore()
	offer := seedOffer(fake, "biz_1")
	uploader := &fakeUploader{err: errors.New("storage down")}
	p := New(fake, uploader, &fakeNotifier{}, observability.NewLogger())

	_, err := p.UploadCreative(context.Background(), "biz_1", UploadCreativeParams{
		OfferID:  offer.ID,
		Title:    "Banner",
		Type:     store.CreativeTypeImage,
		FileName: "banner.png",
		Data:     []byte("x"),
	})
	if !errors.Is(err, ErrUploadFailed) {
		t.Errorf("expected ErrUploadFailed, got %v", err)
	}
	if fake.created != nil {
		t.Error("creative should not be recorded when the upload fails")
	}
}

func TestUploadCreativeForeignOffer(t *testing.T) {
	fake := newFakeCreativeStore()
	offer := seedOffer(fake, "biz_other")
	uploader := &fakeUploader{}
	p := New(fake, uploader, &fakeNotifier{}, observability.NewLogger())

	_, err := p.UploadCreative(context.Background(), "biz_1", UploadCreativeParams{
		OfferID: offer.ID,
		Title:   "Banner",
		Type:    store.CreativeTypeImage,
	})
	if !errors.Is(err, ErrOfferNotFound) {
		t.Errorf("expected ErrOfferNotFound, got %v", err)
	}
	if uploader.uploads != 0 {
		t.Error("nothing should be uploaded on ownership failure")
	}
}

func TestDeleteCreativeOwnershipChain(t *testing.T) {
	fake := newFakeCreativeStore()
	offer := seedOffer(fake, "biz_1")
	creative := store.Creative{ID: uuid.New(), OfferID: offer.ID}
	fake.creatives[creative.ID] = creative
	p := New(fake, &fakeUploader{}, &fakeNotifier{}, observability.NewLogger())

	if err := p.DeleteCreative(context.Background(), "biz_other", creative.ID); !errors.Is(err, ErrCreativeNotFound) {
		t.Errorf("expected ErrCreativeNotFound for foreign company, got %v", err)
	}
	if err := p.DeleteCreative(context.Background(), "biz_1", creative.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.deleted) != 1 {
		t.Errorf("expected one deletion, got %d", len(fake.deleted))
	}
}

func TestListCreativesByProgramChecksCompany(t *testing.T) {
	fake := newFakeCreativeStore()
	offer := seedOffer(fake, "biz_1")
	fake.creatives[uuid.New()] = store.Creative{ID: uuid.New(), OfferID: offer.ID}
	p := New(fake, &fakeUploader{}, &fakeNotifier{}, observability.NewLogger())

	programID := offer.ProgramID
	if _, err := p.ListCreatives(context.Background(), "biz_other", nil, &programID); !errors.Is(err, ErrOfferNotFound) {
		t.Errorf("expected ErrOfferNotFound for foreign company, got %v", err)
	}

	creatives, err := p.ListCreatives(context.Background(), "biz_1", nil, &programID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creatives) != 1 {
		t.Errorf("expected one creative, got %d", len(creatives))
	}
}
