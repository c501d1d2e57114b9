package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"affiliate-server/internal/observability"
	"affiliate-server/internal/store"
	"affiliate-server/internal/webhooks/processor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingStore struct {
	mu         sync.Mutex
	recorded   int
	sourceRefs map[string]bool
}

func (r *recordingStore) GetProgramByID(ctx context.Context, programID uuid.UUID) (store.Program, error) {
	return store.Program{ID: programID, CompanyID: "biz_1", DefaultRate: 10}, nil
}

func (r *recordingStore) GetOfferByID(ctx context.Context, offerID uuid.UUID) (store.Offer, error) {
	return store.Offer{}, store.ErrNotFound
}

func (r *recordingStore) GetAffiliateByID(ctx context.Context, affiliateID uuid.UUID) (store.Affiliate, error) {
	return store.Affiliate{ID: affiliateID, ProgramID: programID, UserID: "user_1", Status: store.AffiliateStatusApproved}, nil
}

func (r *recordingStore) CreateEarningsEvent(ctx context.Context, params store.CreateEarningsEventParams) (store.EarningsEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded++
	if params.SourceRef != nil {
		if r.sourceRefs == nil {
			r.sourceRefs = make(map[string]bool)
		}
		r.sourceRefs[*params.SourceRef] = true
	}
	return store.EarningsEvent{}, nil
}

func (r *recordingStore) HasConversionForSource(ctx context.Context, sourceRef string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sourceRefs[sourceRef], nil
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

const testSecret = "whsec_test"

var programID = uuid.New()

func sign(payload []byte, secret string) string {
	timestamp := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func newRouter(recorder *recordingStore) *gin.Engine {
	logger := observability.NewLogger()
	h := New(processor.New(recorder, logger), testSecret, logger)
	router := gin.New()
	router.POST("/api/webhooks/platform", h.HandlePlatformWebhook)
	return router
}

func paymentPayload() []byte {
	return []byte(fmt.Sprintf(
		`{"action":"payment.succeeded","data":{"id":"pay_1","final_amount":100,"currency":"usd","metadata":{"programId":"%s","affiliateId":"%s"}}}`,
		programID, uuid.New(),
	))
}

func TestWebhookValidSignatureAnswers200AndProcesses(t *testing.T) {
	recorder := &recordingStore{}
	router := newRouter(recorder)

	payload := paymentPayload()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/platform", bytes.NewReader(payload))
	req.Header.Set("X-Platform-Signature", sign(payload, testSecret))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// The conversion is recorded by the detached follow-up goroutine
	deadline := time.Now().Add(2 * time.Second)
	for recorder.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, recorder.count())
}

func TestWebhookInvalidSignatureStillAnswers200(t *testing.T) {
	recorder := &recordingStore{}
	router := newRouter(recorder)

	payload := paymentPayload()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/platform", bytes.NewReader(payload))
	req.Header.Set("X-Platform-Signature", sign(payload, "whsec_wrong"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, recorder.count(), "no follow-up should run for a rejected payload")
}

func TestWebhookMissingSignatureStillAnswers200(t *testing.T) {
	recorder := &recordingStore{}
	router := newRouter(recorder)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/platform", bytes.NewReader(paymentPayload()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
