package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ciphercore.app/convo/internal/http/handler"
	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/store"
)

var _ = Describe("TranscriptHandler", func() {
	var (
		router *gin.Engine
		svc    *mockTranscriptService
	)

	BeforeEach(func() {
		router = gin.New()
		svc = &mockTranscriptService{}
		h := handler.NewTranscriptHandler(svc)
		router.GET("/transcripts", h.List)
		router.GET("/transcripts/:run_id", h.Get)
	})

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("filters by owner_id", func() {
		var gotOwner *string
		svc.listFn = func(_ context.Context, owner *string) ([]model.StoredRun, error) {
			gotOwner = owner
			return []model.StoredRun{{
				RunID:      "r1",
				Topic:      "X",
				AgentNames: []string{"A"},
				Summary:    "s",
				CreatedAt:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			}}, nil
		}

		w := get("/transcripts?owner_id=alice")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gotOwner).NotTo(BeNil())
		Expect(*gotOwner).To(Equal("alice"))

		var resp struct {
			Transcripts []map[string]any `json:"transcripts"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Transcripts).To(HaveLen(1))
		Expect(resp.Transcripts[0]["run_id"]).To(Equal("r1"))
		Expect(resp.Transcripts[0]["agents"]).To(Equal([]any{"A"}))
	})

	It("lists every run without owner_id", func() {
		var gotOwner *string
		called := false
		svc.listFn = func(_ context.Context, owner *string) ([]model.StoredRun, error) {
			called = true
			gotOwner = owner
			return []model.StoredRun{}, nil
		}

		w := get("/transcripts")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(called).To(BeTrue())
		Expect(gotOwner).To(BeNil())
		Expect(w.Body.String()).To(MatchJSON(`{"transcripts":[]}`))
	})

	It("returns 500 when listing fails", func() {
		svc.listFn = func(context.Context, *string) ([]model.StoredRun, error) {
			return nil, errors.New("db down")
		}

		Expect(get("/transcripts").Code).To(Equal(http.StatusInternalServerError))
	})

	It("returns 404 for unknown runs", func() {
		svc.getFn = func(context.Context, string) (*model.StoredRun, error) {
			return nil, store.ErrNotFound
		}

		Expect(get("/transcripts/nope").Code).To(Equal(http.StatusNotFound))
	})

	It("returns a stored run", func() {
		svc.getFn = func(_ context.Context, runID string) (*model.StoredRun, error) {
			return &model.StoredRun{RunID: runID, Topic: "X", Transcript: []model.TranscriptEntry{}}, nil
		}

		w := get("/transcripts/r7")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["run_id"]).To(Equal("r7"))
	})
})
