package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ciphercore.app/convo/internal/http/handler"
	"ciphercore.app/convo/internal/model"
)

var _ = Describe("AgentHandler", func() {
	var router *gin.Engine

	BeforeEach(func() {
		router = gin.New()
		h := handler.NewAgentHandler(&mockConversationService{agents: []model.AgentDefinition{
			{Name: "A", Personality: model.PersonalityCritical, Instruction: "Find flaws."},
		}})
		router.GET("/agents", h.List)
		router.GET("/agents/schema", h.Schema)
	})

	It("lists the roster", func() {
		req := httptest.NewRequest(http.MethodGet, "/agents", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"agents":[{"name":"A","personality":"critical","instruction":"Find flaws."}]}`))
	})

	It("serves the roster schema", func() {
		req := httptest.NewRequest(http.MethodGet, "/agents/schema", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var schema map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &schema)).To(Succeed())
		Expect(schema["type"]).To(Equal("array"))
	})
})
