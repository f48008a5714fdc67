package roster_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/roster"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Roster", func() {
	var (
		ctx context.Context
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
	})

	writeFile := func(content string) string {
		path := filepath.Join(dir, "agent_config.json")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	Describe("LoadFile", func() {
		It("maps description to the agent instruction", func() {
			path := writeFile(`[
				{"name": "Skeptic", "personality": "kritisch", "description": "Question everything."},
				{"name": "Dreamer", "personality": "visionary", "description": ""}
			]`)

			r := roster.LoadFile(ctx, path)

			Expect(r.Agents()).To(Equal([]model.AgentDefinition{
				{Name: "Skeptic", Personality: model.PersonalityCritical, Instruction: "Question everything."},
				{Name: "Dreamer", Personality: model.PersonalityVisionary},
			}))
		})

		It("yields an empty roster for a missing file", func() {
			r := roster.LoadFile(ctx, filepath.Join(dir, "missing.json"))
			Expect(r.Len()).To(Equal(0))
		})

		DescribeTable("yields an empty roster for an invalid file",
			func(content string) {
				r := roster.LoadFile(ctx, writeFile(content))
				Expect(r.Len()).To(Equal(0))
			},
			Entry("broken json", `[{"name": `),
			Entry("object instead of list", `{"name": "A"}`),
			Entry("missing name", `[{"personality": "neutral", "description": ""}]`),
			Entry("unknown personality", `[{"name": "A", "personality": "grumpy", "description": ""}]`),
			Entry("duplicate names", `[{"name": "A", "personality": "neutral"}, {"name": "A", "personality": "neutral"}]`),
		)
	})

	Describe("Select", func() {
		var r *roster.Roster

		BeforeEach(func() {
			r = roster.New([]model.AgentDefinition{
				{Name: "A", Personality: model.PersonalityCritical},
				{Name: "B", Personality: model.PersonalityNeutral},
			})
		})

		It("keeps the requested order and applies overrides", func() {
			agents, err := r.Select([]string{"B", "A"}, map[string]model.Personality{"B": model.PersonalityConservative})

			Expect(err).NotTo(HaveOccurred())
			Expect(agents).To(Equal([]model.AgentDefinition{
				{Name: "B", Personality: model.PersonalityConservative},
				{Name: "A", Personality: model.PersonalityCritical},
			}))
			b, _ := r.Lookup("B")
			Expect(b.Personality).To(Equal(model.PersonalityNeutral))
		})

		It("rejects unknown agents", func() {
			_, err := r.Select([]string{"A", "Z"}, nil)
			Expect(errors.Is(err, roster.ErrUnknownAgent)).To(BeTrue())
		})
	})

	Describe("Schema", func() {
		It("describes an array of agent entries", func() {
			raw, err := json.Marshal(roster.Schema())
			Expect(err).NotTo(HaveOccurred())

			var doc map[string]any
			Expect(json.Unmarshal(raw, &doc)).To(Succeed())
			Expect(doc["type"]).To(Equal("array"))
			Expect(string(raw)).To(ContainSubstring(`"personality"`))
			Expect(string(raw)).To(ContainSubstring(`"kritisch"`))
			Expect(string(raw)).To(ContainSubstring(`"description"`))
		})
	})
})
