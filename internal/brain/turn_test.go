package brain_test

import (
	"strings"

	"ciphercore.app/convo/internal/brain"
	"ciphercore.app/convo/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ClassifyQuality", func() {
	DescribeTable("labels replies by marker",
		func(text string, expected model.QualityLabel) {
			Expect(brain.ClassifyQuality(text)).To(Equal(expected))
			// a second call must agree with the first
			Expect(brain.ClassifyQuality(text)).To(Equal(expected))
		},
		Entry("repeat marker", "Sorry, I am Repeating Myself here.", model.QualityPoor),
		Entry("german repeat marker", "Ich WIEDERHOLE MICH leider.", model.QualityPoor),
		Entry("new perspective marker", "Let me offer a NEW perspective.", model.QualityGood),
		Entry("german new perspective marker", "Eine neue Perspektive wäre...", model.QualityGood),
		Entry("poor wins over good", "repeating myself, but a new perspective", model.QualityPoor),
		Entry("no marker", "Plain reply.", model.QualityNeutral),
		Entry("empty text", "", model.QualityNeutral),
	)
})

var _ = Describe("TurnScheduler", func() {
	var roster []model.AgentDefinition

	BeforeEach(func() {
		roster = []model.AgentDefinition{
			{Name: "A", Personality: model.PersonalityCritical, Instruction: "Focus on risks."},
			{Name: "B", Personality: model.PersonalityVisionary},
			{Name: "C", Personality: model.PersonalityNeutral},
		}
	})

	It("picks speakers round robin", func() {
		s := brain.NewTurnScheduler("X", roster, model.LanguageEnglish)
		window := make([]string, len(roster))

		var speakers []string
		for i := 1; i <= 7; i++ {
			speakers = append(speakers, s.Next(i, window).Agent.Name)
		}
		Expect(speakers).To(Equal([]string{"A", "B", "C", "A", "B", "C", "A"}))
	})

	It("wraps the previous speaker to the last agent on the first iteration", func() {
		s := brain.NewTurnScheduler("X", roster, model.LanguageUnspecified)
		turn := s.Next(1, make([]string, len(roster)))

		Expect(turn.PreviousAgent.Name).To(Equal("C"))
		Expect(turn.PreviousOutput).To(BeEmpty())
		Expect(turn.Prompt).To(ContainSubstring("Agent C said: \n"))
	})

	It("quotes the previous agent's latest output", func() {
		s := brain.NewTurnScheduler("Energy policy", roster, model.LanguageUnspecified)
		window := []string{"first thoughts", "", ""}

		turn := s.Next(2, window)

		Expect(turn.Agent.Name).To(Equal("B"))
		Expect(turn.Prompt).To(ContainSubstring("'Energy policy'"))
		Expect(turn.Prompt).To(ContainSubstring("Iteration 2: Agent B"))
		Expect(turn.Prompt).To(ContainSubstring("Agent A said: first thoughts"))
	})

	DescribeTable("adds one sentence per personality",
		func(p model.Personality, directive string) {
			s := brain.NewTurnScheduler("X", []model.AgentDefinition{{Name: "A", Personality: p}}, model.LanguageUnspecified)
			prompt := s.Next(1, []string{""}).Prompt
			if directive == "" {
				Expect(prompt).To(HaveSuffix("Agent A said: \n"))
				return
			}
			Expect(prompt).To(HaveSuffix("\n" + directive))
		},
		Entry("critical", model.PersonalityCritical, "Be critical and question assumptions."),
		Entry("visionary", model.PersonalityVisionary, "Be visionary and think big."),
		Entry("conservative", model.PersonalityConservative, "Be conservative and stick to what has proven itself."),
		Entry("neutral", model.PersonalityNeutral, ""),
	)

	DescribeTable("appends the language directive last",
		func(lang model.Language, directive string) {
			s := brain.NewTurnScheduler("X", roster, lang)
			prompt := s.Next(1, make([]string, len(roster))).Prompt
			Expect(prompt).To(HaveSuffix("\n\n" + directive))
			Expect(strings.Index(prompt, "Be critical")).To(BeNumerically("<", strings.Index(prompt, directive)))
		},
		Entry("german", model.LanguageGerman, "Antworte auf Deutsch."),
		Entry("english", model.LanguageEnglish, "Respond in English."),
		Entry("french", model.LanguageFrench, "Répondez en français."),
		Entry("spanish", model.LanguageSpanish, "Responde en español."),
	)

	It("adds no language directive for an unrecognized language", func() {
		s := brain.NewTurnScheduler("X", roster, model.ParseLanguage("klingon"))
		prompt := s.Next(1, make([]string, len(roster))).Prompt
		Expect(prompt).To(HaveSuffix("Be critical and question assumptions."))
	})
})

var _ = Describe("StagnationDetector", func() {
	It("stays quiet up to 60% of the run", func() {
		d := brain.NewStagnationDetector(10)
		window := []string{"same", "same"}

		for i := 1; i <= 6; i++ {
			Expect(d.Check(i, "same", "same", window)).To(BeFalse())
		}
		Expect(window).To(Equal([]string{"same", "same"}))
	})

	It("shifts the topic on the first echo after the threshold", func() {
		d := brain.NewStagnationDetector(10)
		window := []string{"same", "same", "other"}

		Expect(d.Check(7, "same", "same", window)).To(BeTrue())
		Expect(window).To(Equal([]string{brain.TopicShiftText, brain.TopicShiftText, brain.TopicShiftText}))
		Expect(d.Fired()).To(BeTrue())
	})

	It("fires at most once", func() {
		d := brain.NewStagnationDetector(5)
		window := []string{"x", "x"}

		Expect(d.Check(4, "x", "x", window)).To(BeTrue())
		window[0], window[1] = "y", "y"
		Expect(d.Check(5, "y", "y", window)).To(BeFalse())
		Expect(window).To(Equal([]string{"y", "y"}))
	})

	It("requires identical outputs", func() {
		d := brain.NewStagnationDetector(5)
		window := []string{"x", "x "}

		Expect(d.Check(5, "x", "x ", window)).To(BeFalse())
	})
})
