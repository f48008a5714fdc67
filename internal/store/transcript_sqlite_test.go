package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"ciphercore.app/convo/internal/model"
	"ciphercore.app/convo/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func storedRun(id string, owner *string, created time.Time) model.StoredRun {
	return model.StoredRun{
		RunID:      id,
		Topic:      "Energy policy",
		AgentNames: []string{"A", "B"},
		Transcript: []model.TranscriptEntry{
			{Kind: model.EntryKindTurn, Content: "hi", Turn: &model.TurnRecord{Iteration: 1, AgentName: "A", Personality: model.PersonalityCritical, RawReply: "hi", Quality: model.QualityNeutral}},
			{Kind: model.EntryKindSummary, Content: "summary"},
		},
		Summary:   "summary",
		OwnerID:   owner,
		CreatedAt: created,
	}
}

var _ = Describe("SQLiteTranscriptStore", func() {
	var (
		ctx   context.Context
		path  string
		s     *store.SQLiteTranscriptStore
		alice string
	)

	BeforeEach(func() {
		ctx = context.Background()
		alice = "alice"
		path = filepath.Join(GinkgoT().TempDir(), "discussion_data.db")

		var err error
		s, err = store.NewSQLiteTranscriptStore(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)
	})

	It("round-trips a saved run", func() {
		created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		Expect(s.Save(ctx, storedRun("run-1", &alice, created))).To(Succeed())

		got, err := s.Get(ctx, "run-1")

		Expect(err).NotTo(HaveOccurred())
		Expect(got.Topic).To(Equal("Energy policy"))
		Expect(got.Summary).To(Equal("summary"))
		Expect(got.AgentNames).To(Equal([]string{"A", "B"}))
		Expect(got.Transcript).To(HaveLen(2))
		Expect(got.Transcript[0].Turn).NotTo(BeNil())
		Expect(got.Transcript[0].Turn.AgentName).To(Equal("A"))
		Expect(got.OwnerID).To(HaveValue(Equal("alice")))
		Expect(got.CreatedAt.Equal(created)).To(BeTrue())
	})

	It("rejects a second save of the same run", func() {
		Expect(s.Save(ctx, storedRun("run-1", &alice, time.Now()))).To(Succeed())

		err := s.Save(ctx, storedRun("run-1", &alice, time.Now()))

		Expect(err).To(MatchError(store.ErrDuplicateRun))
	})

	It("lists all runs or one owner's runs in creation order", func() {
		bob := "bob"
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		for _, r := range []model.StoredRun{
			storedRun("run-1", &alice, base),
			storedRun("run-2", &bob, base.Add(time.Minute)),
			storedRun("run-3", &alice, base.Add(2*time.Minute)),
		} {
			Expect(s.Save(ctx, r)).To(Succeed())
		}

		all, err := s.ListByOwner(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))

		mine, err := s.ListByOwner(ctx, &alice)
		Expect(err).NotTo(HaveOccurred())
		Expect(mine).To(HaveLen(2))
		Expect(mine[0].RunID).To(Equal("run-1"))
		Expect(mine[1].RunID).To(Equal("run-3"))

		nobody := "carol"
		none, err := s.ListByOwner(ctx, &nobody)
		Expect(err).NotTo(HaveOccurred())
		Expect(none).NotTo(BeNil())
		Expect(none).To(BeEmpty())
	})

	It("decodes empty serialized lists as empty slices", func() {
		raw, err := sql.Open("sqlite", path)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(raw.Close)
		_, err = raw.ExecContext(ctx,
			`INSERT INTO conversation_runs (run_id, topic, agent_names, transcript, summary, owner_id, created_at) VALUES (?, ?, '', '', '', NULL, ?)`,
			"legacy", "old", time.Now().UTC().Format(time.RFC3339Nano))
		Expect(err).NotTo(HaveOccurred())

		got, err := s.Get(ctx, "legacy")

		Expect(err).NotTo(HaveOccurred())
		Expect(got.AgentNames).NotTo(BeNil())
		Expect(got.AgentNames).To(BeEmpty())
		Expect(got.Transcript).NotTo(BeNil())
		Expect(got.Transcript).To(BeEmpty())
		Expect(got.OwnerID).To(BeNil())
	})

	It("reports a missing run as not found", func() {
		_, err := s.Get(ctx, "nope")

		Expect(err).To(MatchError(store.ErrNotFound))
	})
})
