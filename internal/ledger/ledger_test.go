package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ciphercore.app/convo/internal/ledger"
	"ciphercore.app/convo/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ledger", func() {
	var (
		ctx context.Context
		key model.RatingKey
	)

	BeforeEach(func() {
		ctx = context.Background()
		key = model.RatingKey{RunID: "run-1", Iteration: 2, AgentName: "A"}
	})

	Describe("Rate", func() {
		It("creates the entry lazily and persists the whole document on every vote", func() {
			p := &mockPersister{}
			l := ledger.New(p)

			c, err := l.Rate(ctx, key, model.VoteUp)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(Equal(model.Counters{Upvotes: 1}))

			c, err = l.Rate(ctx, key, model.VoteDown)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(Equal(model.Counters{Upvotes: 1, Downvotes: 1}))

			Expect(p.saves).To(HaveLen(2))
			Expect(p.saves[1]).To(Equal(ledger.Document{
				"run-1": {"2": {"A": {Upvotes: 1, Downvotes: 1}}},
			}))
		})

		It("keeps keys isolated", func() {
			l := ledger.New(nil)
			other := model.RatingKey{RunID: "run-1", Iteration: 2, AgentName: "B"}

			_, _ = l.Rate(ctx, key, model.VoteUp)

			Expect(l.Get(other)).To(Equal(model.Counters{}))
			Expect(l.Get(key)).To(Equal(model.Counters{Upvotes: 1}))
		})

		DescribeTable("rejects invalid votes",
			func(k model.RatingKey, kind model.VoteKind) {
				p := &mockPersister{}
				l := ledger.New(p)

				_, err := l.Rate(ctx, k, kind)

				Expect(errors.Is(err, ledger.ErrInvalidVote)).To(BeTrue())
				Expect(p.saves).To(BeEmpty())
			},
			Entry("unknown kind", model.RatingKey{RunID: "r", Iteration: 1, AgentName: "A"}, model.VoteKind("meh")),
			Entry("missing run", model.RatingKey{Iteration: 1, AgentName: "A"}, model.VoteUp),
			Entry("zero iteration", model.RatingKey{RunID: "r", AgentName: "A"}, model.VoteUp),
			Entry("missing agent", model.RatingKey{RunID: "r", Iteration: 1}, model.VoteDown),
		)

		It("keeps the vote in memory when persisting fails", func() {
			p := &mockPersister{saveFn: func(context.Context, ledger.Document) error {
				return errors.New("disk full")
			}}
			l := ledger.New(p)

			c, err := l.Rate(ctx, key, model.VoteUp)

			Expect(err).NotTo(HaveOccurred())
			Expect(c.Upvotes).To(Equal(1))
			Expect(l.Get(key).Upvotes).To(Equal(1))
		})
	})

	Describe("Load", func() {
		It("restores counters from the persisted document", func() {
			p := &mockPersister{loadFn: func(context.Context) (ledger.Document, error) {
				return ledger.Document{
					"run-1": {
						"2":   {"A": {Upvotes: 3, Downvotes: 1}},
						"two": {"B": {Upvotes: 9}},
					},
				}, nil
			}}

			l := ledger.Load(ctx, p)

			Expect(l.Get(key)).To(Equal(model.Counters{Upvotes: 3, Downvotes: 1}))
			Expect(l.Document()).To(HaveKey("run-1"))
			Expect(l.Document()["run-1"]).NotTo(HaveKey("two"))
		})

		It("starts empty and persists over a corrupt document", func() {
			p := &mockPersister{loadFn: func(context.Context) (ledger.Document, error) {
				return nil, fmt.Errorf("decoding: %w", ledger.ErrCorruptDocument)
			}}

			l := ledger.Load(ctx, p)

			Expect(l.Document()).To(BeEmpty())
			_, err := l.Rate(ctx, key, model.VoteUp)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.saves).To(HaveLen(1))
		})

		Context("when the store is unreachable at startup", func() {
			var (
				p         *mockPersister
				reachable bool
				stored    ledger.Document
				newKey    model.RatingKey
			)

			BeforeEach(func() {
				reachable = false
				stored = ledger.Document{"old-run": {"1": {"A": {Upvotes: 7}}}}
				newKey = model.RatingKey{RunID: "new", Iteration: 1, AgentName: "B"}
				p = &mockPersister{loadFn: func(context.Context) (ledger.Document, error) {
					if !reachable {
						return nil, errors.New("connection refused")
					}
					return stored, nil
				}}
			})

			It("never overwrites the stored document while it cannot be read", func() {
				l := ledger.Load(ctx, p)

				c, err := l.Rate(ctx, newKey, model.VoteUp)

				Expect(err).NotTo(HaveOccurred())
				Expect(c).To(Equal(model.Counters{Upvotes: 1}))
				Expect(p.saves).To(BeEmpty())
			})

			It("merges the stored counters once the store is back", func() {
				l := ledger.Load(ctx, p)
				_, _ = l.Rate(ctx, newKey, model.VoteUp)

				reachable = true
				c, err := l.Rate(ctx, newKey, model.VoteUp)

				Expect(err).NotTo(HaveOccurred())
				Expect(c).To(Equal(model.Counters{Upvotes: 2}))
				Expect(p.saves).To(HaveLen(1))
				Expect(p.saves[0]).To(Equal(ledger.Document{
					"old-run": {"1": {"A": {Upvotes: 7}}},
					"new":     {"1": {"B": {Upvotes: 2}}},
				}))
				Expect(l.Get(model.RatingKey{RunID: "old-run", Iteration: 1, AgentName: "A"})).To(Equal(model.Counters{Upvotes: 7}))
			})
		})
	})
})

var _ = Describe("FilePersister", func() {
	var (
		ctx  context.Context
		path string
	)

	BeforeEach(func() {
		ctx = context.Background()
		path = filepath.Join(GinkgoT().TempDir(), "rating_data.json")
	})

	It("treats a missing file as an empty document", func() {
		doc, err := ledger.NewFilePersister(path).Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc).To(BeEmpty())
	})

	It("survives a restart", func() {
		key := model.RatingKey{RunID: "run-1", Iteration: 1, AgentName: "A"}
		l := ledger.Load(ctx, ledger.NewFilePersister(path))
		_, _ = l.Rate(ctx, key, model.VoteUp)
		_, _ = l.Rate(ctx, key, model.VoteUp)

		reloaded := ledger.Load(ctx, ledger.NewFilePersister(path))

		Expect(reloaded.Get(key)).To(Equal(model.Counters{Upvotes: 2}))
		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"upvotes": 2`))
	})

	It("reports a malformed file", func() {
		Expect(os.WriteFile(path, []byte("{not json"), 0o644)).To(Succeed())

		_, err := ledger.NewFilePersister(path).Load(ctx)

		Expect(err).To(MatchError(ledger.ErrCorruptDocument))
	})
})

var _ = Describe("RedisPersister", func() {
	var (
		ctx    context.Context
		mr     *miniredis.Miniredis
		client *redis.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	})

	AfterEach(func() {
		client.Close()
		mr.Close()
	})

	It("stores the document under one key", func() {
		key := model.RatingKey{RunID: "run-1", Iteration: 3, AgentName: "B"}
		l := ledger.Load(ctx, ledger.NewRedisPersister(client, "convo:ratings"))

		_, err := l.Rate(ctx, key, model.VoteDown)
		Expect(err).NotTo(HaveOccurred())

		Expect(mr.Exists("convo:ratings")).To(BeTrue())
		reloaded := ledger.Load(ctx, ledger.NewRedisPersister(client, "convo:ratings"))
		Expect(reloaded.Get(key)).To(Equal(model.Counters{Downvotes: 1}))
	})

	It("treats a missing key as an empty document", func() {
		doc, err := ledger.NewRedisPersister(client, "convo:ratings").Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc).To(BeEmpty())
	})
})

var _ = Describe("ArangoPersister", func() {
	It("round trips the document through the collection", func() {
		ctx := context.Background()
		client := newMockArango()
		key := model.RatingKey{RunID: "run-9", Iteration: 1, AgentName: "C"}

		l := ledger.Load(ctx, ledger.NewArangoPersister(client, "ratings"))
		_, _ = l.Rate(ctx, key, model.VoteUp)

		Expect(client.docs).To(HaveKey("ratings/ratings"))
		reloaded := ledger.Load(ctx, ledger.NewArangoPersister(client, "ratings"))
		Expect(reloaded.Get(key)).To(Equal(model.Counters{Upvotes: 1}))
	})
})
