package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
	"github.com/papercomputeco/quill/pkg/storage/postgres"
	"github.com/papercomputeco/quill/pkg/storage/sqlite"
)

var _ = Describe("Story", func() {
	It("gets an ID and a creation time", func() {
		story := storage.NewStory("  The Fox ", "Once upon a time.", "a fox", "user-1")

		Expect(story.ID).To(HaveLen(36))
		Expect(story.Title).To(Equal("The Fox"))
		Expect(story.CreatedAt).To(BeTemporally("~", time.Now(), time.Second))
		Expect(story.Validate()).To(Succeed())
	})

	It("requires a title and content", func() {
		Expect(storage.NewStory("", "text", "", "").Validate()).To(MatchError(storage.ErrInvalidStory))
		Expect(storage.NewStory("title", "  ", "", "").Validate()).To(MatchError(storage.ErrInvalidStory))
	})
})

// describeDriver runs the behaviour every storage.Driver shares.
func describeDriver(name string, open func(ctx context.Context) storage.Driver) {
	Describe(name, func() {
		var (
			ctx    context.Context
			driver storage.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = open(ctx)
		})

		AfterEach(func() {
			if driver != nil {
				driver.Close()
			}
		})

		It("inserts and retrieves a story", func() {
			story := storage.NewStory("Dragons", "There were dragons.", "dragons", "user-1")
			Expect(driver.Insert(ctx, story)).To(Succeed())

			got, err := driver.Get(ctx, story.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("Dragons"))
			Expect(got.Content).To(Equal("There were dragons."))
			Expect(got.Prompt).To(Equal("dragons"))
			Expect(got.UserID).To(Equal("user-1"))
			Expect(got.CreatedAt).To(BeTemporally("~", story.CreatedAt, time.Millisecond))
		})

		It("returns ErrNotFound for an unknown ID", func() {
			_, err := driver.Get(ctx, "missing")

			var notFound storage.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.ID).To(Equal("missing"))
		})

		It("rejects invalid stories", func() {
			err := driver.Insert(ctx, storage.NewStory("", "", "", ""))
			Expect(err).To(MatchError(storage.ErrInvalidStory))
		})

		It("rejects duplicate IDs", func() {
			story := storage.NewStory("Once", "Only once.", "", "")
			Expect(driver.Insert(ctx, story)).To(Succeed())
			Expect(driver.Insert(ctx, story)).NotTo(Succeed())
		})

		It("lists newest first and honours the limit", func() {
			base := time.Now().UTC()
			for i, title := range []string{"first", "second", "third"} {
				story := storage.NewStory(title, "content", "", "")
				story.CreatedAt = base.Add(time.Duration(i) * time.Second)
				Expect(driver.Insert(ctx, story)).To(Succeed())
			}

			all, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].Title).To(Equal("third"))
			Expect(all[2].Title).To(Equal("first"))

			limited, err := driver.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(limited).To(HaveLen(2))
		})

		It("lists an empty store as an empty slice", func() {
			stories, err := driver.List(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(stories).To(BeEmpty())
		})
	})
}

var _ = Describe("Drivers", func() {
	describeDriver("inmemory.Driver", func(ctx context.Context) storage.Driver {
		return inmemory.NewDriver()
	})

	describeDriver("sqlite.Driver", func(ctx context.Context) storage.Driver {
		d, err := sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	describeDriver("postgres.Driver", func(ctx context.Context) storage.Driver {
		dsn := os.Getenv("QUILL_TEST_POSTGRES_DSN")
		if dsn == "" {
			Skip("QUILL_TEST_POSTGRES_DSN not set")
		}
		d, err := postgres.NewDriver(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	It("creates the sqlite database file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "stories.db")

		d, err := sqlite.NewDriver(context.Background(), path)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		_, err = os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a postgres dsn", func() {
		_, err := postgres.NewDriver(context.Background(), "")
		Expect(err).To(MatchError(ContainSubstring("dsn is required")))
	})
})
