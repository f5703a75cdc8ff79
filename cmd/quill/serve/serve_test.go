package servecmder

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/oauth"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
	"github.com/papercomputeco/quill/pkg/storage/sqlite"
)

var _ = Describe("Serve Command", func() {
	Describe("buildCollaborators", func() {
		It("leaves unconfigured collaborators disabled", func() {
			collab, err := buildCollaborators(config.Default(), zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			Expect(collab.Generator).NotTo(BeNil())
			Expect(collab.Registrar).To(BeNil())
			Expect(collab.Payments).To(BeNil())
			Expect(collab.Trends).To(BeNil())
			Expect(collab.Connector).To(BeNil())
		})

		It("builds every configured collaborator", func() {
			cfg := config.Default()
			cfg.Auth.URL = "https://project.supabase.co"
			cfg.Auth.APIKey = "anon"
			cfg.Payments.SecretKey = "sk_test"
			cfg.Trends.APIKey = "serp"
			cfg.OAuth = oauth.Config{
				RedirectBaseURL: "https://quill.example.com",
				Platforms:       map[string]oauth.Credentials{"youtube": {ClientID: "yt"}},
			}

			collab, err := buildCollaborators(cfg, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			Expect(collab.Registrar).NotTo(BeNil())
			Expect(collab.Payments).NotTo(BeNil())
			Expect(collab.Trends).NotTo(BeNil())
			Expect(collab.Connector).NotTo(BeNil())
		})
	})

	Describe("openStorage", func() {
		var ctx context.Context

		BeforeEach(func() {
			ctx = context.Background()
		})

		It("defaults to in-memory storage", func() {
			d, err := openStorage(ctx, config.Storage{Driver: config.DriverMemory})
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		})

		It("opens a sqlite database", func() {
			path := filepath.Join(GinkgoT().TempDir(), "quill.db")

			d, err := openStorage(ctx, config.Storage{Driver: config.DriverSQLite, DSN: path})
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			Expect(d).To(BeAssignableToTypeOf(&sqlite.Driver{}))
			Expect(d.Insert(ctx, storage.NewStory("t", "c", "", ""))).To(Succeed())
		})
	})
})
