package auth_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/quill/pkg/auth"
)

var _ = Describe("Registration", func() {
	valid := auth.Registration{Email: "ada@example.com", Password: "correct-horse", Username: "ada"}

	It("accepts a complete registration", func() {
		Expect(valid.Validate()).To(Succeed())
	})

	DescribeTable("rejects incomplete registrations",
		func(mutate func(r *auth.Registration), message string) {
			r := valid
			mutate(&r)
			err := r.Validate()
			Expect(err).To(MatchError(auth.ErrInvalidRegistration))
			Expect(err.Error()).To(ContainSubstring(message))
		},
		Entry("bad email", func(r *auth.Registration) { r.Email = "not-an-email" }, "email"),
		Entry("short password", func(r *auth.Registration) { r.Password = "short" }, "password"),
		Entry("blank username", func(r *auth.Registration) { r.Username = "  " }, "username"),
	)
})

var _ = Describe("Registrar", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newRegistrar := func() *auth.Registrar {
		r, err := auth.NewRegistrar(auth.Config{URL: server.URL + "/", APIKey: "anon-key"}, server.Client())
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	It("requires a url and api key", func() {
		_, err := auth.NewRegistrar(auth.Config{APIKey: "k"}, nil)
		Expect(err).To(HaveOccurred())

		_, err = auth.NewRegistrar(auth.Config{URL: "http://x"}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("signs the user up and reshapes the response", func() {
		var (
			path, apikey, bearer string
			body                 []byte
		)
		handler = func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			apikey = r.Header.Get("apikey")
			bearer = r.Header.Get("Authorization")
			body, _ = io.ReadAll(r.Body)
			w.Write([]byte(`{"user":{"id":"u-123","email":"ada@example.com","aud":"authenticated"},"session":null}`))
		}

		user, err := newRegistrar().Register(ctx, auth.Registration{
			Email: " ada@example.com ", Password: "correct-horse", Username: "ada",
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(user).To(Equal(&auth.User{ID: "u-123", Email: "ada@example.com"}))
		Expect(path).To(Equal("/auth/v1/signup"))
		Expect(apikey).To(Equal("anon-key"))
		Expect(bearer).To(Equal("Bearer anon-key"))
		Expect(gjson.GetBytes(body, "email").String()).To(Equal("ada@example.com"))
		Expect(gjson.GetBytes(body, "data.username").String()).To(Equal("ada"))
	})

	It("reads a top-level user object", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"u-9","email":"bob@example.com"}`))
		}

		user, err := newRegistrar().Register(ctx, auth.Registration{
			Email: "bob@example.com", Password: "12345678", Username: "bob",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(user.ID).To(Equal("u-9"))
	})

	It("surfaces provider errors", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"code":422,"msg":"User already registered"}`))
		}

		_, err := newRegistrar().Register(ctx, auth.Registration{
			Email: "ada@example.com", Password: "correct-horse", Username: "ada",
		})

		var providerErr auth.ProviderError
		Expect(errors.As(err, &providerErr)).To(BeTrue())
		Expect(providerErr.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		Expect(providerErr.Message).To(Equal("User already registered"))
	})

	It("does not call the provider for invalid input", func() {
		called := false
		handler = func(w http.ResponseWriter, r *http.Request) { called = true }

		_, err := newRegistrar().Register(ctx, auth.Registration{Email: "nope"})
		Expect(err).To(MatchError(auth.ErrInvalidRegistration))
		Expect(called).To(BeFalse())
	})
})
