package payments_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/payments"
)

var _ = Describe("ValidateIntent", func() {
	It("normalizes the currency", func() {
		currency, err := payments.ValidateIntent(500, " USD ")
		Expect(err).NotTo(HaveOccurred())
		Expect(currency).To(Equal("usd"))
	})

	DescribeTable("rejects bad input",
		func(amount int64, currency string) {
			_, err := payments.ValidateIntent(amount, currency)
			Expect(err).To(MatchError(payments.ErrInvalidPayment))
		},
		Entry("zero amount", int64(0), "usd"),
		Entry("negative amount", int64(-5), "usd"),
		Entry("long currency", int64(100), "dollars"),
		Entry("non-letter currency", int64(100), "u5d"),
	)
})

var _ = Describe("Client", func() {
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

	newClient := func() *payments.Client {
		c, err := payments.NewClient(payments.Config{URL: server.URL, SecretKey: "sk_test_123"}, server.Client())
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("requires a secret key", func() {
		_, err := payments.NewClient(payments.Config{}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("creates an intent and returns its client secret", func() {
		var (
			form     url.Values
			user     string
			path     string
			hasBasic bool
		)
		handler = func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			user, _, hasBasic = r.BasicAuth()
			Expect(r.ParseForm()).To(Succeed())
			form = r.PostForm
			w.Write([]byte(`{"id":"pi_1","object":"payment_intent","amount":1999,"currency":"usd","client_secret":"pi_1_secret_abc"}`))
		}

		intent, err := newClient().CreatePaymentIntent(ctx, 1999, "USD")
		Expect(err).NotTo(HaveOccurred())

		Expect(intent).To(Equal(&payments.Intent{
			ID: "pi_1", ClientSecret: "pi_1_secret_abc", Amount: 1999, Currency: "usd",
		}))
		Expect(path).To(Equal("/v1/payment_intents"))
		Expect(hasBasic).To(BeTrue())
		Expect(user).To(Equal("sk_test_123"))
		Expect(form.Get("amount")).To(Equal("1999"))
		Expect(form.Get("currency")).To(Equal("usd"))
		Expect(form.Get("automatic_payment_methods[enabled]")).To(Equal("true"))
	})

	It("surfaces processor errors", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Amount must be at least $0.50 usd"}}`))
		}

		_, err := newClient().CreatePaymentIntent(ctx, 10, "usd")

		var providerErr payments.ProviderError
		Expect(errors.As(err, &providerErr)).To(BeTrue())
		Expect(providerErr.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(providerErr.Type).To(Equal("invalid_request_error"))
		Expect(providerErr.Message).To(ContainSubstring("at least"))
	})
})
