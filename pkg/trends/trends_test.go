package trends_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/trends"
)

const relatedQueries = `{
  "search_metadata": {"status": "Success"},
  "related_queries": {
    "top": [
      {"query": "bedtime stories", "value": "100", "extracted_value": 100, "link": "https://trends.google.com/1"},
      {"query": "short stories", "value": "63", "extracted_value": 63}
    ],
    "rising": [
      {"query": "ai stories", "value": "+250%", "extracted_value": 250}
    ]
  }
}`

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

	newClient := func() *trends.Client {
		c, err := trends.NewClient(trends.Config{URL: server.URL, APIKey: "serp-key"}, server.Client())
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("requires an api key", func() {
		_, err := trends.NewClient(trends.Config{}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("reshapes related queries into trends", func() {
		var query url.Values
		handler = func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query()
			w.Write([]byte(relatedQueries))
		}

		got, err := newClient().Lookup(ctx, " stories ", "us")
		Expect(err).NotTo(HaveOccurred())

		Expect(query.Get("engine")).To(Equal(trends.DefaultEngine))
		Expect(query.Get("q")).To(Equal("stories"))
		Expect(query.Get("data_type")).To(Equal("RELATED_QUERIES"))
		Expect(query.Get("geo")).To(Equal("US"))
		Expect(query.Get("api_key")).To(Equal("serp-key"))

		Expect(got).To(HaveLen(3))
		Expect(got[0]).To(Equal(trends.Trend{
			Query: "bedtime stories", Value: "100", Score: 100, Link: "https://trends.google.com/1",
		}))
		Expect(got[2].Rising).To(BeTrue())
		Expect(got[2].Value).To(Equal("+250%"))
	})

	It("returns an empty list when nothing is related", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"search_metadata":{"status":"Success"}}`))
		}

		got, err := newClient().Lookup(ctx, "zzzz", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})

	It("rejects an empty query without calling the api", func() {
		_, err := newClient().Lookup(ctx, "  ", "")
		Expect(err).To(MatchError(trends.ErrEmptyQuery))
	})

	It("surfaces search api errors", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid API key."}`))
		}

		_, err := newClient().Lookup(ctx, "stories", "")

		var providerErr trends.ProviderError
		Expect(errors.As(err, &providerErr)).To(BeTrue())
		Expect(providerErr.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(providerErr.Message).To(Equal("Invalid API key."))
	})
})
