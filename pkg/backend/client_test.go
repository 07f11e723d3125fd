package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/metrics"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func staticToken(token string) TokenSource {
	return TokenFunc(func(context.Context) (string, error) { return token, nil })
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestPostSendsBearerAndDecodes(t *testing.T) {
	var capturedURL, capturedAuth string
	var payload map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuth = req.Header.Get("Authorization")
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &payload))
		return respond(http.StatusOK, `{"ok":true}`), nil
	})

	client, err := NewClient("http://fr.test/api/", staticToken("tok-123"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	var out struct {
		OK bool `json:"ok"`
	}
	err = client.Post(context.Background(), EndpointQueryOrders, map[string]any{"orderOwner": "any"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "http://fr.test/api/queryorders", capturedURL)
	assert.Equal(t, "Bearer tok-123", capturedAuth)
	assert.Equal(t, "any", payload["orderOwner"])
	assert.True(t, out.OK)
}

func TestPostNilPayloadSendsEmptyObject(t *testing.T) {
	var body string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
		return respond(http.StatusOK, ""), nil
	})
	client, err := NewClient("http://fr.test", staticToken("tok"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	require.NoError(t, client.Post(context.Background(), EndpointGetConfig, nil, nil))
	assert.Equal(t, "{}", body)
}

func TestPostNon2xxCarriesStatusAndBody(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBackendMetrics(reg)

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusConflict, "order already exists"), nil
	})
	client, err := NewClient("http://fr.test", staticToken("tok"),
		WithHTTPClient(&http.Client{Transport: rt}), WithMetrics(m))
	require.NoError(t, err)

	err = client.Post(context.Background(), EndpointUpsertOrder, map[string]any{}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeRequestFailed))
	assert.False(t, pkgerrors.IsInvalidSession(err))

	failure, ok := pkgerrors.RequestFailureFrom(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, failure.Status)
	assert.Equal(t, "order already exists", failure.Body)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, float64(1), requestCount(mfs, EndpointUpsertOrder, "409"))
}

func TestPostDecodesResponsesLargerThanErrorLimit(t *testing.T) {
	type row struct {
		OrderID    string `json:"orderId"`
		OrderOwner string `json:"orderOwner"`
		Name       string `json:"name"`
		Notes      string `json:"specialInstructions"`
	}
	rows := make([]row, 400)
	for i := range rows {
		rows[i] = row{
			OrderID:    fmt.Sprintf("order-%04d", i),
			OrderOwner: "jdoe",
			Name:       "Pat Customer",
			Notes:      strings.Repeat("leave by the side gate ", 10),
		}
	}
	raw, err := json.Marshal(rows)
	require.NoError(t, err)
	require.Greater(t, len(raw), responseBodyReadLimit)

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, string(raw)), nil
	})
	client, err := NewClient("http://fr.test", staticToken("tok"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	var out []row
	require.NoError(t, client.Post(context.Background(), EndpointQueryOrders, nil, &out))
	require.Len(t, out, 400)
	assert.Equal(t, "order-0399", out[399].OrderID)
}

func TestPostNon2xxBodyIsCapped(t *testing.T) {
	huge := strings.Repeat("x", responseBodyReadLimit*2)
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusBadGateway, huge), nil
	})
	client, err := NewClient("http://fr.test", staticToken("tok"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	err = client.Post(context.Background(), EndpointQueryOrders, nil, nil)
	failure, ok := pkgerrors.RequestFailureFrom(err)
	require.True(t, ok)
	assert.Len(t, failure.Body, responseBodyReadLimit)
}

func TestPostWithoutTokenIsInvalidSession(t *testing.T) {
	called := false
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return respond(http.StatusOK, "{}"), nil
	})

	cases := map[string]TokenSource{
		"sentinel": TokenFunc(func(context.Context) (string, error) { return "", pkgerrors.ErrInvalidSession }),
		"other":    TokenFunc(func(context.Context) (string, error) { return "", errors.New("no session") }),
		"blank":    staticToken("  "),
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			client, err := NewClient("http://fr.test", src, WithHTTPClient(&http.Client{Transport: rt}))
			require.NoError(t, err)
			err = client.Post(context.Background(), EndpointGetConfig, nil, nil)
			assert.True(t, pkgerrors.IsInvalidSession(err))
			assert.True(t, errors.Is(err, pkgerrors.ErrInvalidSession))
		})
	}
	assert.False(t, called, "no request should be sent without a token")
}

func TestPostTransportErrorIsRequestFailure(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	client, err := NewClient("http://fr.test", staticToken("tok"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	err = client.Post(context.Background(), EndpointLeaderboard, nil, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeRequestFailed))
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(" ", staticToken("tok"))
	assert.Error(t, err)
}

func requestCount(mfs []*dto.MetricFamily, endpoint, status string) float64 {
	for _, mf := range mfs {
		if mf.GetName() != "fr_backend_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["endpoint"] == endpoint && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
