package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/salespulse/pkg/config"
)

// fakeStorage answers the two JSON API calls the client makes.
func fakeStorage(t *testing.T, upload http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/b/reports"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"reports"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/b/reports/o") && upload != nil:
			upload(w, r)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, bucket string) (*Client, error) {
	t.Helper()
	return NewClient(context.Background(), config.GCSConfig{BucketName: bucket}, config.GCPConfig{}, nil,
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
	)
}

func TestUploadSendsObject(t *testing.T) {
	var gotQuery, gotBody string
	srv := fakeStorage(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bucket":"reports","name":"charts/trend.svg"}`))
	})

	client, err := newTestClient(t, srv, "reports")
	require.NoError(t, err)

	uri, err := client.Upload(context.Background(), "/charts/trend.svg", "image/svg+xml", strings.NewReader("<svg/>"))
	require.NoError(t, err)
	assert.Equal(t, "gs://reports/charts/trend.svg", uri)
	assert.Contains(t, gotQuery, "uploadType=")
	assert.Contains(t, gotBody, `"name":"charts/trend.svg"`)
	assert.Contains(t, gotBody, "image/svg+xml")
	assert.Contains(t, gotBody, "<svg/>")
}

func TestUploadSurfacesGoogleAPIError(t *testing.T) {
	srv := fakeStorage(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied","errors":[{"reason":"forbidden"}]}}`))
	})

	client, err := newTestClient(t, srv, "reports")
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), "chart.svg", "", strings.NewReader("x"))
	require.Error(t, err)
	var apiErr *googleapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Code)
	assert.Equal(t, "denied", apiErr.Message)
}

func TestUploadValidatesInput(t *testing.T) {
	var nilClient *Client
	_, err := nilClient.Upload(context.Background(), "a", "", strings.NewReader(""))
	require.ErrorIs(t, err, errClientNotInitialized)

	srv := fakeStorage(t, nil)
	client, err := newTestClient(t, srv, "reports")
	require.NoError(t, err)
	_, err = client.Upload(context.Background(), "  ", "", strings.NewReader(""))
	require.ErrorIs(t, err, errObjectRequired)
}

func TestNewClientChecksBucket(t *testing.T) {
	srv := fakeStorage(t, nil)

	_, err := newTestClient(t, srv, "missing")
	require.Error(t, err)
	var apiErr *googleapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Code)

	_, err = NewClient(context.Background(), config.GCSConfig{BucketName: " "}, config.GCPConfig{}, nil)
	require.ErrorIs(t, err, errBucketRequired)
}

func TestClientOptionsPickCredentials(t *testing.T) {
	assert.Len(t, clientOptions(config.GCPConfig{}), 1)
	assert.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/creds"}), 2)
	assert.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}), 2)
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	assert.Empty(t, c.DefaultBucket())
	assert.ErrorIs(t, c.Ping(context.Background()), errClientNotInitialized)
	assert.NoError(t, c.Close())
}
