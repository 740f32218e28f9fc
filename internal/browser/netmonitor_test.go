package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docRequest(id, url string) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		Type:      network.ResourceTypeDocument,
		Request:   &network.Request{URL: url},
	}
}

func subRequest(id string) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		Type:      network.ResourceTypeImage,
		Request:   &network.Request{URL: "https://example.com/img.png"},
	}
}

func TestNetMonitorTracksDocumentRequest(t *testing.T) {
	nm := newNetMonitor()

	nm.handleRequestWillBeSent(docRequest("1", "https://example.com/"))
	nm.handleRequestWillBeSent(subRequest("2"))
	nm.handleResponseReceived(&network.EventResponseReceived{
		RequestID: "1",
		Response:  &network.Response{Status: 301, URL: "https://example.com/"},
	})
	// Redirect leg reuses the document request ID.
	nm.handleResponseReceived(&network.EventResponseReceived{
		RequestID: "1",
		Response:  &network.Response{Status: 200, URL: "https://www.example.com/"},
	})

	status, failure, finalURL := nm.document()
	assert.Equal(t, 200, status)
	assert.Empty(t, failure)
	assert.Equal(t, "https://www.example.com/", finalURL)
}

func TestNetMonitorRecordsDocumentFailure(t *testing.T) {
	nm := newNetMonitor()

	nm.handleRequestWillBeSent(docRequest("1", "https://nxdomain.example/"))
	nm.handleLoadingFailed(&network.EventLoadingFailed{
		RequestID: "1",
		ErrorText: "net::ERR_NAME_NOT_RESOLVED",
	})

	status, failure, _ := nm.document()
	assert.Equal(t, 0, status)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", failure)
}

func TestNetMonitorResetKeepsInflight(t *testing.T) {
	nm := newNetMonitor()

	nm.handleRequestWillBeSent(docRequest("1", "https://example.com/"))
	nm.handleRequestWillBeSent(subRequest("2"))
	nm.reset()

	status, _, _ := nm.document()
	assert.Equal(t, 0, status)

	// The subresource is still in flight, so idle must not be reached.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	assert.Error(t, nm.waitIdle(ctx, 20*time.Millisecond))
}

func TestNetMonitorWaitIdleZeroQuietPeriod(t *testing.T) {
	nm := newNetMonitor()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, nm.waitIdle(ctx, 0))
}

func TestNetMonitorWaitIdle(t *testing.T) {
	nm := newNetMonitor()

	nm.handleRequestWillBeSent(subRequest("2"))
	nm.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "2"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, nm.waitIdle(ctx, 20*time.Millisecond))
}
