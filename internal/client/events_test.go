package client

import (
	"context"
	"testing"

	"github.com/adwatch/backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestAlertSubject(t *testing.T) {
	assert.Equal(t, "adwatch.alert.created", AlertSubject("adwatch", "created"))
	assert.Equal(t, "alert.resolved", AlertSubject("", "resolved"))

	p := &NATSPublisher{Prefix: "ads"}
	assert.Equal(t, "ads.alert.dismissed", p.Subject("dismissed"))
}

func TestNATSPublisher_NoConnection(t *testing.T) {
	p := &NATSPublisher{Prefix: "adwatch"}
	err := p.PublishAlertEvent(context.Background(), model.AlertEvent{Type: "created"})
	assert.Error(t, err)
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &NATSPublisher{Prefix: "adwatch"}
	assert.ErrorIs(t, p.PublishAlertEvent(ctx, model.AlertEvent{Type: "created"}), context.Canceled)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishAlertEvent(context.Background(), model.AlertEvent{}))
}
