package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muebleria/cotizador-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/sales", topicResourceName("p1", " sales "))
	assert.Equal(t, "projects/other/topics/x", topicResourceName("p1", "projects/other/topics/x"))
	assert.Empty(t, topicResourceName("", "sales"))
	assert.Empty(t, topicResourceName("p1", "  "))
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	names := topicNames(config.PubSubConfig{CatalogTopic: "catalog", SalesTopic: " "})
	assert.Equal(t, []string{"catalog"}, names)
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("sales"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewClientRequiresTopics(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "p1"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errNoTopics)
}
