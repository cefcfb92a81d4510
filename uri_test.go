package reprise_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise"
)

func TestParseURI(t *testing.T) {
	cs, err := reprise.ParseURI("reprise://db-1:27017,db-2:27017/app?retryReads=false" +
		"&readPreference=secondaryPreferred&readPreferenceTags=dc:east,rack:1&readPreferenceTags=" +
		"&serverSelectionTimeoutMS=500&localThresholdMS=20&appName=orders")
	require.NoError(t, err)

	require.Equal(t, "reprise", cs.Scheme)
	require.Equal(t, []string{"db-1:27017", "db-2:27017"}, cs.Hosts)
	require.Equal(t, "app", cs.Database)
	require.NotNil(t, cs.RetryReads)
	require.False(t, *cs.RetryReads)
	require.NotNil(t, cs.ReadPreference)
	require.Equal(t, reprise.SecondaryPreferred, cs.ReadPreference.Mode)
	require.Equal(t, []reprise.TagSet{{"dc": "east", "rack": "1"}, {}}, cs.ReadPreference.TagSets)
	require.Equal(t, 500*time.Millisecond, cs.ServerSelectionTimeout)
	require.Equal(t, 20*time.Millisecond, cs.LocalThreshold)
	require.Equal(t, []string{"orders"}, cs.Unknown["appName"])
	require.Len(t, cs.Options(), 4)
}

func TestParseURI_CaseInsensitiveKeys(t *testing.T) {
	cs, err := reprise.ParseURI("mongodb://localhost/?RETRYREADS=true&ReadPreference=nearest")
	require.NoError(t, err)

	require.True(t, *cs.RetryReads)
	require.Equal(t, reprise.Nearest, cs.ReadPreference.Mode)
	require.Empty(t, cs.Database)
}

func TestParseURI_NoOptions(t *testing.T) {
	cs, err := reprise.ParseURI("reprise://localhost:27017")
	require.NoError(t, err)

	require.Equal(t, []string{"localhost:27017"}, cs.Hosts)
	require.Nil(t, cs.RetryReads)
	require.Nil(t, cs.ReadPreference)
	require.Empty(t, cs.Options())
}

func TestParseURI_Errors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"missing scheme", "localhost:27017"},
		{"no hosts", "reprise:///app"},
		{"empty host", "reprise://a:1,,b:2"},
		{"bad bool", "reprise://a/?retryReads=maybe"},
		{"bad mode", "reprise://a/?readPreference=fastest"},
		{"bad tags", "reprise://a/?readPreference=nearest&readPreferenceTags=dc"},
		{"primary with tags", "reprise://a/?readPreference=primary&readPreferenceTags=dc:east"},
		{"negative timeout", "reprise://a/?serverSelectionTimeoutMS=-1"},
		{"bad threshold", "reprise://a/?localThresholdMS=soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reprise.ParseURI(tt.uri)
			require.ErrorIs(t, err, reprise.ErrInvalidURI)
		})
	}
}

func TestParseURI_OptionsApply(t *testing.T) {
	cs, err := reprise.ParseURI("reprise://a/?retryReads=false&readPreference=secondary&serverSelectionTimeoutMS=250")
	require.NoError(t, err)

	cfg := reprise.DefaultConfig()
	for _, opt := range cs.Options() {
		opt(cfg)
	}

	require.False(t, cfg.RetryReads)
	require.Equal(t, reprise.Secondary, cfg.ReadPreference.Mode)
	require.Equal(t, 250*time.Millisecond, cfg.ServerSelectionTimeout)
}
