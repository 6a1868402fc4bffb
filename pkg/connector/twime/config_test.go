package twime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robaho/go-twime/pkg/common"
)

const testKey = "ALFA-TWIME-FORTS-Test"

func baseProps() map[string]string {
	return map[string]string{
		"main_host":     "127.0.0.1",
		"main_port":     "9000",
		"recovery_host": "127.0.0.1",
		"recovery_port": "9001",
		"credentials":   "secret",
		"account":       "A01",
	}
}

func TestParseAccountKey(t *testing.T) {
	key, err := ParseAccountKey(testKey)
	require.NoError(t, err)
	assert.Equal(t, AccountKey{Prefix: "ALFA", Venue: "FORTS", Env: "Test"}, key)
	assert.Equal(t, testKey, key.String())

	for _, bad := range []string{"", "ALFA-FIX-FORTS-Test", "ALFA-TWIME-FORTS", "ALFA-TWIME--Test", "A-TWIME-B-C-D"} {
		_, err := ParseAccountKey(bad)
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr, bad)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(common.NewPropertiesFromMap(baseProps()), testKey)
	require.NoError(t, err)

	assert.Equal(t, Endpoint{Host: "127.0.0.1", Port: 9000}, cfg.Main)
	assert.Equal(t, "127.0.0.1:9001", cfg.Recovery.String())
	assert.Equal(t, "secret", cfg.Credentials)
	assert.Equal(t, "A01", cfg.Account)
	assert.Equal(t, time.Second, cfg.Heartbeat)
	assert.Equal(t, 3*time.Second, cfg.Inactivity)
	assert.Equal(t, 5*time.Second, cfg.LogonTimeout)
	assert.Equal(t, 2*time.Second, cfg.LogoffTimeout)
	assert.Equal(t, 10, cfg.MaxReSends)
	assert.False(t, cfg.ResetSeqNums)
	assert.False(t, cfg.Paranoid)
	assert.Empty(t, cfg.SeqStore)
}

func TestLoadConfigSessionOverrides(t *testing.T) {
	props := baseProps()
	props["heartbeat_ms"] = "500"
	props[testKey+".main_port"] = "9100"
	props[testKey+".paranoid"] = "true"
	props["OTHER-TWIME-FORTS-Test.main_port"] = "9200"

	cfg, err := LoadConfig(common.NewPropertiesFromMap(props), testKey)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Main.Port)
	assert.True(t, cfg.Paranoid)
	assert.Equal(t, 500*time.Millisecond, cfg.Heartbeat)
	assert.Equal(t, 1500*time.Millisecond, cfg.Inactivity)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]func(map[string]string){
		"missing endpoint": func(p map[string]string) { delete(p, "recovery_host") },
		"bad port":         func(p map[string]string) { p["main_port"] = "http" },
		"long credentials": func(p map[string]string) { p["credentials"] = "012345678901234567890" },
		"bad milliseconds": func(p map[string]string) { p["heartbeat_ms"] = "-5" },
		"bad boolean":      func(p map[string]string) { p["reset_seqnums"] = "maybe" },
		"bad resend limit": func(p map[string]string) { p["max_resends"] = "0" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			props := baseProps()
			mutate(props)
			_, err := LoadConfig(common.NewPropertiesFromMap(props), testKey)
			var cfgErr *ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestSeqStore(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSeqStore(dir)
	require.NoError(t, err)

	rx, tx, err := store.Load(testKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rx)
	assert.Equal(t, uint64(1), tx)

	require.NoError(t, store.Save(testKey, 120, 35))
	require.NoError(t, store.Close())

	store, err = OpenSeqStore(dir)
	require.NoError(t, err)
	defer store.Close()
	rx, tx, err = store.Load(testKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), rx)
	assert.Equal(t, uint64(35), tx)

	rx, _, err = store.Load("OTHER-TWIME-FORTS-Test")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rx)
}

func TestMemSeqStore(t *testing.T) {
	store, err := OpenSeqStore("")
	require.NoError(t, err)
	require.NoError(t, store.Save(testKey, 7, 9))
	rx, tx, err := store.Load(testKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rx)
	assert.Equal(t, uint64(9), tx)
}

func TestNotifierOrder(t *testing.T) {
	n := newNotifier()
	var got []int
	for i := 0; i < 100; i++ {
		n.post(func() { got = append(got, i) })
	}
	n.close()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	// posts after close are dropped
	n.post(func() { got = append(got, -1) })
	assert.Len(t, got, 100)
}

func TestBufferPool(t *testing.T) {
	var p bufferPool
	b := p.get()
	assert.Len(t, b, readBufferSize)
	p.put(b[:10])
	again := p.get()
	assert.Len(t, again, readBufferSize)
	assert.Same(t, &b[0], &again[0])
}
