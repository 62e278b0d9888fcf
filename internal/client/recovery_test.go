package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectRecovery_RunsOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/auth/flows/recover", r.URL.Path)

		var req recoverRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pending-token", req.Token)
		assert.NotEmpty(t, req.Client.DeviceID)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"done":true,"session":{"id_token":"id"}},"meta":{"request_id":"r"}}`))
	}))
	defer srv.Close()

	inst, err := OpenInstallation(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, inst.SavePendingFlow("pending-token"))

	recovery := NewRedirectRecovery(New(srv.URL), inst)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			step, err := recovery.Run(context.Background())
			assert.NoError(t, err)
			if assert.NotNil(t, step) {
				assert.True(t, step.Done)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	token, err := inst.PendingFlow()
	require.NoError(t, err)
	assert.Empty(t, token, "a consumed redirect is forgotten")
}

func TestRedirectRecovery_NothingPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("server must not be called")
	}))
	defer srv.Close()

	inst, err := OpenInstallation(t.TempDir())
	require.NoError(t, err)

	step, err := NewRedirectRecovery(New(srv.URL), inst).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, step)
}

func TestRedirectRecovery_ServerRejectionClearsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"error":{"code":"FLOW_EXPIRED","message":"expired"},"meta":{"request_id":"r"}}`))
	}))
	defer srv.Close()

	inst, err := OpenInstallation(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, inst.SavePendingFlow("stale"))

	_, err = NewRedirectRecovery(New(srv.URL), inst).Run(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusGone, apiErr.Status)
	assert.Equal(t, "FLOW_EXPIRED", apiErr.Code)

	token, err := inst.PendingFlow()
	require.NoError(t, err)
	assert.Empty(t, token)
}
